// Package api exposes schedule management and manual triggering over
// HTTP. The engine itself does not know this surface exists.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/careops/reportd/internal/auth"
	"github.com/careops/reportd/internal/models"
	"github.com/careops/reportd/internal/recurrence"
	"github.com/careops/reportd/internal/scheduler"
	"github.com/careops/reportd/internal/store"
)

type Server struct {
	schedules *store.ScheduleStore
	recorder  *store.ExecutionRecorder
	engine    *scheduler.Engine
	auth      *auth.Auth
	db        *gorm.DB
	router    *gin.Engine
	log       zerolog.Logger
}

func NewServer(schedules *store.ScheduleStore, recorder *store.ExecutionRecorder, engine *scheduler.Engine, a *auth.Auth, db *gorm.DB, log zerolog.Logger) *Server {
	s := &Server{
		schedules: schedules,
		recorder:  recorder,
		engine:    engine,
		auth:      a,
		db:        db,
		router:    gin.New(),
		log:       log,
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.POST("/api/v1/auth/login", s.login)
	s.router.POST("/api/v1/auth/register", s.register)

	api := s.router.Group("/api/v1")
	api.Use(s.auth.Middleware())

	schedules := api.Group("/schedules")
	{
		schedules.GET("", s.listSchedules)
		schedules.GET("/:id", s.getSchedule)
		schedules.GET("/:id/executions", s.listExecutions)
		schedules.POST("", auth.RequireRole(models.RoleAdmin, models.RoleOperator), s.createSchedule)
		schedules.PUT("/:id", auth.RequireRole(models.RoleAdmin, models.RoleOperator), s.updateSchedule)
		schedules.DELETE("/:id", auth.RequireRole(models.RoleAdmin), s.deleteSchedule)
		schedules.PUT("/:id/enable", auth.RequireRole(models.RoleAdmin, models.RoleOperator), s.setActive(true))
		schedules.PUT("/:id/disable", auth.RequireRole(models.RoleAdmin, models.RoleOperator), s.setActive(false))
		schedules.POST("/:id/run", auth.RequireRole(models.RoleAdmin, models.RoleOperator), s.runSchedule)
	}

	api.POST("/tick", auth.RequireRole(models.RoleAdmin), s.tick)
}

func (s *Server) Start(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

// Router exposes the handler for tests and custom servers.
func (s *Server) Router() http.Handler { return s.router }

type schedulePayload struct {
	Name       string                `json:"name" binding:"required"`
	TemplateID string                `json:"template_id" binding:"required"`
	Rule       models.RecurrenceRule `json:"rule" binding:"required"`
	Recipients []string              `json:"recipients" binding:"required"`
	Active     *bool                 `json:"active"`
}

func (s *Server) createSchedule(c *gin.Context) {
	var payload schedulePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := recurrence.Validate(payload.Rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(payload.Recipients) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one recipient is required"})
		return
	}

	report := models.ScheduledReport{
		Name:       payload.Name,
		TemplateID: payload.TemplateID,
		Rule:       payload.Rule,
		Recipients: payload.Recipients,
		Active:     true,
		CreatedBy:  c.GetString("username"),
	}
	if payload.Active != nil {
		report.Active = *payload.Active
	}

	if err := s.schedules.Create(&report); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (s *Server) listSchedules(c *gin.Context) {
	reports, err := s.schedules.ListAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (s *Server) getSchedule(c *gin.Context) {
	id, ok := s.scheduleID(c)
	if !ok {
		return
	}
	report, err := s.schedules.Get(id)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type scheduleUpdatePayload struct {
	Name       *string                `json:"name"`
	TemplateID *string                `json:"template_id"`
	Rule       *models.RecurrenceRule `json:"rule"`
	Recipients *[]string              `json:"recipients"`
	Active     *bool                  `json:"active"`
}

func (s *Server) updateSchedule(c *gin.Context) {
	id, ok := s.scheduleID(c)
	if !ok {
		return
	}

	var payload scheduleUpdatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if payload.Rule != nil {
		if err := recurrence.Validate(*payload.Rule); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if payload.Recipients != nil && len(*payload.Recipients) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one recipient is required"})
		return
	}

	report, err := s.schedules.Update(id, store.ScheduleUpdate{
		Name:       payload.Name,
		TemplateID: payload.TemplateID,
		Rule:       payload.Rule,
		Recipients: payload.Recipients,
		Active:     payload.Active,
	})
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) deleteSchedule(c *gin.Context) {
	id, ok := s.scheduleID(c)
	if !ok {
		return
	}
	if err := s.schedules.Delete(id); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "schedule deleted"})
}

func (s *Server) setActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.scheduleID(c)
		if !ok {
			return
		}
		report, err := s.schedules.Update(id, store.ScheduleUpdate{Active: &active})
		if err != nil {
			s.storeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func (s *Server) runSchedule(c *gin.Context) {
	id, ok := s.scheduleID(c)
	if !ok {
		return
	}
	status, err := s.engine.RunNow(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) listExecutions(c *gin.Context) {
	id, ok := s.scheduleID(c)
	if !ok {
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	execs, err := s.recorder.ListBySchedule(id, limit)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, execs)
}

func (s *Server) tick(c *gin.Context) {
	summary, err := s.engine.Tick()
	if err != nil {
		if errors.Is(err, scheduler.ErrTickInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := s.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !user.CheckPassword(req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.auth.GenerateToken(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// register creates a user account. The first account becomes admin;
// everyone after that starts as a viewer until an admin promotes them.
func (s *Server) register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Email    string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var count int64
	if err := s.db.Model(&models.User{}).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Role:     models.RoleViewer,
		IsActive: true,
	}
	if count == 0 {
		user.Role = models.RoleAdmin
	}
	if err := user.SetPassword(req.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}
	if err := s.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) scheduleID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule ID"})
		return 0, false
	}
	return uint(id), true
}

func (s *Server) storeError(c *gin.Context, err error) {
	if store.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}
	s.log.Error().Err(err).Msg("store operation failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
