// Package store is the persistence boundary: CRUD over scheduled
// reports and their execution history on a relational database.
package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/careops/reportd/internal/models"
	"github.com/careops/reportd/internal/recurrence"
)

type ScheduleStore struct {
	db *gorm.DB
}

func NewScheduleStore(db *gorm.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// ScheduleUpdate is a partial update; nil fields are left untouched.
type ScheduleUpdate struct {
	Name       *string
	TemplateID *string
	Rule       *models.RecurrenceRule
	Recipients *[]string
	Active     *bool
}

// Create registers a schedule and computes its initial next run. A
// rule the calculator rejects still persists, with NextRunAt left nil;
// the report is then visible but never due, which is the operator's
// cue to fix the rule.
func (s *ScheduleStore) Create(report *models.ScheduledReport) error {
	if next, err := recurrence.NextRun(report.Rule, time.Now()); err == nil {
		report.NextRunAt = &next
	}
	return wrap("create schedule", s.db.Create(report).Error)
}

func (s *ScheduleStore) Get(id uint) (*models.ScheduledReport, error) {
	var report models.ScheduledReport
	if err := s.db.First(&report, id).Error; err != nil {
		return nil, wrap("get schedule", err)
	}
	return &report, nil
}

// Update applies a partial update. NextRunAt is re-derived only when
// the recurrence rule changes or the report flips inactive to active;
// every other field change leaves the existing timing alone.
func (s *ScheduleStore) Update(id uint, upd ScheduleUpdate) (*models.ScheduledReport, error) {
	report, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	reactivated := upd.Active != nil && *upd.Active && !report.Active

	if upd.Name != nil {
		report.Name = *upd.Name
	}
	if upd.TemplateID != nil {
		report.TemplateID = *upd.TemplateID
	}
	if upd.Recipients != nil {
		report.Recipients = *upd.Recipients
	}
	if upd.Active != nil {
		report.Active = *upd.Active
	}
	if upd.Rule != nil {
		report.Rule = *upd.Rule
	}

	if upd.Rule != nil || reactivated {
		report.NextRunAt = nil
		if next, err := recurrence.NextRun(report.Rule, time.Now()); err == nil {
			report.NextRunAt = &next
		}
	}

	if err := s.db.Save(report).Error; err != nil {
		return nil, wrap("update schedule", err)
	}
	return report, nil
}

func (s *ScheduleStore) Delete(id uint) error {
	return wrap("delete schedule", s.db.Delete(&models.ScheduledReport{}, id).Error)
}

func (s *ScheduleStore) ListAll() ([]models.ScheduledReport, error) {
	var reports []models.ScheduledReport
	if err := s.db.Find(&reports).Error; err != nil {
		return nil, wrap("list schedules", err)
	}
	return reports, nil
}

// ListDue returns every active schedule whose next run is at or before
// now. No ordering is guaranteed.
func (s *ScheduleStore) ListDue(now time.Time) ([]models.ScheduledReport, error) {
	var reports []models.ScheduledReport
	err := s.db.
		Where("active = ? AND next_run_at IS NOT NULL AND next_run_at <= ?", true, now).
		Find(&reports).Error
	if err != nil {
		return nil, wrap("list due schedules", err)
	}
	return reports, nil
}

// Reschedule records a completed attempt: last run is stamped and the
// next run replaced. A nil next leaves the schedule parked until its
// rule is fixed.
func (s *ScheduleStore) Reschedule(id uint, lastRun time.Time, next *time.Time) error {
	err := s.db.Model(&models.ScheduledReport{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_run_at": lastRun,
			"next_run_at": next,
		}).Error
	return wrap("reschedule", err)
}
