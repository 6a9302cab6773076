package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/careops/reportd/internal/models"
)

// ExecutionRecorder owns the execution-history table. Begin and Finish
// bracket one attempt; Finish must be called at most once per Begin
// (a second call is a caller bug, not defended here).
type ExecutionRecorder struct {
	db *gorm.DB
}

func NewExecutionRecorder(db *gorm.DB) *ExecutionRecorder {
	return &ExecutionRecorder{db: db}
}

// Begin opens an attempt in RUNNING state and returns its id.
func (r *ExecutionRecorder) Begin(scheduleID uint, executedAt time.Time) (uint, error) {
	exec := models.ReportExecution{
		ScheduleID: scheduleID,
		ExecutedAt: executedAt,
		Status:     models.ExecutionRunning,
	}
	if err := r.db.Create(&exec).Error; err != nil {
		return 0, wrap("begin execution", err)
	}
	return exec.ID, nil
}

// Finish writes the attempt's single terminal update.
func (r *ExecutionRecorder) Finish(executionID uint, outcome models.ExecutionOutcome) error {
	ms := outcome.Duration.Milliseconds()
	updates := map[string]interface{}{
		"status":                outcome.Status,
		"duration_ms":           ms,
		"successful_recipients": outcome.SuccessfulRecipients,
		"error_summary":         outcome.ErrorSummary,
		"payload":               outcome.Payload,
	}
	err := r.db.Model(&models.ReportExecution{}).
		Where("id = ?", executionID).
		Updates(updates).Error
	return wrap("finish execution", err)
}

// ListBySchedule returns a schedule's execution history, newest first.
func (r *ExecutionRecorder) ListBySchedule(scheduleID uint, limit int) ([]models.ReportExecution, error) {
	var execs []models.ReportExecution
	q := r.db.Where("schedule_id = ?", scheduleID).Order("executed_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&execs).Error; err != nil {
		return nil, wrap("list executions", err)
	}
	return execs, nil
}

// SweepStale fails RUNNING executions older than the threshold. A row
// stuck in RUNNING means the process died between Begin and Finish;
// the sweep turns that gap into an auditable failure.
func (r *ExecutionRecorder) SweepStale(now time.Time, olderThan time.Duration) (int64, error) {
	cutoff := now.Add(-olderThan)
	res := r.db.Model(&models.ReportExecution{}).
		Where("status = ? AND executed_at < ?", models.ExecutionRunning, cutoff).
		Updates(map[string]interface{}{
			"status":        models.ExecutionFailed,
			"error_summary": fmt.Sprintf("abandoned: still running after %s", olderThan),
		})
	if res.Error != nil {
		return 0, wrap("sweep stale executions", res.Error)
	}
	return res.RowsAffected, nil
}
