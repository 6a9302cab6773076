package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/careops/reportd/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store_test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ScheduledReport{}, &models.ReportExecution{}))
	return db
}

func intp(v int) *int { return &v }

func dailyReport(name string) *models.ScheduledReport {
	return &models.ScheduledReport{
		Name:       name,
		TemplateID: "daily_summary",
		Rule: models.RecurrenceRule{
			Frequency: models.FrequencyDaily,
			Hour:      2,
			Minute:    0,
			Timezone:  "UTC",
		},
		Recipients: []string{"ops@careops.example"},
		Active:     true,
	}
}

func TestCreateComputesNextRun(t *testing.T) {
	s := NewScheduleStore(openTestDB(t))

	report := dailyReport("census")
	require.NoError(t, s.Create(report))
	require.NotNil(t, report.NextRunAt)
	assert.True(t, report.NextRunAt.After(time.Now()))

	got, err := s.Get(report.ID)
	require.NoError(t, err)
	assert.Equal(t, "census", got.Name)
	assert.Equal(t, []string{"ops@careops.example"}, got.Recipients)
	require.NotNil(t, got.NextRunAt)
}

func TestCreateUnschedulableRuleParks(t *testing.T) {
	s := NewScheduleStore(openTestDB(t))

	report := dailyReport("broken")
	report.Rule.Frequency = "quarterly"
	require.NoError(t, s.Create(report))
	assert.Nil(t, report.NextRunAt)
	assert.True(t, report.Active)
	assert.False(t, report.Schedulable())
}

func TestUpdateRuleRecomputesNextRun(t *testing.T) {
	s := NewScheduleStore(openTestDB(t))
	report := dailyReport("census")
	require.NoError(t, s.Create(report))
	before := *report.NextRunAt

	newRule := models.RecurrenceRule{
		Frequency:  models.FrequencyMonthly,
		DayOfMonth: intp(15),
		Hour:       6,
		Minute:     0,
		Timezone:   "UTC",
	}
	updated, err := s.Update(report.ID, ScheduleUpdate{Rule: &newRule})
	require.NoError(t, err)
	require.NotNil(t, updated.NextRunAt)
	assert.NotEqual(t, before, *updated.NextRunAt)
	assert.Equal(t, 15, updated.NextRunAt.Day())
}

func TestUpdateNameLeavesTimingAlone(t *testing.T) {
	s := NewScheduleStore(openTestDB(t))
	report := dailyReport("census")
	require.NoError(t, s.Create(report))
	before := *report.NextRunAt

	name := "renamed"
	updated, err := s.Update(report.ID, ScheduleUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	require.NotNil(t, updated.NextRunAt)
	assert.True(t, before.Equal(*updated.NextRunAt))
}

func TestDeactivateKeepsNextRunButNotDue(t *testing.T) {
	s := NewScheduleStore(openTestDB(t))
	report := dailyReport("census")
	require.NoError(t, s.Create(report))

	off := false
	updated, err := s.Update(report.ID, ScheduleUpdate{Active: &off})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	require.NotNil(t, updated.NextRunAt, "deactivation must not clear next_run_at")

	due, err := s.ListDue(updated.NextRunAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due, "inactive schedules are never due")
}

func TestReactivateRecomputesNextRun(t *testing.T) {
	s := NewScheduleStore(openTestDB(t))
	report := dailyReport("census")
	require.NoError(t, s.Create(report))

	off, on := false, true
	_, err := s.Update(report.ID, ScheduleUpdate{Active: &off})
	require.NoError(t, err)

	updated, err := s.Update(report.ID, ScheduleUpdate{Active: &on})
	require.NoError(t, err)
	assert.True(t, updated.Active)
	require.NotNil(t, updated.NextRunAt)
	assert.True(t, updated.NextRunAt.After(time.Now()))
}

func TestListDue(t *testing.T) {
	db := openTestDB(t)
	s := NewScheduleStore(db)

	overdue := dailyReport("overdue")
	require.NoError(t, s.Create(overdue))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, s.Reschedule(overdue.ID, past.Add(-24*time.Hour), &past))

	future := dailyReport("future")
	require.NoError(t, s.Create(future))

	parked := dailyReport("parked")
	parked.Rule.Frequency = "quarterly"
	require.NoError(t, s.Create(parked))

	due, err := s.ListDue(time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, overdue.ID, due[0].ID)
}

func TestRescheduleWritesLastAndNext(t *testing.T) {
	s := NewScheduleStore(openTestDB(t))
	report := dailyReport("census")
	require.NoError(t, s.Create(report))

	ranAt := time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC)
	next := ranAt.AddDate(0, 0, 1)
	require.NoError(t, s.Reschedule(report.ID, ranAt, &next))

	got, err := s.Get(report.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastRunAt)
	assert.True(t, got.LastRunAt.Equal(ranAt))
	require.NotNil(t, got.NextRunAt)
	assert.True(t, got.NextRunAt.Equal(next))

	// Parking: nil next run survives the write.
	require.NoError(t, s.Reschedule(report.ID, next, nil))
	got, err = s.Get(report.ID)
	require.NoError(t, err)
	assert.Nil(t, got.NextRunAt)
}

func TestGetMissingIsStoreError(t *testing.T) {
	s := NewScheduleStore(openTestDB(t))
	_, err := s.Get(999)
	require.Error(t, err)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "get schedule", storeErr.Op)
	assert.True(t, IsNotFound(err))
}

func TestDelete(t *testing.T) {
	s := NewScheduleStore(openTestDB(t))
	report := dailyReport("census")
	require.NoError(t, s.Create(report))
	require.NoError(t, s.Delete(report.ID))

	_, err := s.Get(report.ID)
	assert.True(t, IsNotFound(err))
}

func TestRecorderBeginFinish(t *testing.T) {
	db := openTestDB(t)
	r := NewExecutionRecorder(db)

	executedAt := time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC)
	id, err := r.Begin(7, executedAt)
	require.NoError(t, err)

	var exec models.ReportExecution
	require.NoError(t, db.First(&exec, id).Error)
	assert.Equal(t, models.ExecutionRunning, exec.Status)
	assert.Equal(t, uint(7), exec.ScheduleID)

	count := 2
	require.NoError(t, r.Finish(id, models.ExecutionOutcome{
		Status:               models.ExecutionCompleted,
		Duration:             1500 * time.Millisecond,
		SuccessfulRecipients: &count,
		Payload:              []byte("<p>done</p>"),
	}))

	require.NoError(t, db.First(&exec, id).Error)
	assert.Equal(t, models.ExecutionCompleted, exec.Status)
	require.NotNil(t, exec.DurationMs)
	assert.Equal(t, int64(1500), *exec.DurationMs)
	require.NotNil(t, exec.SuccessfulRecipients)
	assert.Equal(t, 2, *exec.SuccessfulRecipients)
}

func TestRecorderListBySchedule(t *testing.T) {
	r := NewExecutionRecorder(openTestDB(t))

	base := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := r.Begin(1, base.AddDate(0, 0, i))
		require.NoError(t, err)
	}
	_, err := r.Begin(2, base)
	require.NoError(t, err)

	execs, err := r.ListBySchedule(1, 2)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	// Newest first.
	assert.True(t, execs[0].ExecutedAt.After(execs[1].ExecutedAt))
}

func TestRecorderSweepStale(t *testing.T) {
	db := openTestDB(t)
	r := NewExecutionRecorder(db)

	now := time.Now()
	staleID, err := r.Begin(1, now.Add(-3*time.Hour))
	require.NoError(t, err)
	freshID, err := r.Begin(1, now.Add(-5*time.Minute))
	require.NoError(t, err)

	swept, err := r.SweepStale(now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	var stale, fresh models.ReportExecution
	require.NoError(t, db.First(&stale, staleID).Error)
	require.NoError(t, db.First(&fresh, freshID).Error)
	assert.Equal(t, models.ExecutionFailed, stale.Status)
	assert.Contains(t, stale.ErrorSummary, "abandoned")
	assert.Equal(t, models.ExecutionRunning, fresh.Status)
}
