package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careops/reportd/internal/models"
)

func intp(v int) *int { return &v }

func TestNextRunDaily(t *testing.T) {
	rule := models.RecurrenceRule{Frequency: models.FrequencyDaily, Hour: 2, Minute: 0, Timezone: "UTC"}

	// Before today's slot: fires today.
	now := time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC)
	next, err := NextRun(rule, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC), next)

	// Exactly at the slot: tomorrow, never equal to now.
	now = time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC)
	next, err = NextRun(rule, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 2, 0, 0, 0, time.UTC), next)

	// After the slot: tomorrow.
	now = time.Date(2024, 3, 10, 3, 0, 0, 0, time.UTC)
	next, err = NextRun(rule, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 2, 0, 0, 0, time.UTC), next)
}

func TestNextRunWeekly(t *testing.T) {
	tests := []struct {
		name string
		rule models.RecurrenceRule
		now  time.Time
		want time.Time
	}{
		{
			name: "later this week",
			rule: models.RecurrenceRule{Frequency: models.FrequencyWeekly, DayOfWeek: intp(5), Hour: 9, Minute: 30},
			// 2024-03-11 is a Monday.
			now:  time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			name: "target earlier in week wraps to next",
			rule: models.RecurrenceRule{Frequency: models.FrequencyWeekly, DayOfWeek: intp(1), Hour: 9, Minute: 0},
			// Friday; Monday already passed.
			now:  time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "same day time already passed",
			rule: models.RecurrenceRule{Frequency: models.FrequencyWeekly, DayOfWeek: intp(1), Hour: 9, Minute: 0},
			now:  time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "same day time still ahead",
			rule: models.RecurrenceRule{Frequency: models.FrequencyWeekly, DayOfWeek: intp(1), Hour: 9, Minute: 0},
			now:  time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "day of week defaults to Monday",
			rule: models.RecurrenceRule{Frequency: models.FrequencyWeekly, Hour: 7, Minute: 0},
			now:  time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 18, 7, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := NextRun(tt.rule, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
			assert.True(t, next.After(tt.now), "weekly next run must be strictly in the future")
			wantDay := time.Monday
			if tt.rule.DayOfWeek != nil {
				wantDay = time.Weekday(*tt.rule.DayOfWeek)
			}
			assert.Equal(t, wantDay, next.Weekday())
		})
	}
}

func TestNextRunMonthly(t *testing.T) {
	tests := []struct {
		name string
		rule models.RecurrenceRule
		now  time.Time
		want time.Time
	}{
		{
			name: "later this month",
			rule: models.RecurrenceRule{Frequency: models.FrequencyMonthly, DayOfMonth: intp(15), Hour: 6, Minute: 0},
			now:  time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 4, 15, 6, 0, 0, 0, time.UTC),
		},
		{
			name: "already passed rolls to next month",
			rule: models.RecurrenceRule{Frequency: models.FrequencyMonthly, DayOfMonth: intp(15), Hour: 6, Minute: 0},
			now:  time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 5, 15, 6, 0, 0, 0, time.UTC),
		},
		{
			name: "day 31 clamps in a 30-day month",
			rule: models.RecurrenceRule{Frequency: models.FrequencyMonthly, DayOfMonth: intp(31), Hour: 8, Minute: 0},
			now:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 6, 30, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "day 31 clamps in February",
			rule: models.RecurrenceRule{Frequency: models.FrequencyMonthly, DayOfMonth: intp(31), Hour: 8, Minute: 0},
			now:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "clamped day already passed rolls to full day next month",
			rule: models.RecurrenceRule{Frequency: models.FrequencyMonthly, DayOfMonth: intp(31), Hour: 8, Minute: 0},
			now:  time.Date(2024, 6, 30, 9, 0, 0, 0, time.UTC),
			want: time.Date(2024, 7, 31, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "december rolls to january",
			rule: models.RecurrenceRule{Frequency: models.FrequencyMonthly, DayOfMonth: intp(1), Hour: 0, Minute: 30},
			now:  time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC),
			want: time.Date(2025, 1, 1, 0, 30, 0, 0, time.UTC),
		},
		{
			name: "day of month defaults to the 1st",
			rule: models.RecurrenceRule{Frequency: models.FrequencyMonthly, Hour: 5, Minute: 0},
			now:  time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 5, 1, 5, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := NextRun(tt.rule, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestNextRunTimezone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	rule := models.RecurrenceRule{Frequency: models.FrequencyDaily, Hour: 2, Minute: 0, Timezone: "America/New_York"}

	// 01:00 New York is 05:00 UTC in winter; the 02:00 local slot is
	// still ahead even though it is already past 02:00 UTC.
	now := time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC)
	next, err := NextRun(rule, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 10, 2, 0, 0, 0, ny).Unix(), next.Unix())
}

func TestNextRunUnsupportedFrequency(t *testing.T) {
	rule := models.RecurrenceRule{Frequency: "quarterly", Hour: 2}
	_, err := NextRun(rule, time.Now())
	assert.ErrorIs(t, err, ErrUnsupportedFrequency)
}

func TestNextRunBadTimezone(t *testing.T) {
	rule := models.RecurrenceRule{Frequency: models.FrequencyDaily, Hour: 2, Timezone: "Mars/Olympus"}
	_, err := NextRun(rule, time.Now())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	ok := models.RecurrenceRule{Frequency: models.FrequencyWeekly, DayOfWeek: intp(3), Hour: 8, Minute: 15, Timezone: "UTC"}
	assert.NoError(t, Validate(ok))

	bad := []models.RecurrenceRule{
		{Frequency: "yearly", Hour: 8},
		{Frequency: models.FrequencyDaily, Hour: 24},
		{Frequency: models.FrequencyDaily, Hour: 8, Minute: 60},
		{Frequency: models.FrequencyWeekly, DayOfWeek: intp(7), Hour: 8},
		{Frequency: models.FrequencyMonthly, DayOfMonth: intp(0), Hour: 8},
		{Frequency: models.FrequencyMonthly, DayOfMonth: intp(32), Hour: 8},
		{Frequency: models.FrequencyDaily, Hour: 8, Timezone: "Nowhere/Nope"},
	}
	for _, rule := range bad {
		assert.Error(t, Validate(rule), "rule %+v should not validate", rule)
	}
}
