package models

import (
	"time"

	"gorm.io/gorm"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// RecurrenceRule describes when a scheduled report fires. DayOfWeek is
// only meaningful for weekly rules (0=Sunday..6=Saturday, default
// Monday), DayOfMonth only for monthly rules (default 1st). Times are
// wall-clock in the rule's IANA timezone.
type RecurrenceRule struct {
	Frequency  Frequency `json:"frequency"`
	DayOfWeek  *int      `json:"day_of_week,omitempty"`
	DayOfMonth *int      `json:"day_of_month,omitempty"`
	Hour       int       `json:"hour"`
	Minute     int       `json:"minute"`
	Timezone   string    `json:"timezone"`
}

type ScheduledReport struct {
	gorm.Model
	Name       string         `gorm:"uniqueIndex;not null" json:"name"`
	TemplateID string         `gorm:"not null" json:"template_id"`
	Rule       RecurrenceRule `gorm:"embedded;embeddedPrefix:rule_" json:"rule"`
	Recipients []string       `gorm:"serializer:json" json:"recipients"`
	Active     bool           `gorm:"default:true" json:"active"`
	LastRunAt  *time.Time     `json:"last_run_at"`
	NextRunAt  *time.Time     `gorm:"index" json:"next_run_at"`
	CreatedBy  string         `json:"created_by"`
}

// Schedulable reports an actionable job: active with a computed next
// run. A report with a bad rule stays active but never acquires a
// NextRunAt, which is how configuration errors surface to operators.
func (s *ScheduledReport) Schedulable() bool {
	return s.Active && s.NextRunAt != nil
}
