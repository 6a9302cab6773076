package models

import (
	"time"

	"gorm.io/gorm"
)

type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "PENDING"
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
)

// ReportExecution is one attempt at running a scheduled report. It is
// created RUNNING when the attempt starts and moved to exactly one
// terminal status when it ends. A crash between the two leaves the row
// RUNNING until the staleness sweep reaps it.
type ReportExecution struct {
	gorm.Model
	ScheduleID           uint            `gorm:"index;not null" json:"schedule_id"`
	ExecutedAt           time.Time       `json:"executed_at"`
	Status               ExecutionStatus `json:"status"`
	DurationMs           *int64          `json:"duration_ms,omitempty"`
	SuccessfulRecipients *int            `json:"successful_recipients,omitempty"`
	ErrorSummary         string          `json:"error_summary,omitempty"`
	Payload              []byte          `json:"-"`
}

// ExecutionOutcome carries the terminal result of one attempt from the
// engine to the recorder.
type ExecutionOutcome struct {
	Status               ExecutionStatus
	Duration             time.Duration
	SuccessfulRecipients *int
	ErrorSummary         string
	Payload              []byte
}
