// Package scheduler orchestrates one tick of the recurring report
// pipeline: find due schedules, run each one exactly once, record what
// happened to every recipient, and advance the schedule.
package scheduler

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/careops/reportd/internal/delivery"
	"github.com/careops/reportd/internal/models"
	"github.com/careops/reportd/internal/recurrence"
	"github.com/careops/reportd/internal/report"
)

// Store is the slice of the schedule store the engine needs.
type Store interface {
	Get(id uint) (*models.ScheduledReport, error)
	ListDue(now time.Time) ([]models.ScheduledReport, error)
	Reschedule(id uint, lastRun time.Time, next *time.Time) error
}

// Recorder writes execution history.
type Recorder interface {
	Begin(scheduleID uint, executedAt time.Time) (uint, error)
	Finish(executionID uint, outcome models.ExecutionOutcome) error
	SweepStale(now time.Time, olderThan time.Duration) (int64, error)
}

// Generator produces the report payload for a template reference.
type Generator interface {
	Generate(templateID string) (*report.Payload, error)
}

// Dispatcher fans a payload out to recipients.
type Dispatcher interface {
	Send(recipients []string, payload *report.Payload) ([]delivery.Result, error)
}

// Notifier surfaces operator-facing events. Optional.
type Notifier interface {
	NotifyRunFailed(schedule *models.ScheduledReport, errSummary string)
	NotifyConfigError(schedule *models.ScheduledReport, err error)
}

type Engine struct {
	store      Store
	recorder   Recorder
	generator  Generator
	dispatcher Dispatcher
	notifier   Notifier
	log        zerolog.Logger

	staleAfter time.Duration
	now        func() time.Time

	// Guards against overlapping ticks within this process. Cross-
	// process exclusion is the trigger's responsibility.
	tickMu sync.Mutex
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithStaleAfter sets the age past which a RUNNING execution is
// considered abandoned and swept to FAILED at the next tick.
func WithStaleAfter(d time.Duration) Option {
	return func(e *Engine) { e.staleAfter = d }
}

// WithClock replaces the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, recorder Recorder, generator Generator, dispatcher Dispatcher, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		recorder:   recorder,
		generator:  generator,
		dispatcher: dispatcher,
		log:        log,
		staleAfter: time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TickSummary reports what one tick did.
type TickSummary struct {
	Due       int `json:"due"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Swept     int `json:"swept"`
}

// ErrTickInProgress is returned when a tick overlaps a running one.
var ErrTickInProgress = fmt.Errorf("scheduler: tick already in progress")

// Tick drains one due-list snapshot. Jobs run strictly sequentially;
// any single job's failure is logged and never aborts the batch. The
// only hard failure is the due query itself, which means the store is
// unreachable and backoff is the trigger's call.
func (e *Engine) Tick() (TickSummary, error) {
	if !e.tickMu.TryLock() {
		return TickSummary{}, ErrTickInProgress
	}
	defer e.tickMu.Unlock()

	var summary TickSummary
	now := e.now()

	if e.staleAfter > 0 {
		swept, err := e.recorder.SweepStale(now, e.staleAfter)
		if err != nil {
			e.log.Error().Err(err).Msg("stale execution sweep failed")
		}
		summary.Swept = int(swept)
	}

	due, err := e.store.ListDue(now)
	if err != nil {
		return summary, err
	}
	summary.Due = len(due)

	for i := range due {
		switch e.runJob(due[i].ID) {
		case models.ExecutionCompleted:
			summary.Completed++
		case models.ExecutionFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}

	e.log.Info().
		Int("due", summary.Due).
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Msg("tick finished")
	return summary, nil
}

// RunNow executes a single schedule through the same pipeline,
// regardless of whether it is due.
func (e *Engine) RunNow(id uint) (models.ExecutionStatus, error) {
	status := e.runJob(id)
	if status == "" {
		return "", fmt.Errorf("scheduler: run of schedule %d was abandoned", id)
	}
	return status, nil
}

// runJob is the per-job pipeline: fetch, generate, dispatch, record,
// reschedule. It returns the terminal execution status, or "" when the
// job was abandoned before an outcome could be recorded. Every exit
// path past Begin still reaches the reschedule step: a schedule that
// fails every run keeps advancing to its next slot.
func (e *Engine) runJob(id uint) models.ExecutionStatus {
	log := e.log.With().Uint("schedule_id", id).Logger()

	// Re-read the full record; the due snapshot may be stale.
	schedule, err := e.store.Get(id)
	if err != nil {
		log.Error().Err(err).Msg("schedule vanished from due list, skipping")
		return ""
	}

	started := e.now()
	execID, err := e.recorder.Begin(schedule.ID, started)
	if err != nil {
		log.Error().Err(err).Msg("could not open execution record, abandoning job this tick")
		return ""
	}

	outcome := e.attempt(schedule)
	outcome.Duration = e.now().Sub(started)

	if err := e.recorder.Finish(execID, outcome); err != nil {
		log.Error().Err(err).Msg("could not finalize execution record")
	}

	if outcome.Status == models.ExecutionFailed {
		log.Warn().Str("error", outcome.ErrorSummary).Msg("report run failed")
		if e.notifier != nil {
			e.notifier.NotifyRunFailed(schedule, outcome.ErrorSummary)
		}
	}

	e.reschedule(schedule, started, log)
	return outcome.Status
}

// attempt runs generation and dispatch, producing the terminal
// outcome. Generation failure short-circuits dispatch but is still a
// recorded, rescheduled run.
func (e *Engine) attempt(schedule *models.ScheduledReport) models.ExecutionOutcome {
	payload, err := e.generator.Generate(schedule.TemplateID)
	if err != nil {
		return models.ExecutionOutcome{
			Status:       models.ExecutionFailed,
			ErrorSummary: err.Error(),
		}
	}

	results, err := e.dispatcher.Send(schedule.Recipients, payload)
	if err != nil {
		// Empty recipient set or unusable transport: nothing was
		// attempted at all.
		return models.ExecutionOutcome{
			Status:       models.ExecutionFailed,
			ErrorSummary: err.Error(),
			Payload:      payload.HTML,
		}
	}

	succeeded := 0
	var failures []string
	for _, res := range results {
		if res.Success {
			succeeded++
			continue
		}
		failures = append(failures, fmt.Sprintf("%s: %s", res.Recipient, res.Error))
	}

	outcome := models.ExecutionOutcome{
		Status:               models.ExecutionCompleted,
		SuccessfulRecipients: &succeeded,
		Payload:              payload.HTML,
	}
	if len(failures) > 0 {
		// Partial delivery is still a failed run at the job level; the
		// success count stays on the record for audit.
		outcome.Status = models.ExecutionFailed
		outcome.ErrorSummary = fmt.Sprintf("%d failed: %s", len(failures), strings.Join(failures, ", "))
	}
	return outcome
}

// reschedule advances the schedule to its next slot from the current
// rule, whatever the run's outcome was. A rule the calculator rejects
// parks the schedule (nil next run) and tells the operator.
func (e *Engine) reschedule(schedule *models.ScheduledReport, ranAt time.Time, log zerolog.Logger) {
	var nextp *time.Time
	next, err := recurrence.NextRun(schedule.Rule, ranAt)
	if err != nil {
		log.Error().Err(err).Msg("schedule is no longer schedulable")
		if e.notifier != nil {
			e.notifier.NotifyConfigError(schedule, err)
		}
	} else {
		nextp = &next
	}

	if err := e.store.Reschedule(schedule.ID, ranAt, nextp); err != nil {
		log.Error().Err(err).Msg("reschedule failed, job abandoned for this tick")
	}
}
