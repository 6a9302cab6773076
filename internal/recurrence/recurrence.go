// Package recurrence computes the next occurrence of a report's
// recurrence rule. It is pure calendar arithmetic: no I/O, no clocks.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/careops/reportd/internal/models"
)

// ErrUnsupportedFrequency marks a rule the calculator cannot schedule.
// The owning report stays active but never acquires a next run; the
// error is surfaced to the operator rather than crashing the engine.
var ErrUnsupportedFrequency = errors.New("unsupported recurrence frequency")

const (
	defaultWeekday    = 1 // Monday
	defaultDayOfMonth = 1
)

// NextRun returns the first occurrence of rule strictly after now.
// All arithmetic happens in the rule's declared timezone; an empty
// timezone means UTC. DST gaps and overlaps resolve to whatever
// time.Date normalization yields for that offset.
func NextRun(rule models.RecurrenceRule, now time.Time) (time.Time, error) {
	loc, err := location(rule.Timezone)
	if err != nil {
		return time.Time{}, err
	}
	now = now.In(loc)

	candidate := time.Date(now.Year(), now.Month(), now.Day(), rule.Hour, rule.Minute, 0, 0, loc)

	switch rule.Frequency {
	case models.FrequencyDaily:
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate, nil

	case models.FrequencyWeekly:
		target := defaultWeekday
		if rule.DayOfWeek != nil {
			target = *rule.DayOfWeek
		}
		delta := target - int(candidate.Weekday())
		if delta < 0 || (delta == 0 && !candidate.After(now)) {
			delta += 7
		}
		return candidate.AddDate(0, 0, delta), nil

	case models.FrequencyMonthly:
		target := defaultDayOfMonth
		if rule.DayOfMonth != nil {
			target = *rule.DayOfMonth
		}
		next := onDayClamped(candidate.Year(), candidate.Month(), target, rule.Hour, rule.Minute, loc)
		if !next.After(now) {
			first := time.Date(candidate.Year(), candidate.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
			next = onDayClamped(first.Year(), first.Month(), target, rule.Hour, rule.Minute, loc)
		}
		return next, nil

	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnsupportedFrequency, rule.Frequency)
	}
}

// Validate rejects rules the calculator would never be able to
// schedule. Callers run it at registration time so configuration
// errors surface before a report is persisted.
func Validate(rule models.RecurrenceRule) error {
	switch rule.Frequency {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFrequency, rule.Frequency)
	}
	if rule.Hour < 0 || rule.Hour > 23 {
		return fmt.Errorf("hour out of range: %d", rule.Hour)
	}
	if rule.Minute < 0 || rule.Minute > 59 {
		return fmt.Errorf("minute out of range: %d", rule.Minute)
	}
	if rule.DayOfWeek != nil && (*rule.DayOfWeek < 0 || *rule.DayOfWeek > 6) {
		return fmt.Errorf("day_of_week out of range: %d", *rule.DayOfWeek)
	}
	if rule.DayOfMonth != nil && (*rule.DayOfMonth < 1 || *rule.DayOfMonth > 31) {
		return fmt.Errorf("day_of_month out of range: %d", *rule.DayOfMonth)
	}
	if _, err := location(rule.Timezone); err != nil {
		return err
	}
	return nil
}

func location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// onDayClamped builds a timestamp on the requested day of month,
// clamping to the month's last day when the month is shorter (day 31
// in June lands on the 30th, not July 1st).
func onDayClamped(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}
