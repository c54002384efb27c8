// Package recurrence computes occurrences of recurring tasks.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bizhub-backend/pkg/models"
)

var (
	ErrInvalidRule = errors.New("invalid recurrence rule")
	// ErrEnded means the rule has no occurrence left after the reference time.
	ErrEnded = errors.New("recurrence has ended")
)

// Validate checks rule and normalizes a zero interval to 1.
func Validate(rule *models.RecurrenceRule) error {
	if rule == nil {
		return nil
	}
	switch rule.Frequency {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyYearly:
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, rule.Frequency)
	}
	if rule.Interval < 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidRule)
	}
	if rule.Interval == 0 {
		rule.Interval = 1
	}
	for _, d := range rule.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: day of week %d out of range", ErrInvalidRule, d)
		}
	}
	if rule.DayOfMonth < 0 || rule.DayOfMonth > 31 {
		return fmt.Errorf("%w: day of month %d out of range", ErrInvalidRule, rule.DayOfMonth)
	}
	return nil
}

// Next returns the first occurrence strictly after `after`, keeping its
// time of day. It reports false once the rule's end date is passed.
func Next(rule models.RecurrenceRule, after time.Time) (time.Time, bool) {
	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	var next time.Time
	switch rule.Frequency {
	case models.FrequencyDaily:
		next = after.AddDate(0, 0, interval)
	case models.FrequencyWeekly:
		next = nextWeekly(rule.DaysOfWeek, interval, after)
	case models.FrequencyMonthly:
		next = nextMonthly(rule.DayOfMonth, interval, after)
	case models.FrequencyYearly:
		next = atDay(after, after.Year()+interval, after.Month(), after.Day())
	default:
		return time.Time{}, false
	}

	if rule.EndDate != nil && next.After(*rule.EndDate) {
		return time.Time{}, false
	}
	return next, true
}

func nextWeekly(days []int, interval int, after time.Time) time.Time {
	if len(days) == 0 {
		return after.AddDate(0, 0, 7*interval)
	}
	want := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		want[time.Weekday(d)] = true
	}
	origin := weekStart(after)
	for i := 1; i <= 7*(interval+1); i++ {
		d := after.AddDate(0, 0, i)
		if !want[d.Weekday()] {
			continue
		}
		if weeks := daysBetween(origin, weekStart(d)) / 7; weeks%interval == 0 {
			return d
		}
	}
	// unreachable with valid weekdays
	return after.AddDate(0, 0, 7*interval)
}

func nextMonthly(dayOfMonth, interval int, after time.Time) time.Time {
	day := dayOfMonth
	if day == 0 {
		day = after.Day()
	}
	if candidate := atDay(after, after.Year(), after.Month(), day); candidate.After(after) {
		return candidate
	}
	return atDay(after, after.Year(), after.Month()+time.Month(interval), day)
}

// atDay builds year/month/day at ref's clock, clamping day to the month length.
// month may overflow 12; time.Date normalizes it.
func atDay(ref time.Time, year int, month time.Month, day int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, ref.Location())
	if last := daysIn(first.Year(), first.Month(), ref.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func weekStart(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -int(t.Weekday()))
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours()+12) / 24
}

// Schedule recomputes task.NextOccurrenceAt from its due date (or now).
// Non-recurring tasks get a nil NextOccurrenceAt.
func Schedule(task *models.Task, now time.Time) error {
	if task.RecurrenceRule == nil {
		task.NextOccurrenceAt = nil
		return nil
	}
	if err := Validate(task.RecurrenceRule); err != nil {
		return err
	}
	base := now
	if task.DueDate != nil {
		base = *task.DueDate
	}
	next, ok := Next(*task.RecurrenceRule, base)
	if !ok {
		return ErrEnded
	}
	task.NextOccurrenceAt = &next
	return nil
}

// Successor builds the next occurrence of a recurring task. It reports
// false for non-recurring tasks and for chains whose rule has ended.
// The successor drops its rule when no occurrence would follow it.
func Successor(task models.Task, now time.Time) (models.Task, bool) {
	if task.RecurrenceRule == nil {
		return models.Task{}, false
	}
	due := task.NextOccurrenceAt
	if due == nil {
		base := now
		if task.DueDate != nil {
			base = *task.DueDate
		}
		next, ok := Next(*task.RecurrenceRule, base)
		if !ok {
			return models.Task{}, false
		}
		due = &next
	}

	root := task.ParentTaskID
	if root == "" {
		root = task.ID
	}
	rule := *task.RecurrenceRule
	succ := models.Task{
		ID:             uuid.NewString(),
		OrgID:          task.OrgID,
		Title:          task.Title,
		Description:    task.Description,
		Status:         models.TaskPending,
		Priority:       task.Priority,
		AssigneeID:     task.AssigneeID,
		CreatorID:      task.CreatorID,
		DueDate:        due,
		RecurrenceRule: &rule,
		ParentTaskID:   root,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := Schedule(&succ, now); err != nil {
		succ.RecurrenceRule = nil
		succ.NextOccurrenceAt = nil
	}
	return succ, true
}
