// Package schedule validates check-in times against class schedules.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/geoattend-api/internal/models"
)

// RescheduledPolicy selects how a class with status Rescheduled is validated.
type RescheduledPolicy string

const (
	// UseReschedule validates against the stored replacement slot.
	UseReschedule RescheduledPolicy = "use_reschedule"
	// UseOriginal ignores the reschedule and validates the weekly slot.
	UseOriginal RescheduledPolicy = "use_original"
	// NoTimeCheck allows marking at any time.
	NoTimeCheck RescheduledPolicy = "no_time_check"
	// Reject refuses every mark for a rescheduled class.
	Reject RescheduledPolicy = "reject"
)

// ParsePolicy normalises a configured policy name and rejects unknown values.
func ParsePolicy(raw string) (RescheduledPolicy, error) {
	policy := RescheduledPolicy(strings.ToLower(strings.TrimSpace(raw)))
	switch policy {
	case UseReschedule, UseOriginal, NoTimeCheck, Reject:
		return policy, nil
	default:
		return "", fmt.Errorf("unknown rescheduled policy %q", raw)
	}
}

var (
	// ErrOutsideWindow indicates the check-in time is outside the allowed window.
	ErrOutsideWindow = errors.New("outside attendance window")
	// ErrClassCancelled indicates the class is cancelled. It matches ErrOutsideWindow.
	ErrClassCancelled = fmt.Errorf("%w: class cancelled", ErrOutsideWindow)
	// ErrNoRescheduledTime indicates a rescheduled class has no replacement slot stored.
	ErrNoRescheduledTime = fmt.Errorf("%w: no rescheduled time stored", ErrOutsideWindow)
	// ErrInvalidSchedule indicates the stored schedule cannot be parsed.
	ErrInvalidSchedule = fmt.Errorf("%w: invalid class schedule", ErrOutsideWindow)
)

const dateLayout = models.AttendanceDateLayout

// Validator decides whether a moment falls inside a class's marking window.
type Validator struct {
	GraceBefore time.Duration
	GraceAfter  time.Duration
	Location    *time.Location
	Rescheduled RescheduledPolicy
}

func (v Validator) location() *time.Location {
	if v.Location == nil {
		return time.UTC
	}
	return v.Location
}

// IsWithinWindow reports whether now falls on the scheduled weekday between the start
// and end times, widened by the grace periods. Bounds are inclusive. An unparseable
// schedule is never open.
func (v Validator) IsWithinWindow(s models.Schedule, now time.Time) bool {
	day, err := ParseWeekday(s.DayOfWeek)
	if err != nil {
		return false
	}
	start, end, err := parseSlot(s.StartTime, s.EndTime)
	if err != nil {
		return false
	}

	local := now.In(v.location())
	// the grace period can spill into the neighbouring calendar day
	for _, offset := range []int{-1, 0, 1} {
		candidate := local.AddDate(0, 0, offset)
		if candidate.Weekday() != day {
			continue
		}
		if v.inside(candidate, start, end, local) {
			return true
		}
	}
	return false
}

// Check applies the class status rules and the time window to now.
func (v Validator) Check(class models.ClassSession, now time.Time) error {
	switch class.Status {
	case models.ClassStatusCancelled:
		return ErrClassCancelled
	case models.ClassStatusRescheduled:
		return v.checkRescheduled(class, now)
	}

	if err := validateSchedule(class.Schedule); err != nil {
		return err
	}
	if !v.IsWithinWindow(class.Schedule, now) {
		return ErrOutsideWindow
	}
	return nil
}

func (v Validator) checkRescheduled(class models.ClassSession, now time.Time) error {
	switch v.Rescheduled {
	case NoTimeCheck:
		return nil
	case Reject:
		return ErrOutsideWindow
	case UseOriginal:
		if err := validateSchedule(class.Schedule); err != nil {
			return err
		}
		if !v.IsWithinWindow(class.Schedule, now) {
			return ErrOutsideWindow
		}
		return nil
	default:
		if !class.Reschedule.IsSet() {
			return ErrNoRescheduledTime
		}
		open, err := v.withinReschedule(class, now)
		if err != nil {
			return err
		}
		if !open {
			return ErrOutsideWindow
		}
		return nil
	}
}

func (v Validator) withinReschedule(class models.ClassSession, now time.Time) (bool, error) {
	loc := v.location()
	date, err := time.ParseInLocation(dateLayout, class.Reschedule.Date, loc)
	if err != nil {
		return false, ErrInvalidSchedule
	}

	startRaw, endRaw := class.Reschedule.StartTime, class.Reschedule.EndTime
	if startRaw == "" {
		startRaw = class.Schedule.StartTime
	}
	if endRaw == "" {
		endRaw = class.Schedule.EndTime
	}
	start, end, err := parseSlot(startRaw, endRaw)
	if err != nil {
		return false, err
	}

	return v.inside(date, start, end, now.In(loc)), nil
}

func (v Validator) inside(day time.Time, start, end clock, now time.Time) bool {
	opens := start.on(day).Add(-v.GraceBefore)
	closes := end.on(day).Add(v.GraceAfter)
	return !now.Before(opens) && !now.After(closes)
}

// Occurrences lists the calendar days in [from, to] on which the class meets, as
// "YYYY-MM-DD" strings in ascending order. For a rescheduled class the replacement
// date and the weekly meeting it replaces follow the rescheduled policy:
//
//	use_reschedule  replacement date instead of the weekly meeting of that week
//	use_original    weekly meetings only
//	no_time_check   weekly meetings plus the replacement date
//	reject          the weekly meeting of that week is dropped, nothing replaces it
func (v Validator) Occurrences(class models.ClassSession, from, to time.Time) ([]string, error) {
	day, err := ParseWeekday(class.Schedule.DayOfWeek)
	if err != nil {
		return nil, err
	}

	loc := v.location()
	first := civilDay(from.In(loc))
	last := civilDay(to.In(loc))
	if last.Before(first) {
		return nil, nil
	}

	replaced, addReplacement := v.replacement(class)

	seen := map[string]struct{}{}
	dates := []string{}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != day {
			continue
		}
		if replaced != nil && v.Rescheduled != UseOriginal && v.Rescheduled != NoTimeCheck && sameWeek(d, *replaced) {
			continue
		}
		key := d.Format(dateLayout)
		seen[key] = struct{}{}
		dates = append(dates, key)
	}

	if replaced != nil && addReplacement && !replaced.Before(first) && !replaced.After(last) {
		key := replaced.Format(dateLayout)
		if _, dup := seen[key]; !dup {
			dates = append(dates, key)
			sort.Strings(dates)
		}
	}

	return dates, nil
}

// replacement returns the parsed reschedule date of a rescheduled class and whether
// the policy counts it as a meeting.
func (v Validator) replacement(class models.ClassSession) (*time.Time, bool) {
	if class.Status != models.ClassStatusRescheduled || !class.Reschedule.IsSet() {
		return nil, false
	}
	date, err := time.ParseInLocation(dateLayout, class.Reschedule.Date, v.location())
	if err != nil {
		return nil, false
	}
	switch v.Rescheduled {
	case UseOriginal, Reject:
		return &date, false
	default:
		return &date, true
	}
}

// sameWeek reports whether a and b fall in the same ISO week.
func sameWeek(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}

// DateOf returns the calendar day of t in the validator's location.
func (v Validator) DateOf(t time.Time) string {
	return t.In(v.location()).Format(dateLayout)
}

// ParseDate parses a "YYYY-MM-DD" day in the validator's location.
func (v Validator) ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(value), v.location())
}

// ParseWeekday accepts full or three-letter English weekday names in any case.
func ParseWeekday(name string) (time.Weekday, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if normalized == full || (len(normalized) == 3 && strings.HasPrefix(full, normalized)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("%w: unknown weekday %q", ErrInvalidSchedule, name)
}

// ValidateSchedule reports whether the weekly slot can be evaluated.
func ValidateSchedule(s models.Schedule) error {
	return validateSchedule(s)
}

func validateSchedule(s models.Schedule) error {
	if _, err := ParseWeekday(s.DayOfWeek); err != nil {
		return err
	}
	_, _, err := parseSlot(s.StartTime, s.EndTime)
	return err
}

type clock struct {
	hour   int
	minute int
}

func (c clock) on(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.minute, 0, 0, day.Location())
}

func (c clock) minutes() int {
	return c.hour*60 + c.minute
}

func parseClock(value string) (clock, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return clock{}, fmt.Errorf("%w: bad time %q", ErrInvalidSchedule, value)
	}
	return clock{hour: parsed.Hour(), minute: parsed.Minute()}, nil
}

func parseSlot(startRaw, endRaw string) (clock, clock, error) {
	start, err := parseClock(startRaw)
	if err != nil {
		return clock{}, clock{}, err
	}
	end, err := parseClock(endRaw)
	if err != nil {
		return clock{}, clock{}, err
	}
	if end.minutes() <= start.minutes() {
		return clock{}, clock{}, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidSchedule, endRaw, startRaw)
	}
	return start, end, nil
}

func civilDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
