package models

import (
	"fmt"
	"regexp"
	"time"

	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
)

// clockPattern accepts zero-padded 24-hour HH:MM or HH:MM:SS strings. The
// zero padding is what makes lexical comparison of two clocks valid.
var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

// Schedule is one weekly class window. Rows are deduplicated: creating an
// identical (weekday, start, end) tuple reuses the existing row, and groups
// share rows through the join table.
//
// Weekday follows ISO ordering: Monday=1 through Sunday=7.
type Schedule struct {
	ID      id.ScheduleID `json:"id"`
	Weekday int           `json:"weekday"`
	Start   string        `json:"start"`
	End     string        `json:"end"`
}

func NewSchedule(scheduleID id.ScheduleID, weekday int, start, end string) (*Schedule, error) {
	if weekday < 1 || weekday > 7 {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "weekday %d must be between 1 (Monday) and 7 (Sunday)", weekday)
	}
	if !clockPattern.MatchString(start) {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "start time %q must be a zero-padded 24-hour clock", start)
	}
	if !clockPattern.MatchString(end) {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "end time %q must be a zero-padded 24-hour clock", end)
	}
	if start >= end {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "schedule window %s-%s must start before it ends", start, end)
	}
	return &Schedule{ID: scheduleID, Weekday: weekday, Start: start, End: end}, nil
}

// Key identifies the deduplicated tuple.
func (s *Schedule) Key() string {
	return fmt.Sprintf("%d|%s|%s", s.Weekday, s.Start, s.End)
}

// Matches reports whether t falls inside this window: same ISO weekday and
// start<=clock<=end. Both operands are zero-padded clock strings, so the
// comparison is lexical.
func (s *Schedule) Matches(t time.Time) bool {
	if isoWeekday(t) != s.Weekday {
		return false
	}
	clock := t.Format("15:04")
	if len(s.Start) == 8 { // HH:MM:SS windows compare against HH:MM:SS clocks
		clock = t.Format("15:04:05")
	}
	return s.Start <= clock && clock <= s.End
}

// AnyScheduleMatches is the OpenSession gate: logical OR across the group's
// windows.
func AnyScheduleMatches(schedules []*Schedule, t time.Time) bool {
	for _, s := range schedules {
		if s.Matches(t) {
			return true
		}
	}
	return false
}

// isoWeekday converts Go's Sunday=0 convention to ISO Monday=1..Sunday=7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
