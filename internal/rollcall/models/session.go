// Package models holds the roll-call domain types: the session (one roll
// call of one group on one calendar date) and the attendance records that
// hang off it.
package models

import (
	"strings"
	"time"

	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
)

// DateLayout is the calendar-date key format. All "today" comparisons use
// the server's local calendar date.
const DateLayout = "2006-01-02"

// DateKey reduces a timestamp to its calendar date.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// Session is one roll call: at most one per (group, date). The group's
// session-open flag says whether it is live; the row itself survives until
// Close finalizes it or Cancel hard-deletes it.
type Session struct {
	ID       id.SessionID `json:"id"`
	GroupID  id.GroupID   `json:"group_id"`
	Date     string       `json:"date"`
	Topic    string       `json:"topic"`
	Period   id.Period    `json:"period"`
	OpenedAt time.Time    `json:"opened_at"`
}

func NewSession(sessionID id.SessionID, groupID id.GroupID, topic string, period id.Period, now time.Time) (*Session, error) {
	topic = strings.TrimSpace(topic)
	if groupID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session requires a group")
	}
	if topic == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session topic cannot be empty")
	}
	if period.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session requires a period")
	}
	return &Session{
		ID:       sessionID,
		GroupID:  groupID,
		Date:     DateKey(now),
		Topic:    topic,
		Period:   period,
		OpenedAt: now,
	}, nil
}
