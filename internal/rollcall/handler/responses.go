package handler

import (
	"time"

	"presente/internal/rollcall/models"
)

// SessionResponse is the wire shape of a roll-call session.
type SessionResponse struct {
	ID       string    `json:"id"`
	GroupID  string    `json:"group_id"`
	Date     string    `json:"date"`
	Topic    string    `json:"topic"`
	Period   string    `json:"period"`
	OpenedAt time.Time `json:"opened_at"`
}

func FromSession(session *models.Session) SessionResponse {
	return SessionResponse{
		ID:       session.ID.String(),
		GroupID:  session.GroupID.String(),
		Date:     session.Date,
		Topic:    session.Topic,
		Period:   string(session.Period),
		OpenedAt: session.OpenedAt,
	}
}

// RecordResponse is the wire shape of one attendance record.
type RecordResponse struct {
	SessionID  string    `json:"session_id"`
	StudentID  string    `json:"student_id"`
	Present    bool      `json:"present"`
	RecordedAt time.Time `json:"recorded_at"`
}

func FromRecord(record *models.AttendanceRecord) RecordResponse {
	return RecordResponse{
		SessionID:  record.SessionID.String(),
		StudentID:  record.StudentID.String(),
		Present:    record.Present,
		RecordedAt: record.RecordedAt,
	}
}
