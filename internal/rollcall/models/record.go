package models

import (
	"time"

	id "presente/pkg/domain"
)

// AttendanceRecord is keyed by (student, session): at most one per pair.
// Present rows come from self check-ins, absent rows from the close-time
// reconciliation pass; manual overrides flip the flag in place.
type AttendanceRecord struct {
	SessionID  id.SessionID `json:"session_id"`
	StudentID  id.StudentID `json:"student_id"`
	Present    bool         `json:"present"`
	RecordedAt time.Time    `json:"recorded_at"`
}

// NewCheckIn builds the present record a student's self check-in creates.
func NewCheckIn(sessionID id.SessionID, studentID id.StudentID, now time.Time) *AttendanceRecord {
	return &AttendanceRecord{
		SessionID:  sessionID,
		StudentID:  studentID,
		Present:    true,
		RecordedAt: now,
	}
}

// NewAbsence builds the absent record the reconciliation pass creates for an
// enrolled student who never checked in.
func NewAbsence(sessionID id.SessionID, studentID id.StudentID, closedAt time.Time) *AttendanceRecord {
	return &AttendanceRecord{
		SessionID:  sessionID,
		StudentID:  studentID,
		Present:    false,
		RecordedAt: closedAt,
	}
}

// Toggle flips the present flag, stamping when the correction happened.
func (r *AttendanceRecord) Toggle(now time.Time) {
	r.Present = !r.Present
	r.RecordedAt = now
}
