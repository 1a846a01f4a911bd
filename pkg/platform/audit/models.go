// Package audit captures the attendance event trail. Services emit events on
// every roll-call transition and enrollment batch; sinks fan out to the log,
// an append-only store, and (when brokers are configured) a Kafka topic that
// the export and notification services consume.
package audit

import "time"

// Actions emitted by the core.
const (
	ActionSessionOpened    = "session.opened"
	ActionSessionClosed    = "session.closed"
	ActionSessionCancelled = "session.cancelled"
	ActionCheckedIn        = "attendance.checked_in"
	ActionCheckInToggled   = "attendance.toggled"
	ActionStudentsAssigned = "enrollment.students_assigned"
	ActionTeacherAssigned  = "enrollment.teacher_assigned"
	ActionStudentMoved     = "enrollment.student_transferred"
)

// Event is emitted from domain logic to record key actions. It stays
// transport-agnostic (plain strings, no typed IDs) so sinks can fan out
// without importing feature packages.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id,omitempty"`
	Role      string    `json:"role,omitempty"`
	GroupID   string    `json:"group_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	StudentID string    `json:"student_id,omitempty"`
	Period    string    `json:"period,omitempty"`
	// Present/Absent carry the reconciliation outcome on session.closed so
	// downstream consumers can render reports without a read-back.
	Present int `json:"present,omitempty"`
	Absent  int `json:"absent,omitempty"`

	RequestID      string `json:"request_id,omitempty"`
	ClientIP       string `json:"client_ip,omitempty"`
	ClientPlatform string `json:"client_platform,omitempty"`
}
