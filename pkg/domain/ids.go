// Package domain holds the typed identifiers and small value types shared by
// every feature package. IDs are distinct types over uuid.UUID so a GroupID
// can never be passed where a StudentID is expected; the mistake becomes a
// compile error instead of a data-corruption bug.
package domain

import (
	"github.com/google/uuid"

	dErrors "presente/pkg/domain-errors"
)

type (
	// SubjectID identifies a subject (course of study).
	SubjectID uuid.UUID
	// GroupID identifies a group (a section of a subject).
	GroupID uuid.UUID
	// ScheduleID identifies a deduplicated schedule window.
	ScheduleID uuid.UUID
	// GroupPeriodID identifies the binding of a group to one academic period.
	GroupPeriodID uuid.UUID
	// SessionID identifies one roll-call session of a group on one date.
	SessionID uuid.UUID
	// StudentID is the identity-provider subject of a student account.
	StudentID uuid.UUID
	// TeacherID is the identity-provider subject of a teacher account.
	TeacherID uuid.UUID
)

func (id SubjectID) String() string     { return uuid.UUID(id).String() }
func (id GroupID) String() string       { return uuid.UUID(id).String() }
func (id ScheduleID) String() string    { return uuid.UUID(id).String() }
func (id GroupPeriodID) String() string { return uuid.UUID(id).String() }
func (id SessionID) String() string     { return uuid.UUID(id).String() }
func (id StudentID) String() string     { return uuid.UUID(id).String() }
func (id TeacherID) String() string     { return uuid.UUID(id).String() }

func (id SubjectID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id GroupID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ScheduleID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id GroupPeriodID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id StudentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id TeacherID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared invariant: IDs arriving from the outside must
// be valid, non-empty, non-nil UUIDs.
func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is required", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is not a valid UUID", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id must not be the nil UUID", kind)
	}
	return u, nil
}

func ParseSubjectID(s string) (SubjectID, error) {
	u, err := parseUUID("subject", s)
	return SubjectID(u), err
}

func ParseGroupID(s string) (GroupID, error) {
	u, err := parseUUID("group", s)
	return GroupID(u), err
}

func ParseScheduleID(s string) (ScheduleID, error) {
	u, err := parseUUID("schedule", s)
	return ScheduleID(u), err
}

func ParseGroupPeriodID(s string) (GroupPeriodID, error) {
	u, err := parseUUID("group period", s)
	return GroupPeriodID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID("session", s)
	return SessionID(u), err
}

func ParseStudentID(s string) (StudentID, error) {
	u, err := parseUUID("student", s)
	return StudentID(u), err
}

func ParseTeacherID(s string) (TeacherID, error) {
	u, err := parseUUID("teacher", s)
	return TeacherID(u), err
}
