package models

import (
	"time"

	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
)

// Student mirrors an identity-provider account. The ID is the provider's
// subject, so a verified bearer token is all a check-in needs to resolve the
// student.
type Student struct {
	ID        id.StudentID `json:"id"`
	PhoneUUID string       `json:"phone_uuid"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
}

func NewStudent(studentID id.StudentID, phoneUUID string, now time.Time) (*Student, error) {
	if studentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "student id is required")
	}
	return &Student{ID: studentID, PhoneUUID: phoneUUID, Active: true, CreatedAt: now}, nil
}

// Teacher mirrors an identity-provider teacher account.
type Teacher struct {
	ID        id.TeacherID `json:"id"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
}

func NewTeacher(teacherID id.TeacherID, now time.Time) (*Teacher, error) {
	if teacherID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "teacher id is required")
	}
	return &Teacher{ID: teacherID, Active: true, CreatedAt: now}, nil
}
