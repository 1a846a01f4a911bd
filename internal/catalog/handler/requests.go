package handler

import (
	"strings"

	id "presente/pkg/domain"
	dErrors "presente/pkg/domain-errors"
)

// CreateSubjectRequest is the HTTP request body for POST /subjects.
type CreateSubjectRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

func (r *CreateSubjectRequest) Prepare() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Code = strings.TrimSpace(r.Code)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Code == "" {
		return dErrors.New(dErrors.CodeValidation, "code is required")
	}
	return nil
}

// CreateGroupRequest is the HTTP request body for POST /subjects/{subjectID}/groups.
type CreateGroupRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

func (r *CreateGroupRequest) Prepare() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Code = strings.TrimSpace(r.Code)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Code == "" {
		return dErrors.New(dErrors.CodeValidation, "code is required")
	}
	return nil
}

// AddScheduleRequest is the HTTP request body for POST /groups/{groupID}/schedules.
// Weekday is ISO: Monday=1 through Sunday=7. Clocks are zero-padded 24-hour
// HH:MM or HH:MM:SS; the model validates the format.
type AddScheduleRequest struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

func (r *AddScheduleRequest) Prepare() error {
	r.Start = strings.TrimSpace(r.Start)
	r.End = strings.TrimSpace(r.End)
	if r.Start == "" || r.End == "" {
		return dErrors.New(dErrors.CodeValidation, "start and end are required")
	}
	return nil
}

// RegisterStudentRequest is the HTTP request body for POST /students.
type RegisterStudentRequest struct {
	StudentID string `json:"student_id"`
	PhoneUUID string `json:"phone_uuid"`

	parsedStudentID id.StudentID
}

func (r *RegisterStudentRequest) Prepare() error {
	studentID, err := id.ParseStudentID(strings.TrimSpace(r.StudentID))
	if err != nil {
		return err
	}
	r.parsedStudentID = studentID
	r.PhoneUUID = strings.TrimSpace(r.PhoneUUID)
	return nil
}

func (r *RegisterStudentRequest) ParsedStudentID() id.StudentID { return r.parsedStudentID }

// RegisterTeacherRequest is the HTTP request body for POST /teachers.
type RegisterTeacherRequest struct {
	TeacherID string `json:"teacher_id"`

	parsedTeacherID id.TeacherID
}

func (r *RegisterTeacherRequest) Prepare() error {
	teacherID, err := id.ParseTeacherID(strings.TrimSpace(r.TeacherID))
	if err != nil {
		return err
	}
	r.parsedTeacherID = teacherID
	return nil
}

func (r *RegisterTeacherRequest) ParsedTeacherID() id.TeacherID { return r.parsedTeacherID }
