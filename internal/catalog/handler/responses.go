package handler

import (
	"time"

	"presente/internal/catalog/models"
)

// SubjectResponse is the wire shape of a subject.
type SubjectResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func FromSubject(subject *models.Subject) *SubjectResponse {
	return &SubjectResponse{
		ID:        subject.ID.String(),
		Name:      subject.Name,
		Code:      subject.Code,
		Active:    subject.Active,
		CreatedAt: subject.CreatedAt,
	}
}

func FromSubjects(subjects []*models.Subject) []*SubjectResponse {
	out := make([]*SubjectResponse, 0, len(subjects))
	for _, subject := range subjects {
		out = append(out, FromSubject(subject))
	}
	return out
}

// GroupResponse is the wire shape of a group.
type GroupResponse struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subject_id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	SessionOpen bool      `json:"session_open"`
	CreatedAt   time.Time `json:"created_at"`
}

func FromGroup(group *models.Group) *GroupResponse {
	return &GroupResponse{
		ID:          group.ID.String(),
		SubjectID:   group.SubjectID.String(),
		Name:        group.Name,
		Code:        group.Code,
		SessionOpen: group.SessionOpen,
		CreatedAt:   group.CreatedAt,
	}
}

func FromGroups(groups []*models.Group) []*GroupResponse {
	out := make([]*GroupResponse, 0, len(groups))
	for _, group := range groups {
		out = append(out, FromGroup(group))
	}
	return out
}

// ScheduleResponse is the wire shape of a schedule window.
type ScheduleResponse struct {
	ID      string `json:"id"`
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

func FromSchedule(schedule *models.Schedule) *ScheduleResponse {
	return &ScheduleResponse{
		ID:      schedule.ID.String(),
		Weekday: schedule.Weekday,
		Start:   schedule.Start,
		End:     schedule.End,
	}
}

func FromSchedules(schedules []*models.Schedule) []*ScheduleResponse {
	out := make([]*ScheduleResponse, 0, len(schedules))
	for _, schedule := range schedules {
		out = append(out, FromSchedule(schedule))
	}
	return out
}

// StudentResponse is the wire shape of a registered student.
type StudentResponse struct {
	ID        string    `json:"id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func FromStudent(student *models.Student) *StudentResponse {
	return &StudentResponse{
		ID:        student.ID.String(),
		Active:    student.Active,
		CreatedAt: student.CreatedAt,
	}
}

// TeacherResponse is the wire shape of a registered teacher.
type TeacherResponse struct {
	ID        string    `json:"id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func FromTeacher(teacher *models.Teacher) *TeacherResponse {
	return &TeacherResponse{
		ID:        teacher.ID.String(),
		Active:    teacher.Active,
		CreatedAt: teacher.CreatedAt,
	}
}
