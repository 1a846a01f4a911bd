package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"presente/internal/catalog/models"
	id "presente/pkg/domain"
	"presente/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return ErrConflict when a uniqueness constraint rejects the write
// - Return ErrInvalidState when a compare-and-set precondition fails
// - Return nil for successful operations

// InMemoryStore keeps the whole catalog in process memory for tests/dev.
// Values are copied in and out so callers never share mutable state with the
// store.
type InMemoryStore struct {
	mu            sync.RWMutex
	subjects      map[id.SubjectID]models.Subject
	groups        map[id.GroupID]models.Group
	groupCodes    map[string]id.GroupID
	schedules     map[id.ScheduleID]models.Schedule
	scheduleKeys  map[string]id.ScheduleID
	groupLinks    map[id.GroupID]map[id.ScheduleID]struct{}
	groupPeriods  map[string]models.GroupPeriod
	students      map[id.StudentID]models.Student
	teachers      map[id.TeacherID]models.Teacher
	studentPhones map[string]id.StudentID
}

// NewMemory constructs an empty in-memory catalog store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		subjects:      make(map[id.SubjectID]models.Subject),
		groups:        make(map[id.GroupID]models.Group),
		groupCodes:    make(map[string]id.GroupID),
		schedules:     make(map[id.ScheduleID]models.Schedule),
		scheduleKeys:  make(map[string]id.ScheduleID),
		groupLinks:    make(map[id.GroupID]map[id.ScheduleID]struct{}),
		groupPeriods:  make(map[string]models.GroupPeriod),
		students:      make(map[id.StudentID]models.Student),
		teachers:      make(map[id.TeacherID]models.Teacher),
		studentPhones: make(map[string]id.StudentID),
	}
}

func groupPeriodKey(groupID id.GroupID, period id.Period) string {
	return groupID.String() + "|" + string(period)
}

func (s *InMemoryStore) CreateSubject(_ context.Context, subject *models.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[subject.ID]; ok {
		return fmt.Errorf("subject %s: %w", subject.ID, sentinel.ErrConflict)
	}
	for _, existing := range s.subjects {
		if existing.Code == subject.Code {
			return fmt.Errorf("subject code %q: %w", subject.Code, sentinel.ErrConflict)
		}
		if existing.Name == subject.Name {
			return fmt.Errorf("subject name %q: %w", subject.Name, sentinel.ErrConflict)
		}
	}
	s.subjects[subject.ID] = *subject
	return nil
}

func (s *InMemoryStore) FindSubjectByID(_ context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if subject, ok := s.subjects[subjectID]; ok {
		return &subject, nil
	}
	return nil, fmt.Errorf("subject %s: %w", subjectID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListSubjects(_ context.Context) ([]*models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Subject, 0, len(s.subjects))
	for _, subject := range s.subjects {
		copied := subject
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *InMemoryStore) UpdateSubject(_ context.Context, subject *models.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[subject.ID]; !ok {
		return fmt.Errorf("subject %s: %w", subject.ID, sentinel.ErrNotFound)
	}
	s.subjects[subject.ID] = *subject
	return nil
}

func (s *InMemoryStore) CreateGroup(_ context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.ID]; ok {
		return fmt.Errorf("group %s: %w", group.ID, sentinel.ErrConflict)
	}
	if _, ok := s.groupCodes[group.Code]; ok {
		return fmt.Errorf("group code %q: %w", group.Code, sentinel.ErrConflict)
	}
	if _, ok := s.subjects[group.SubjectID]; !ok {
		return fmt.Errorf("subject %s: %w", group.SubjectID, sentinel.ErrNotFound)
	}
	s.groups[group.ID] = *group
	s.groupCodes[group.Code] = group.ID
	return nil
}

func (s *InMemoryStore) FindGroupByID(_ context.Context, groupID id.GroupID) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if group, ok := s.groups[groupID]; ok {
		return &group, nil
	}
	return nil, fmt.Errorf("group %s: %w", groupID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListGroupsBySubject(_ context.Context, subjectID id.SubjectID) ([]*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Group
	for _, group := range s.groups {
		if group.SubjectID == subjectID {
			copied := group
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// ClaimSessionTransition flips the group's session flag from->to atomically.
// A second caller racing the same transition loses with ErrInvalidState; the
// service maps that to a conflict the client can understand.
func (s *InMemoryStore) ClaimSessionTransition(_ context.Context, groupID id.GroupID, from, to bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, sentinel.ErrNotFound)
	}
	if group.SessionOpen != from {
		return fmt.Errorf("group %s session open is %t: %w", groupID, group.SessionOpen, sentinel.ErrInvalidState)
	}
	group.SessionOpen = to
	s.groups[groupID] = group
	return nil
}

// EnsureSchedule returns the existing row for an identical (weekday, start,
// end) tuple or persists the given one.
func (s *InMemoryStore) EnsureSchedule(_ context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existingID, ok := s.scheduleKeys[schedule.Key()]; ok {
		existing := s.schedules[existingID]
		return &existing, nil
	}
	s.schedules[schedule.ID] = *schedule
	s.scheduleKeys[schedule.Key()] = schedule.ID
	copied := *schedule
	return &copied, nil
}

func (s *InMemoryStore) LinkSchedule(_ context.Context, groupID id.GroupID, scheduleID id.ScheduleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return fmt.Errorf("group %s: %w", groupID, sentinel.ErrNotFound)
	}
	if _, ok := s.schedules[scheduleID]; !ok {
		return fmt.Errorf("schedule %s: %w", scheduleID, sentinel.ErrNotFound)
	}
	links, ok := s.groupLinks[groupID]
	if !ok {
		links = make(map[id.ScheduleID]struct{})
		s.groupLinks[groupID] = links
	}
	if _, ok := links[scheduleID]; ok {
		return fmt.Errorf("group %s schedule %s: %w", groupID, scheduleID, sentinel.ErrAlreadyUsed)
	}
	links[scheduleID] = struct{}{}
	return nil
}

func (s *InMemoryStore) UnlinkSchedule(_ context.Context, groupID id.GroupID, scheduleID id.ScheduleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	links, ok := s.groupLinks[groupID]
	if !ok {
		return fmt.Errorf("group %s schedule %s: %w", groupID, scheduleID, sentinel.ErrNotFound)
	}
	if _, ok := links[scheduleID]; !ok {
		return fmt.Errorf("group %s schedule %s: %w", groupID, scheduleID, sentinel.ErrNotFound)
	}
	delete(links, scheduleID)
	return nil
}

func (s *InMemoryStore) ListSchedulesByGroup(_ context.Context, groupID id.GroupID) ([]*models.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Schedule
	for scheduleID := range s.groupLinks[groupID] {
		schedule := s.schedules[scheduleID]
		out = append(out, &schedule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// UpsertGroupPeriod creates or replaces the single row per (group, period).
// The incoming row's ID is discarded when a row already exists.
func (s *InMemoryStore) UpsertGroupPeriod(_ context.Context, groupPeriod *models.GroupPeriod) (*models.GroupPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupPeriod.GroupID]; !ok {
		return nil, fmt.Errorf("group %s: %w", groupPeriod.GroupID, sentinel.ErrNotFound)
	}
	key := groupPeriodKey(groupPeriod.GroupID, groupPeriod.Period)
	if existing, ok := s.groupPeriods[key]; ok {
		existing.TeacherID = groupPeriod.TeacherID
		existing.UpdatedAt = groupPeriod.UpdatedAt
		s.groupPeriods[key] = existing
		return &existing, nil
	}
	s.groupPeriods[key] = *groupPeriod
	copied := *groupPeriod
	return &copied, nil
}

func (s *InMemoryStore) FindGroupPeriod(_ context.Context, groupID id.GroupID, period id.Period) (*models.GroupPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if groupPeriod, ok := s.groupPeriods[groupPeriodKey(groupID, period)]; ok {
		return &groupPeriod, nil
	}
	return nil, fmt.Errorf("group %s period %s: %w", groupID, period, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListGroupPeriodsByGroup(_ context.Context, groupID id.GroupID) ([]*models.GroupPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.GroupPeriod
	for _, groupPeriod := range s.groupPeriods {
		if groupPeriod.GroupID == groupID {
			copied := groupPeriod
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

func (s *InMemoryStore) ListGroupPeriodsByTeacher(_ context.Context, teacherID id.TeacherID, period id.Period) ([]*models.GroupPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.GroupPeriod
	for _, groupPeriod := range s.groupPeriods {
		if groupPeriod.Period != period {
			continue
		}
		if groupPeriod.TaughtBy(teacherID) {
			copied := groupPeriod
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID.String() < out[j].GroupID.String() })
	return out, nil
}

func (s *InMemoryStore) CreateStudent(_ context.Context, student *models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[student.ID]; ok {
		return fmt.Errorf("student %s: %w", student.ID, sentinel.ErrConflict)
	}
	if student.PhoneUUID != "" {
		if _, ok := s.studentPhones[student.PhoneUUID]; ok {
			return fmt.Errorf("student phone %q: %w", student.PhoneUUID, sentinel.ErrConflict)
		}
		s.studentPhones[student.PhoneUUID] = student.ID
	}
	s.students[student.ID] = *student
	return nil
}

func (s *InMemoryStore) FindStudentByID(_ context.Context, studentID id.StudentID) (*models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if student, ok := s.students[studentID]; ok {
		return &student, nil
	}
	return nil, fmt.Errorf("student %s: %w", studentID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) CreateTeacher(_ context.Context, teacher *models.Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teachers[teacher.ID]; ok {
		return fmt.Errorf("teacher %s: %w", teacher.ID, sentinel.ErrConflict)
	}
	s.teachers[teacher.ID] = *teacher
	return nil
}

func (s *InMemoryStore) FindTeacherByID(_ context.Context, teacherID id.TeacherID) (*models.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if teacher, ok := s.teachers[teacherID]; ok {
		return &teacher, nil
	}
	return nil, fmt.Errorf("teacher %s: %w", teacherID, sentinel.ErrNotFound)
}
