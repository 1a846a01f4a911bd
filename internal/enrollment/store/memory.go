package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"presente/internal/enrollment/models"
	id "presente/pkg/domain"
	"presente/pkg/platform/sentinel"
)

// InMemoryStore keeps enrollments in process memory for tests/dev. Rows are
// keyed by (student, group period), the same uniqueness the postgres store
// enforces with a constraint.
type InMemoryStore struct {
	mu          sync.RWMutex
	enrollments map[string]models.Enrollment
}

// NewMemory constructs an empty in-memory enrollment store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{enrollments: make(map[string]models.Enrollment)}
}

func enrollmentKey(studentID id.StudentID, groupPeriodID id.GroupPeriodID) string {
	return studentID.String() + "|" + groupPeriodID.String()
}

func (s *InMemoryStore) Create(_ context.Context, enrollment *models.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := enrollmentKey(enrollment.StudentID, enrollment.GroupPeriodID)
	if _, ok := s.enrollments[key]; ok {
		return fmt.Errorf("student %s group period %s: %w", enrollment.StudentID, enrollment.GroupPeriodID, sentinel.ErrConflict)
	}
	s.enrollments[key] = *enrollment
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, studentID id.StudentID, groupPeriodID id.GroupPeriodID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := enrollmentKey(studentID, groupPeriodID)
	if _, ok := s.enrollments[key]; !ok {
		return fmt.Errorf("student %s group period %s: %w", studentID, groupPeriodID, sentinel.ErrNotFound)
	}
	delete(s.enrollments, key)
	return nil
}

func (s *InMemoryStore) Exists(_ context.Context, studentID id.StudentID, groupPeriodID id.GroupPeriodID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.enrollments[enrollmentKey(studentID, groupPeriodID)]
	return ok, nil
}

func (s *InMemoryStore) ListByStudentAndPeriod(_ context.Context, studentID id.StudentID, period id.Period) ([]*models.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Enrollment
	for _, enrollment := range s.enrollments {
		if enrollment.StudentID == studentID && enrollment.Period == period {
			copied := enrollment
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListStudentsByGroupPeriod(_ context.Context, groupPeriodID id.GroupPeriodID) ([]id.StudentID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []id.StudentID
	for _, enrollment := range s.enrollments {
		if enrollment.GroupPeriodID == groupPeriodID {
			out = append(out, enrollment.StudentID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *InMemoryStore) ListByGroupPeriod(_ context.Context, groupPeriodID id.GroupPeriodID) ([]*models.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Enrollment
	for _, enrollment := range s.enrollments {
		if enrollment.GroupPeriodID == groupPeriodID {
			copied := enrollment
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID.String() < out[j].StudentID.String() })
	return out, nil
}
