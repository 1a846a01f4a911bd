package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"presente/internal/rollcall/models"
	id "presente/pkg/domain"
	"presente/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions and attendance records in process memory for
// tests/dev. The (group, date) and (student, session) uniqueness the
// postgres store gets from constraints is enforced under one mutex here, so
// racing check-ins still yield exactly one winner.
type InMemoryStore struct {
	mu          sync.Mutex
	sessions    map[id.SessionID]models.Session
	sessionKeys map[string]id.SessionID
	records     map[string]models.AttendanceRecord
}

// NewMemory constructs an empty in-memory roll-call store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		sessions:    make(map[id.SessionID]models.Session),
		sessionKeys: make(map[string]id.SessionID),
		records:     make(map[string]models.AttendanceRecord),
	}
}

func sessionKey(groupID id.GroupID, date string) string {
	return groupID.String() + "|" + date
}

func recordKey(studentID id.StudentID, sessionID id.SessionID) string {
	return studentID.String() + "|" + sessionID.String()
}

func (s *InMemoryStore) CreateSession(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(session.GroupID, session.Date)
	if _, ok := s.sessionKeys[key]; ok {
		return fmt.Errorf("group %s date %s: %w", session.GroupID, session.Date, sentinel.ErrConflict)
	}
	s.sessions[session.ID] = *session
	s.sessionKeys[key] = session.ID
	return nil
}

func (s *InMemoryStore) FindSessionByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		return &session, nil
	}
	return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindSessionByGroupAndDate(_ context.Context, groupID id.GroupID, date string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID, ok := s.sessionKeys[sessionKey(groupID, date)]; ok {
		session := s.sessions[sessionID]
		return &session, nil
	}
	return nil, fmt.Errorf("group %s date %s: %w", groupID, date, sentinel.ErrNotFound)
}

// DeleteSession removes the session and every record hanging off it.
func (s *InMemoryStore) DeleteSession(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	delete(s.sessions, sessionID)
	delete(s.sessionKeys, sessionKey(session.GroupID, session.Date))
	for key, record := range s.records {
		if record.SessionID == sessionID {
			delete(s.records, key)
		}
	}
	return nil
}

func (s *InMemoryStore) ListSessionsByGroup(_ context.Context, groupID id.GroupID) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Session
	for _, session := range s.sessions {
		if session.GroupID == groupID {
			copied := session
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *InMemoryStore) CreateRecord(_ context.Context, record *models.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(record.StudentID, record.SessionID)
	if _, ok := s.records[key]; ok {
		return fmt.Errorf("student %s session %s: %w", record.StudentID, record.SessionID, sentinel.ErrConflict)
	}
	s.records[key] = *record
	return nil
}

// BulkCreateRecords inserts every record or none. The single mutex gives the
// all-or-nothing the postgres store gets from its transaction.
func (s *InMemoryStore) BulkCreateRecords(_ context.Context, records []*models.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		if _, ok := s.records[recordKey(record.StudentID, record.SessionID)]; ok {
			return fmt.Errorf("student %s session %s: %w", record.StudentID, record.SessionID, sentinel.ErrConflict)
		}
	}
	for _, record := range records {
		s.records[recordKey(record.StudentID, record.SessionID)] = *record
	}
	return nil
}

func (s *InMemoryStore) FindRecord(_ context.Context, studentID id.StudentID, sessionID id.SessionID) (*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[recordKey(studentID, sessionID)]; ok {
		return &record, nil
	}
	return nil, fmt.Errorf("student %s session %s: %w", studentID, sessionID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) UpdateRecord(_ context.Context, record *models.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(record.StudentID, record.SessionID)
	if _, ok := s.records[key]; !ok {
		return fmt.Errorf("student %s session %s: %w", record.StudentID, record.SessionID, sentinel.ErrNotFound)
	}
	s.records[key] = *record
	return nil
}

func (s *InMemoryStore) ListRecordsBySession(_ context.Context, sessionID id.SessionID) ([]*models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AttendanceRecord
	for _, record := range s.records {
		if record.SessionID == sessionID {
			copied := record
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID.String() < out[j].StudentID.String() })
	return out, nil
}
