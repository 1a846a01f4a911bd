package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"presente/internal/rollcall/models"
	id "presente/pkg/domain"
	"presente/pkg/platform/sentinel"
	"presente/pkg/platform/tx"
)

// PostgresStore persists roll-call sessions and attendance records. Unique
// constraints on (group_id, date) and (student_id, session_id) enforce the
// one-session-per-day and one-record-per-student invariants under concurrent
// writers.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed roll-call store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func uniqueToConflict(err error, format string, args ...any) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		args = append(args, sentinel.ErrConflict)
		return fmt.Errorf(format+": %w", args...)
	}
	return err
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, group_id, date, topic, period, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(session.ID), uuid.UUID(session.GroupID), session.Date, session.Topic, string(session.Period), session.OpenedAt,
	)
	if err != nil {
		if conflict := uniqueToConflict(err, "group %s date %s", session.GroupID, session.Date); conflict != err {
			return conflict
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindSessionByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	query := `
		SELECT id, group_id, date, topic, period, opened_at
		FROM sessions
		WHERE id = $1
	`
	session, err := scanSession(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(sessionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) FindSessionByGroupAndDate(ctx context.Context, groupID id.GroupID, date string) (*models.Session, error) {
	query := `
		SELECT id, group_id, date, topic, period, opened_at
		FROM sessions
		WHERE group_id = $1 AND date = $2
	`
	session, err := scanSession(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(groupID), date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group %s date %s: %w", groupID, date, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find session by group and date: %w", err)
	}
	return session, nil
}

// DeleteSession hard-deletes the session; attendance records go with it via
// ON DELETE CASCADE.
func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID id.SessionID) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, uuid.UUID(sessionID))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListSessionsByGroup(ctx context.Context, groupID id.GroupID) ([]*models.Session, error) {
	query := `
		SELECT id, group_id, date, topic, period, opened_at
		FROM sessions
		WHERE group_id = $1
		ORDER BY date
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("list sessions by group: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateRecord(ctx context.Context, record *models.AttendanceRecord) error {
	query := `
		INSERT INTO attendance_records (session_id, student_id, present, recorded_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(record.SessionID), uuid.UUID(record.StudentID), record.Present, record.RecordedAt,
	)
	if err != nil {
		if conflict := uniqueToConflict(err, "student %s session %s", record.StudentID, record.SessionID); conflict != err {
			return conflict
		}
		return fmt.Errorf("create attendance record: %w", err)
	}
	return nil
}

func (s *PostgresStore) BulkCreateRecords(ctx context.Context, records []*models.AttendanceRecord) error {
	for _, record := range records {
		if err := s.CreateRecord(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) FindRecord(ctx context.Context, studentID id.StudentID, sessionID id.SessionID) (*models.AttendanceRecord, error) {
	query := `
		SELECT session_id, student_id, present, recorded_at
		FROM attendance_records
		WHERE student_id = $1 AND session_id = $2
	`
	record, err := scanRecord(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(studentID), uuid.UUID(sessionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("student %s session %s: %w", studentID, sessionID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find attendance record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) UpdateRecord(ctx context.Context, record *models.AttendanceRecord) error {
	query := `
		UPDATE attendance_records
		SET present = $3, recorded_at = $4
		WHERE student_id = $1 AND session_id = $2
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(record.StudentID), uuid.UUID(record.SessionID), record.Present, record.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("update attendance record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update attendance record rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("student %s session %s: %w", record.StudentID, record.SessionID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListRecordsBySession(ctx context.Context, sessionID id.SessionID) ([]*models.AttendanceRecord, error) {
	query := `
		SELECT session_id, student_id, present, recorded_at
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY student_id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	defer rows.Close()

	var out []*models.AttendanceRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var session models.Session
	var rawID, rawGroupID uuid.UUID
	var rawPeriod string
	if err := row.Scan(&rawID, &rawGroupID, &session.Date, &session.Topic, &rawPeriod, &session.OpenedAt); err != nil {
		return nil, err
	}
	session.ID = id.SessionID(rawID)
	session.GroupID = id.GroupID(rawGroupID)
	session.Period = id.Period(rawPeriod)
	return &session, nil
}

func scanRecord(row scanner) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	var rawSessionID, rawStudentID uuid.UUID
	if err := row.Scan(&rawSessionID, &rawStudentID, &record.Present, &record.RecordedAt); err != nil {
		return nil, err
	}
	record.SessionID = id.SessionID(rawSessionID)
	record.StudentID = id.StudentID(rawStudentID)
	return &record, nil
}
