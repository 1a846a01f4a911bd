package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"presente/internal/enrollment/models"
	id "presente/pkg/domain"
	"presente/pkg/platform/sentinel"
	"presente/pkg/platform/tx"
)

// PostgresStore persists enrollments in PostgreSQL. A unique constraint on
// (student_id, group_period_id) backs the idempotent-create contract.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed enrollment store.
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

func (s *PostgresStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	query := `
		INSERT INTO enrollments (student_id, group_id, group_period_id, period, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(enrollment.StudentID),
		uuid.UUID(enrollment.GroupID),
		uuid.UUID(enrollment.GroupPeriodID),
		string(enrollment.Period),
		enrollment.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("student %s group period %s: %w", enrollment.StudentID, enrollment.GroupPeriodID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, studentID id.StudentID, groupPeriodID id.GroupPeriodID) error {
	query := `
		DELETE FROM enrollments
		WHERE student_id = $1 AND group_period_id = $2
	`
	result, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(studentID), uuid.UUID(groupPeriodID))
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("student %s group period %s: %w", studentID, groupPeriodID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, studentID id.StudentID, groupPeriodID id.GroupPeriodID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE student_id = $1 AND group_period_id = $2
		)
	`
	var exists bool
	if err := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(studentID), uuid.UUID(groupPeriodID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("enrollment exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListByStudentAndPeriod(ctx context.Context, studentID id.StudentID, period id.Period) ([]*models.Enrollment, error) {
	query := `
		SELECT student_id, group_id, group_period_id, period, created_at
		FROM enrollments
		WHERE student_id = $1 AND period = $2
		ORDER BY created_at
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(studentID), string(period))
	if err != nil {
		return nil, fmt.Errorf("list enrollments by student: %w", err)
	}
	defer rows.Close()
	return collectEnrollments(rows)
}

func (s *PostgresStore) ListStudentsByGroupPeriod(ctx context.Context, groupPeriodID id.GroupPeriodID) ([]id.StudentID, error) {
	query := `
		SELECT student_id
		FROM enrollments
		WHERE group_period_id = $1
		ORDER BY student_id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(groupPeriodID))
	if err != nil {
		return nil, fmt.Errorf("list students by group period: %w", err)
	}
	defer rows.Close()

	var out []id.StudentID
	for rows.Next() {
		var raw uuid.UUID
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan student id: %w", err)
		}
		out = append(out, id.StudentID(raw))
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListByGroupPeriod(ctx context.Context, groupPeriodID id.GroupPeriodID) ([]*models.Enrollment, error) {
	query := `
		SELECT student_id, group_id, group_period_id, period, created_at
		FROM enrollments
		WHERE group_period_id = $1
		ORDER BY student_id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(groupPeriodID))
	if err != nil {
		return nil, fmt.Errorf("list enrollments by group period: %w", err)
	}
	defer rows.Close()
	return collectEnrollments(rows)
}

func collectEnrollments(rows *sql.Rows) ([]*models.Enrollment, error) {
	var out []*models.Enrollment
	for rows.Next() {
		var enrollment models.Enrollment
		var rawStudent, rawGroup, rawGroupPeriod uuid.UUID
		var rawPeriod string
		if err := rows.Scan(&rawStudent, &rawGroup, &rawGroupPeriod, &rawPeriod, &enrollment.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollment.StudentID = id.StudentID(rawStudent)
		enrollment.GroupID = id.GroupID(rawGroup)
		enrollment.GroupPeriodID = id.GroupPeriodID(rawGroupPeriod)
		enrollment.Period = id.Period(rawPeriod)
		out = append(out, &enrollment)
	}
	return out, rows.Err()
}
