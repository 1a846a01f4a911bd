package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"presente/internal/catalog/models"
	id "presente/pkg/domain"
	"presente/pkg/platform/sentinel"
	"presente/pkg/platform/tx"
)

// PostgresStore persists the catalog in PostgreSQL. All queries go through
// querier so a transaction injected via pkg/platform/tx is honored.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed catalog store.
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

// translateUnique maps PostgreSQL unique violations (class 23505) to the
// conflict sentinel so services never inspect driver errors.
func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, sentinel.ErrConflict)
	}
	return err
}

func (s *PostgresStore) CreateSubject(ctx context.Context, subject *models.Subject) error {
	query := `
		INSERT INTO subjects (id, name, code, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(subject.ID), subject.Name, subject.Code, subject.Active, subject.CreatedAt, subject.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create subject: %w", translateUnique(err))
	}
	return nil
}

func (s *PostgresStore) FindSubjectByID(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	query := `
		SELECT id, name, code, active, created_at, updated_at
		FROM subjects
		WHERE id = $1
	`
	subject, err := scanSubject(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(subjectID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("subject %s: %w", subjectID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find subject by id: %w", err)
	}
	return subject, nil
}

func (s *PostgresStore) ListSubjects(ctx context.Context) ([]*models.Subject, error) {
	query := `
		SELECT id, name, code, active, created_at, updated_at
		FROM subjects
		ORDER BY code
	`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var out []*models.Subject
	for rows.Next() {
		subject, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		out = append(out, subject)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateSubject(ctx context.Context, subject *models.Subject) error {
	query := `
		UPDATE subjects
		SET name = $2, code = $3, active = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(subject.ID), subject.Name, subject.Code, subject.Active, subject.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update subject: %w", translateUnique(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subject rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("subject %s: %w", subject.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateGroup(ctx context.Context, group *models.Group) error {
	query := `
		INSERT INTO groups (id, subject_id, name, code, session_open, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(group.ID), uuid.UUID(group.SubjectID), group.Name, group.Code, group.SessionOpen, group.CreatedAt, group.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create group: %w", translateUnique(err))
	}
	return nil
}

func (s *PostgresStore) FindGroupByID(ctx context.Context, groupID id.GroupID) (*models.Group, error) {
	query := `
		SELECT id, subject_id, name, code, session_open, created_at, updated_at
		FROM groups
		WHERE id = $1
	`
	group, err := scanGroup(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(groupID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group %s: %w", groupID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find group by id: %w", err)
	}
	return group, nil
}

func (s *PostgresStore) ListGroupsBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.Group, error) {
	query := `
		SELECT id, subject_id, name, code, session_open, created_at, updated_at
		FROM groups
		WHERE subject_id = $1
		ORDER BY code
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list groups by subject: %w", err)
	}
	defer rows.Close()

	var out []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, group)
	}
	return out, rows.Err()
}

// ClaimSessionTransition is a conditional UPDATE so concurrent open/close
// attempts on one group serialize in the database: only one caller sees its
// precondition hold.
func (s *PostgresStore) ClaimSessionTransition(ctx context.Context, groupID id.GroupID, from, to bool) error {
	query := `
		UPDATE groups
		SET session_open = $3, updated_at = NOW()
		WHERE id = $1 AND session_open = $2
	`
	result, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(groupID), from, to)
	if err != nil {
		return fmt.Errorf("claim session transition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim session transition rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := s.q(ctx).QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`, uuid.UUID(groupID)).Scan(&exists); err != nil {
			return fmt.Errorf("claim session transition existence check: %w", err)
		}
		if !exists {
			return fmt.Errorf("group %s: %w", groupID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("group %s session open is not %t: %w", groupID, from, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *PostgresStore) EnsureSchedule(ctx context.Context, schedule *models.Schedule) (*models.Schedule, error) {
	query := `
		INSERT INTO schedules (id, weekday, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (weekday, start_time, end_time) DO UPDATE SET
			weekday = EXCLUDED.weekday
		RETURNING id, weekday, start_time, end_time
	`
	row, err := scanSchedule(s.q(ctx).QueryRowContext(ctx, query,
		uuid.UUID(schedule.ID), schedule.Weekday, schedule.Start, schedule.End,
	))
	if err != nil {
		return nil, fmt.Errorf("ensure schedule: %w", err)
	}
	return row, nil
}

func (s *PostgresStore) LinkSchedule(ctx context.Context, groupID id.GroupID, scheduleID id.ScheduleID) error {
	query := `
		INSERT INTO group_schedules (group_id, schedule_id)
		VALUES ($1, $2)
	`
	_, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(groupID), uuid.UUID(scheduleID))
	if err != nil {
		err = translateUnique(err)
		if errors.Is(err, sentinel.ErrConflict) {
			return fmt.Errorf("group %s schedule %s: %w", groupID, scheduleID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("link schedule: %w", err)
	}
	return nil
}

func (s *PostgresStore) UnlinkSchedule(ctx context.Context, groupID id.GroupID, scheduleID id.ScheduleID) error {
	query := `
		DELETE FROM group_schedules
		WHERE group_id = $1 AND schedule_id = $2
	`
	result, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(groupID), uuid.UUID(scheduleID))
	if err != nil {
		return fmt.Errorf("unlink schedule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unlink schedule rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("group %s schedule %s: %w", groupID, scheduleID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListSchedulesByGroup(ctx context.Context, groupID id.GroupID) ([]*models.Schedule, error) {
	query := `
		SELECT s.id, s.weekday, s.start_time, s.end_time
		FROM schedules s
		JOIN group_schedules gs ON gs.schedule_id = s.id
		WHERE gs.group_id = $1
		ORDER BY s.weekday, s.start_time, s.end_time
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("list schedules by group: %w", err)
	}
	defer rows.Close()

	var out []*models.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, schedule)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertGroupPeriod(ctx context.Context, groupPeriod *models.GroupPeriod) (*models.GroupPeriod, error) {
	query := `
		INSERT INTO group_periods (id, group_id, period, teacher_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (group_id, period) DO UPDATE SET
			teacher_id = EXCLUDED.teacher_id,
			updated_at = EXCLUDED.updated_at
		RETURNING id, group_id, period, teacher_id, created_at, updated_at
	`
	var teacherID any
	if groupPeriod.TeacherID != nil {
		teacherID = uuid.UUID(*groupPeriod.TeacherID)
	}
	row, err := scanGroupPeriod(s.q(ctx).QueryRowContext(ctx, query,
		uuid.UUID(groupPeriod.ID), uuid.UUID(groupPeriod.GroupID), string(groupPeriod.Period), teacherID, groupPeriod.CreatedAt, groupPeriod.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert group period: %w", err)
	}
	return row, nil
}

func (s *PostgresStore) FindGroupPeriod(ctx context.Context, groupID id.GroupID, period id.Period) (*models.GroupPeriod, error) {
	query := `
		SELECT id, group_id, period, teacher_id, created_at, updated_at
		FROM group_periods
		WHERE group_id = $1 AND period = $2
	`
	row, err := scanGroupPeriod(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(groupID), string(period)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group %s period %s: %w", groupID, period, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find group period: %w", err)
	}
	return row, nil
}

func (s *PostgresStore) ListGroupPeriodsByGroup(ctx context.Context, groupID id.GroupID) ([]*models.GroupPeriod, error) {
	query := `
		SELECT id, group_id, period, teacher_id, created_at, updated_at
		FROM group_periods
		WHERE group_id = $1
		ORDER BY period
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("list group periods by group: %w", err)
	}
	defer rows.Close()

	var out []*models.GroupPeriod
	for rows.Next() {
		groupPeriod, err := scanGroupPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group period: %w", err)
		}
		out = append(out, groupPeriod)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListGroupPeriodsByTeacher(ctx context.Context, teacherID id.TeacherID, period id.Period) ([]*models.GroupPeriod, error) {
	query := `
		SELECT id, group_id, period, teacher_id, created_at, updated_at
		FROM group_periods
		WHERE teacher_id = $1 AND period = $2
		ORDER BY group_id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(teacherID), string(period))
	if err != nil {
		return nil, fmt.Errorf("list group periods by teacher: %w", err)
	}
	defer rows.Close()

	var out []*models.GroupPeriod
	for rows.Next() {
		groupPeriod, err := scanGroupPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group period: %w", err)
		}
		out = append(out, groupPeriod)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateStudent(ctx context.Context, student *models.Student) error {
	query := `
		INSERT INTO students (id, phone_uuid, active, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(student.ID), student.PhoneUUID, student.Active, student.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create student: %w", translateUnique(err))
	}
	return nil
}

func (s *PostgresStore) FindStudentByID(ctx context.Context, studentID id.StudentID) (*models.Student, error) {
	query := `
		SELECT id, COALESCE(phone_uuid, ''), active, created_at
		FROM students
		WHERE id = $1
	`
	var student models.Student
	var rawID uuid.UUID
	err := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(studentID)).Scan(&rawID, &student.PhoneUUID, &student.Active, &student.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("student %s: %w", studentID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	student.ID = id.StudentID(rawID)
	return &student, nil
}

func (s *PostgresStore) CreateTeacher(ctx context.Context, teacher *models.Teacher) error {
	query := `
		INSERT INTO teachers (id, active, created_at)
		VALUES ($1, $2, $3)
	`
	_, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(teacher.ID), teacher.Active, teacher.CreatedAt)
	if err != nil {
		return fmt.Errorf("create teacher: %w", translateUnique(err))
	}
	return nil
}

func (s *PostgresStore) FindTeacherByID(ctx context.Context, teacherID id.TeacherID) (*models.Teacher, error) {
	query := `
		SELECT id, active, created_at
		FROM teachers
		WHERE id = $1
	`
	var teacher models.Teacher
	var rawID uuid.UUID
	err := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(teacherID)).Scan(&rawID, &teacher.Active, &teacher.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("teacher %s: %w", teacherID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find teacher by id: %w", err)
	}
	teacher.ID = id.TeacherID(rawID)
	return &teacher, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubject(row scanner) (*models.Subject, error) {
	var subject models.Subject
	var rawID uuid.UUID
	if err := row.Scan(&rawID, &subject.Name, &subject.Code, &subject.Active, &subject.CreatedAt, &subject.UpdatedAt); err != nil {
		return nil, err
	}
	subject.ID = id.SubjectID(rawID)
	return &subject, nil
}

func scanGroup(row scanner) (*models.Group, error) {
	var group models.Group
	var rawID, rawSubjectID uuid.UUID
	if err := row.Scan(&rawID, &rawSubjectID, &group.Name, &group.Code, &group.SessionOpen, &group.CreatedAt, &group.UpdatedAt); err != nil {
		return nil, err
	}
	group.ID = id.GroupID(rawID)
	group.SubjectID = id.SubjectID(rawSubjectID)
	return &group, nil
}

func scanSchedule(row scanner) (*models.Schedule, error) {
	var schedule models.Schedule
	var rawID uuid.UUID
	if err := row.Scan(&rawID, &schedule.Weekday, &schedule.Start, &schedule.End); err != nil {
		return nil, err
	}
	schedule.ID = id.ScheduleID(rawID)
	return &schedule, nil
}

func scanGroupPeriod(row scanner) (*models.GroupPeriod, error) {
	var groupPeriod models.GroupPeriod
	var rawID, rawGroupID uuid.UUID
	var rawTeacherID uuid.NullUUID
	var rawPeriod string
	if err := row.Scan(&rawID, &rawGroupID, &rawPeriod, &rawTeacherID, &groupPeriod.CreatedAt, &groupPeriod.UpdatedAt); err != nil {
		return nil, err
	}
	groupPeriod.ID = id.GroupPeriodID(rawID)
	groupPeriod.GroupID = id.GroupID(rawGroupID)
	groupPeriod.Period = id.Period(rawPeriod)
	if rawTeacherID.Valid {
		teacherID := id.TeacherID(rawTeacherID.UUID)
		groupPeriod.TeacherID = &teacherID
	}
	return &groupPeriod, nil
}
