//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema is the full relational schema the postgres stores run against. The
// unique constraints here are the invariants the stores lean on: deduplicated
// schedule tuples, one group period per (group, period), one enrollment per
// (student, group period), one session per (group, date), one attendance
// record per (student, session).
const schema = `
CREATE TABLE IF NOT EXISTS subjects (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	code TEXT NOT NULL UNIQUE,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
	id UUID PRIMARY KEY,
	subject_id UUID NOT NULL REFERENCES subjects(id),
	name TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE,
	session_open BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS schedules (
	id UUID PRIMARY KEY,
	weekday INT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	UNIQUE (weekday, start_time, end_time)
);

CREATE TABLE IF NOT EXISTS group_schedules (
	group_id UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
	schedule_id UUID NOT NULL REFERENCES schedules(id),
	PRIMARY KEY (group_id, schedule_id)
);

CREATE TABLE IF NOT EXISTS group_periods (
	id UUID PRIMARY KEY,
	group_id UUID NOT NULL REFERENCES groups(id),
	period TEXT NOT NULL,
	teacher_id UUID,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (group_id, period)
);

CREATE TABLE IF NOT EXISTS students (
	id UUID PRIMARY KEY,
	phone_uuid TEXT UNIQUE,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS teachers (
	id UUID PRIMARY KEY,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS enrollments (
	student_id UUID NOT NULL REFERENCES students(id),
	group_id UUID NOT NULL REFERENCES groups(id),
	group_period_id UUID NOT NULL REFERENCES group_periods(id),
	period TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (student_id, group_period_id)
);

CREATE TABLE IF NOT EXISTS sessions (
	id UUID PRIMARY KEY,
	group_id UUID NOT NULL REFERENCES groups(id),
	date TEXT NOT NULL,
	topic TEXT NOT NULL,
	period TEXT NOT NULL,
	opened_at TIMESTAMPTZ NOT NULL,
	UNIQUE (group_id, date)
);

CREATE TABLE IF NOT EXISTS attendance_records (
	session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	student_id UUID NOT NULL REFERENCES students(id),
	present BOOLEAN NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (student_id, session_id)
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the schema
// applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
	URL       string
}

// NewPostgresContainer starts Postgres and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("presente_test"),
		tcpostgres.WithUsername("presente"),
		tcpostgres.WithPassword("presente"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{Container: container, DB: db, URL: url}
}

// TruncateTables clears the named tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))
	if _, err := p.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
