package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/vango-go/vai-interview/pkg/core/interview"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres implements InterviewSource and ResponseSink on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool and verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
}

// Ping checks connectivity; used by the readiness probe.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

const loadInterviewSQL = `SELECT id, tenant_id, title FROM interviews WHERE id = $1`

const loadQuestionsSQL = `
SELECT id, prompt, reference_answer, time_limit_sec
FROM interview_questions
WHERE interview_id = $1
ORDER BY position`

// LoadInterview implements InterviewSource.
func (p *Postgres) LoadInterview(ctx context.Context, interviewID string) (interview.Interview, error) {
	var iv interview.Interview
	err := p.pool.QueryRow(ctx, loadInterviewSQL, interviewID).Scan(&iv.ID, &iv.TenantID, &iv.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return interview.Interview{}, fmt.Errorf("%w: %s", ErrInterviewNotFound, interviewID)
	}
	if err != nil {
		return interview.Interview{}, fmt.Errorf("load interview: %w", err)
	}

	rows, err := p.pool.Query(ctx, loadQuestionsSQL, interviewID)
	if err != nil {
		return interview.Interview{}, fmt.Errorf("load questions: %w", err)
	}
	iv.Questions, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (interview.Question, error) {
		var (
			q        interview.Question
			limitSec int
		)
		if err := row.Scan(&q.ID, &q.Prompt, &q.ReferenceAnswer, &limitSec); err != nil {
			return interview.Question{}, err
		}
		q.TimeLimit = time.Duration(limitSec) * time.Second
		return q, nil
	})
	if err != nil {
		return interview.Interview{}, fmt.Errorf("scan questions: %w", err)
	}
	return iv, nil
}

const insertResponseSQL = `
INSERT INTO interview_responses
    (session_id, interview_id, question_id, candidate_id, prompt, transcript, score, feedback, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// SaveResponse implements ResponseSink.
func (p *Postgres) SaveResponse(ctx context.Context, r Response) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := p.pool.Exec(ctx, insertResponseSQL,
		r.SessionID, r.InterviewID, r.QuestionID, r.CandidateID, r.Prompt, r.Transcript, r.Score, r.Feedback, createdAt)
	if err != nil {
		return fmt.Errorf("save response: %w", err)
	}
	return nil
}

const upsertProgressSQL = `
INSERT INTO interview_sessions
    (session_id, interview_id, candidate_id, question_index, running_score, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (session_id) DO UPDATE SET
    question_index = EXCLUDED.question_index,
    running_score  = EXCLUDED.running_score,
    status         = EXCLUDED.status,
    updated_at     = EXCLUDED.updated_at`

// SaveProgress implements ResponseSink.
func (p *Postgres) SaveProgress(ctx context.Context, pr Progress) error {
	updatedAt := pr.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := p.pool.Exec(ctx, upsertProgressSQL,
		pr.SessionID, pr.InterviewID, pr.CandidateID, pr.QuestionIndex, pr.RunningScore, pr.Status, updatedAt)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// MigrationDirection selects what Migrate does.
type MigrationDirection string

const (
	MigrateUp     MigrationDirection = "up"
	MigrateDown   MigrationDirection = "down"
	MigrateStatus MigrationDirection = "status"
)

// MigrationReport is one line of migrate output.
type MigrationReport struct {
	Version int64
	Path    string
	State   string
}

// Migrate runs the embedded goose migrations against the pool.
func (p *Postgres) Migrate(ctx context.Context, dir MigrationDirection) ([]MigrationReport, error) {
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}

	var out []MigrationReport
	switch dir {
	case MigrateUp:
		results, err := provider.Up(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate up: %w", err)
		}
		for _, r := range results {
			out = append(out, MigrationReport{Version: r.Source.Version, Path: r.Source.Path, State: "applied"})
		}
	case MigrateDown:
		r, err := provider.Down(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate down: %w", err)
		}
		if r != nil {
			out = append(out, MigrationReport{Version: r.Source.Version, Path: r.Source.Path, State: "rolled back"})
		}
	case MigrateStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate status: %w", err)
		}
		for _, s := range statuses {
			out = append(out, MigrationReport{Version: s.Source.Version, Path: s.Source.Path, State: string(s.State)})
		}
	default:
		return nil, fmt.Errorf("unknown migration direction %q", dir)
	}
	return out, nil
}
