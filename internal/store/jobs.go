package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	ingesterrors "github.com/DrunkOnJava/ingestor-service/internal/errors"
)

// JobKind enumerates ProcessingJob kinds (spec §3).
type JobKind string

const (
	JobKindAnalyze JobKind = "analyze"
	JobKindExtract JobKind = "extract"
	JobKindBatch   JobKind = "batch"
)

// JobState enumerates the ProcessingJob lifecycle (spec §3). Terminal
// states (Completed, Failed, Canceled) are immutable once reached.
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
	JobStateCanceled   JobState = "canceled"
)

// Job is the durable summary of a ProcessingJob persisted by the Store
// for after-the-fact inspection (getJob/listJobs, spec §6).
type Job struct {
	ID              string
	Kind            JobKind
	State           JobState
	Progress        int
	StartedAt       time.Time
	EndedAt         *time.Time
	ItemsTotal      int
	ItemsSuccessful int
	ItemsFailed     int
	ErrorSummary    string
}

// SaveJob upserts a Job's durable summary row.
func (s *Store) SaveJob(ctx context.Context, j Job) error {
	var endedAt any
	if j.EndedAt != nil {
		endedAt = j.EndedAt.UTC().Format(time.RFC3339)
	}

	return s.exec2(ctx,
		`INSERT INTO jobs(id, kind, state, progress, started_at, ended_at, items_total, items_successful, items_failed, error_summary)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   state = excluded.state, progress = excluded.progress, ended_at = excluded.ended_at,
		   items_total = excluded.items_total, items_successful = excluded.items_successful,
		   items_failed = excluded.items_failed, error_summary = excluded.error_summary`,
		j.ID, string(j.Kind), string(j.State), j.Progress, j.StartedAt.UTC().Format(time.RFC3339),
		endedAt, j.ItemsTotal, j.ItemsSuccessful, j.ItemsFailed, j.ErrorSummary,
	)
}

// GetJob fetches one Job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	rows, err := s.Query(ctx,
		`SELECT id, kind, state, progress, started_at, ended_at, items_total, items_successful, items_failed, error_summary
		 FROM jobs WHERE id = ?`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ingesterrors.NotFoundError(fmt.Sprintf("job %s not found", id), nil)
	}
	return scanJob(rows)
}

// ListJobs returns jobs newest-first, optionally filtered by state.
func (s *Store) ListJobs(ctx context.Context, state JobState, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if state == "" {
		rows, err = s.Query(ctx,
			`SELECT id, kind, state, progress, started_at, ended_at, items_total, items_successful, items_failed, error_summary
			 FROM jobs ORDER BY started_at DESC LIMIT ?`, limit,
		)
	} else {
		rows, err = s.Query(ctx,
			`SELECT id, kind, state, progress, started_at, ended_at, items_total, items_successful, items_failed, error_summary
			 FROM jobs WHERE state = ? ORDER BY started_at DESC LIMIT ?`, string(state), limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func scanJob(rows *sql.Rows) (*Job, error) {
	var j Job
	var kind, state string
	var startedAt string
	var endedAt, errSummary sql.NullString

	if err := rows.Scan(&j.ID, &kind, &state, &j.Progress, &startedAt, &endedAt,
		&j.ItemsTotal, &j.ItemsSuccessful, &j.ItemsFailed, &errSummary); err != nil {
		return nil, wrapSQLError(err)
	}

	j.Kind = JobKind(kind)
	j.State = JobState(state)
	j.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	j.ErrorSummary = errSummary.String
	if endedAt.Valid {
		if t, err := time.Parse(time.RFC3339, endedAt.String); err == nil {
			j.EndedAt = &t
		}
	}
	return &j, nil
}

// exec2 runs a write statement directly against the database without a
// transaction wrapper, for single-statement upserts that don't need
// multi-row atomicity.
func (s *Store) exec2(ctx context.Context, stmt string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ingesterrors.New(ingesterrors.ErrCodeNotConnected, "store is closed", nil)
	}
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return wrapSQLError(err)
	}
	return nil
}
