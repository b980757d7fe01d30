package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/linkenthegreat/docex/internal/domain"
)

// PostgresStore keeps one row per job with the full record as a JSONB column.
// The per-row upsert gives the same atomic-replace guarantee as the file
// store's rename. Selected when DATABASE_URL is configured.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// EnsureSchema creates the backing table when it does not exist yet. The
// status and started_at columns are denormalized for retention queries.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS extraction_jobs (
    id         TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    record     JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
	if err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, job *domain.Job) error {
	record, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("store: encode job %s: %w", job.ID, err)
	}
	query := `
INSERT INTO extraction_jobs (id, status, started_at, record, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    record = EXCLUDED.record,
    updated_at = NOW();
`
	if _, err := s.pool.Exec(ctx, query, job.ID, job.Status, job.StartedAt, record); err != nil {
		return fmt.Errorf("store: save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT record FROM extraction_jobs WHERE id = $1;`, id)
	var record []byte
	if err := row.Scan(&record); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("store: load job %s: %w", id, err)
	}
	var job domain.Job
	if err := json.Unmarshal(record, &job); err != nil {
		return nil, fmt.Errorf("store: decode record %s: %w", id, err)
	}
	return &job, nil
}

func (s *PostgresStore) LoadAll(ctx context.Context) ([]*domain.Job, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, record FROM extraction_jobs ORDER BY started_at;`)
	if err != nil {
		return nil, fmt.Errorf("store: load all: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		var id string
		var record []byte
		if err := rows.Scan(&id, &record); err != nil {
			s.logger.Warn().Err(err).Msg("store: skipping unreadable row")
			continue
		}
		var job domain.Job
		if err := json.Unmarshal(record, &job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", id).Msg("store: skipping corrupt record")
			continue
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load all: %w", err)
	}
	return jobs, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM extraction_jobs WHERE id = $1;`, id); err != nil {
		return fmt.Errorf("store: delete job %s: %w", id, err)
	}
	return nil
}

var _ domain.JobStore = (*PostgresStore)(nil)
