package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hockeytools/rules-engine/internal/core/domain"
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026040202)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingestion_runs (
	id TEXT PRIMARY KEY,
	variant TEXT NOT NULL,
	country TEXT NOT NULL DEFAULT '',
	source_file TEXT NOT NULL,
	chunks_produced INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	failed_stage TEXT,
	error_message TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_ingestion_runs_scope ON ingestion_runs(variant, country);
CREATE INDEX IF NOT EXISTS idx_ingestion_runs_started_at ON ingestion_runs(started_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RunRepository) Create(ctx context.Context, run *domain.IngestionRun) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingestion_runs (
	id, variant, country, source_file, chunks_produced, status, failed_stage, error_message, started_at, finished_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		run.ID, run.Scope.Variant, run.Scope.Country, run.SourceFile, run.ChunksProduced,
		string(run.Status), run.FailedStage, run.Error, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ingestion run: %w", err)
	}
	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.IngestionRun, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, variant, country, source_file, chunks_produced, status, failed_stage, error_message, started_at, finished_at
FROM ingestion_runs
WHERE id = $1
`, id)

	var (
		run         domain.IngestionRun
		status      string
		failedStage sql.NullString
		errMessage  sql.NullString
		finishedAt  sql.NullTime
	)
	err := row.Scan(
		&run.ID, &run.Scope.Variant, &run.Scope.Country, &run.SourceFile, &run.ChunksProduced,
		&status, &failedStage, &errMessage, &run.StartedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRunNotFound, "get ingestion run", err)
		}
		return nil, fmt.Errorf("scan ingestion run: %w", err)
	}

	run.Status = domain.RunStatus(status)
	run.FailedStage = failedStage.String
	run.Error = errMessage.String
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func (r *RunRepository) MarkSucceeded(ctx context.Context, id string, chunksProduced int) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ingestion_runs
SET status = $2, chunks_produced = $3, finished_at = $4
WHERE id = $1
`, id, string(domain.RunSucceeded), chunksProduced, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark run succeeded: %w", err)
	}
	return requireRunAffected(result, id)
}

func (r *RunRepository) MarkFailed(ctx context.Context, id string, stage, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ingestion_runs
SET status = $2, failed_stage = $3, error_message = $4, finished_at = $5
WHERE id = $1
`, id, string(domain.RunFailed), stage, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark run failed: %w", err)
	}
	return requireRunAffected(result, id)
}

func requireRunAffected(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrRunNotFound, "update ingestion run", fmt.Errorf("id %s", id))
	}
	return nil
}
