// Package postgres persists validation reports in PostgreSQL so runs can be
// compared over time.
//
// Each run is one row in validation_runs; each analysed sample is one row in
// validation_samples carrying its raw metrics as JSONB and as a pgvector
// column, which backs the nearest-sample query. The vector extension must
// be installable in the target database; [Migrate] creates it if missing.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//	_ = store.SaveReport(ctx, report)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/prosodia/pkg/analysis"
)

const ddlRuns = `
CREATE TABLE IF NOT EXISTS validation_runs (
    run_id         TEXT         PRIMARY KEY,
    created_at     TIMESTAMPTZ  NOT NULL DEFAULT now(),
    meets_targets  BOOLEAN      NOT NULL,
    generation     JSONB,
    summary        JSONB        NOT NULL,
    validation     JSONB        NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_validation_runs_created_at
    ON validation_runs (created_at);
`

// ddlSamples returns the sample DDL with the metric vector width
// substituted.
func ddlSamples(dims int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS validation_samples (
    run_id            TEXT         NOT NULL REFERENCES validation_runs (run_id) ON DELETE CASCADE,
    name              TEXT         NOT NULL,
    emotion           TEXT         NOT NULL DEFAULT '',
    category          TEXT         NOT NULL DEFAULT '',
    test_path         TEXT         NOT NULL DEFAULT '',
    baseline_path     TEXT         NOT NULL DEFAULT '',
    test_metrics      JSONB        NOT NULL,
    baseline_metrics  JSONB,
    differences       JSONB,
    metrics_vec       vector(%d)   NOT NULL,
    PRIMARY KEY (run_id, name)
);

CREATE INDEX IF NOT EXISTS idx_validation_samples_emotion
    ON validation_samples (emotion);

CREATE INDEX IF NOT EXISTS idx_validation_samples_vec
    ON validation_samples USING hnsw (metrics_vec vector_l2_ops);
`, dims)
}

// Migrate creates the tables and indexes if they do not exist. It is
// idempotent and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlRuns, ddlSamples(analysis.VectorDimensions)} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
