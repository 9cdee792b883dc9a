package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/prosodia/internal/validate"
	"github.com/MrWong99/prosodia/pkg/analysis"
	"github.com/MrWong99/prosodia/pkg/emotion"
)

// ErrRunNotFound is returned by [Store.LoadReport] for an unknown run ID.
var ErrRunNotFound = errors.New("postgres store: run not found")

// Store is a PostgreSQL-backed report store. It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, registers pgvector types on every connection
// and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping checks connectivity. It doubles as a readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveReport stores r and its samples in one transaction. Saving a run ID
// that already exists replaces it.
func (s *Store) SaveReport(ctx context.Context, r *validate.Report) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM validation_runs WHERE run_id = $1`, r.RunID); err != nil {
			return err
		}
		const qRun = `
			INSERT INTO validation_runs (run_id, created_at, meets_targets, generation, summary, validation)
			VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.Exec(ctx, qRun,
			r.RunID,
			r.Timestamp,
			r.Validation.MeetsTargets,
			r.Generation,
			r.Summary,
			r.Validation,
		); err != nil {
			return err
		}

		const qSample = `
			INSERT INTO validation_samples
			    (run_id, name, emotion, category, test_path, baseline_path,
			     test_metrics, baseline_metrics, differences, metrics_vec)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		batch := &pgx.Batch{}
		for _, smp := range r.Samples {
			if smp.TestMetrics == nil {
				continue
			}
			batch.Queue(qSample,
				r.RunID,
				smp.Name,
				string(smp.Emotion),
				smp.Category,
				smp.TestPath,
				smp.BaselinePath,
				smp.TestMetrics,
				smp.BaselineMetrics,
				smp.Differences,
				pgvector.NewVector(smp.TestMetrics.Vector()),
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("postgres store: save report %s: %w", r.RunID, err)
	}
	return nil
}

// LoadReport reassembles a stored report.
func (s *Store) LoadReport(ctx context.Context, runID string) (*validate.Report, error) {
	r := &validate.Report{RunID: runID}
	err := s.pool.QueryRow(ctx, `
		SELECT created_at, generation, summary, validation
		FROM   validation_runs
		WHERE  run_id = $1`, runID,
	).Scan(&r.Timestamp, &r.Generation, &r.Summary, &r.Validation)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: load run: %w", err)
	}
	r.Timestamp = r.Timestamp.UTC()

	rows, err := s.pool.Query(ctx, `
		SELECT name, emotion, category, test_path, baseline_path,
		       test_metrics, baseline_metrics, differences
		FROM   validation_samples
		WHERE  run_id = $1
		ORDER  BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: load samples: %w", err)
	}
	samples, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (validate.SampleResult, error) {
		var (
			smp validate.SampleResult
			emo string
		)
		err := row.Scan(
			&smp.Name,
			&emo,
			&smp.Category,
			&smp.TestPath,
			&smp.BaselinePath,
			&smp.TestMetrics,
			&smp.BaselineMetrics,
			&smp.Differences,
		)
		smp.Emotion = emotion.ID(emo)
		return smp, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan samples: %w", err)
	}
	if samples == nil {
		samples = []validate.SampleResult{}
	}
	r.Samples = samples
	return r, nil
}

// RunInfo is one row of [Store.RecentRuns].
type RunInfo struct {
	RunID        string
	CreatedAt    time.Time
	MeetsTargets bool
	Samples      int
}

// RecentRuns lists the newest runs first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.run_id, r.created_at, r.meets_targets, count(s.name)
		FROM   validation_runs r
		LEFT   JOIN validation_samples s ON s.run_id = r.run_id
		GROUP  BY r.run_id
		ORDER  BY r.created_at DESC
		LIMIT  $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: recent runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (RunInfo, error) {
		var ri RunInfo
		err := row.Scan(&ri.RunID, &ri.CreatedAt, &ri.MeetsTargets, &ri.Samples)
		return ri, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan runs: %w", err)
	}
	return runs, nil
}

// Neighbor is a stored sample close to a query in metric space.
type Neighbor struct {
	RunID    string
	Name     string
	Emotion  emotion.ID
	Metrics  analysis.Metrics
	Distance float64
}

// NearestSamples returns the k stored samples whose metric vectors are
// closest (Euclidean) to m. Samples of excludeRun are ignored when it is
// non-empty, so a run can be compared against history only.
func (s *Store) NearestSamples(ctx context.Context, m analysis.Metrics, k int, excludeRun string) ([]Neighbor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, name, emotion, test_metrics, metrics_vec <-> $1 AS distance
		FROM   validation_samples
		WHERE  $2::text = '' OR run_id <> $2::text
		ORDER  BY distance
		LIMIT  $3`, pgvector.NewVector(m.Vector()), excludeRun, k)
	if err != nil {
		return nil, fmt.Errorf("postgres store: nearest samples: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Neighbor, error) {
		var (
			n   Neighbor
			emo string
		)
		err := row.Scan(&n.RunID, &n.Name, &emo, &n.Metrics, &n.Distance)
		n.Emotion = emotion.ID(emo)
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan neighbors: %w", err)
	}
	if out == nil {
		out = []Neighbor{}
	}
	return out, nil
}
