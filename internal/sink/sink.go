// Package sink persists completed ranking runs to Postgres so results can
// be compared across runs after the source files are gone.
package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/BobTheBot988/streamtop/internal/ingest"
	"github.com/BobTheBot988/streamtop/pkg/logger"
	"github.com/BobTheBot988/streamtop/pkg/postgres"
)

// Sink writes ranking runs and their results.
type Sink struct {
	client *postgres.Client
	logger *slog.Logger
}

// New creates a Sink over an open Postgres client.
func New(client *postgres.Client) *Sink {
	return &Sink{
		client: client,
		logger: logger.Component("result-sink"),
	}
}

// EnsureSchema creates the result tables if they do not exist.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS ranking_runs (
	id         BIGSERIAL PRIMARY KEY,
	source     TEXT        NOT NULL,
	result_count INTEGER   NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS ranking_results (
	run_id BIGINT           NOT NULL REFERENCES ranking_runs(id) ON DELETE CASCADE,
	rank   INTEGER          NOT NULL,
	score  DOUBLE PRECISION NOT NULL,
	source_offset BIGINT    NOT NULL,
	line   TEXT             NOT NULL,
	PRIMARY KEY (run_id, rank)
);`
	if _, err := s.client.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating result schema: %w", err)
	}
	return nil
}

// SaveRun stores one run and all its ranked lines in a single transaction,
// returning the run id.
func (s *Sink) SaveRun(ctx context.Context, source string, results []ingest.RankedLine) (int64, error) {
	var runID int64
	err := s.client.InTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`INSERT INTO ranking_runs (source, result_count) VALUES ($1, $2) RETURNING id`,
			source, len(results),
		)
		if err := row.Scan(&runID); err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO ranking_results (run_id, rank, score, source_offset, line)
			 VALUES ($1, $2, $3, $4, $5)`,
		)
		if err != nil {
			return fmt.Errorf("preparing result insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range results {
			if _, err := stmt.ExecContext(ctx, runID, r.Rank, r.Score, r.Offset, r.Line); err != nil {
				return fmt.Errorf("inserting result rank %d: %w", r.Rank, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("run persisted", "run_id", runID, "source", source, "results", len(results))
	return runID, nil
}
