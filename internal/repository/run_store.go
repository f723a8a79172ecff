package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"SpreadScout/internal/domain/models"
	domrepo "SpreadScout/internal/domain/repository"
	pkgch "SpreadScout/pkg/clickhouse"
	applogger "SpreadScout/pkg/logger"
)

// Schema returns the idempotent DDL for the run tables in database.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.spread_runs (
            run_id String,
            started_at DateTime64(3),
            finished_at DateTime64(3),
            requested UInt32,
            collected UInt32,
            coverage_pct Float64,
            rate Float64,
            rate_source LowCardinality(String),
            enter UInt32,
            watch UInt32,
            skip UInt32,
            payload String
        ) ENGINE = MergeTree ORDER BY (finished_at, run_id)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.ranked_spreads (
            run_id String,
            finished_at DateTime64(3),
            rank UInt32,
            ticker LowCardinality(String),
            type LowCardinality(String),
            expiration Date,
            dte UInt16,
            short_strike Float64,
            long_strike Float64,
            width Float64,
            net_credit Float64,
            max_loss Float64,
            roi Float64,
            pop Float64,
            pop_method LowCardinality(String),
            score Float64,
            composite Float64,
            decision LowCardinality(String)
        ) ENGINE = MergeTree ORDER BY (finished_at, run_id, rank)`, database),
	}
}

// ClickHouseRunStorage keeps every run summary with its full JSON payload
// plus one row per ranked spread for ad-hoc queries.
type ClickHouseRunStorage struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewClickHouseRunStorage(ch *pkgch.Client, database string, l *applogger.Logger) *ClickHouseRunStorage {
	return &ClickHouseRunStorage{db: ch.DB(), database: database, l: l}
}

var _ domrepo.RunStorage = (*ClickHouseRunStorage)(nil)

func (s *ClickHouseRunStorage) StoreRun(ctx context.Context, run *models.RunResult) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s.spread_runs
        (run_id, started_at, finished_at, requested, collected, coverage_pct, rate, rate_source, enter, watch, skip, payload)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database)
	_, err = s.db.ExecContext(ctx, q,
		run.RunID,
		run.StartedAt,
		run.FinishedAt,
		uint32(run.Collection.Requested),
		uint32(run.Collection.Collected),
		run.Collection.CoveragePct,
		run.Rate.Value,
		run.Rate.Source,
		uint32(run.Summary.Enter),
		uint32(run.Summary.Watch),
		uint32(run.Summary.Skip),
		string(payload),
	)
	if err != nil {
		s.l.Error("clickhouse store run error", applogger.String("run_id", run.RunID), applogger.Error(err))
		return fmt.Errorf("insert run: %w", err)
	}
	return s.storeSpreads(ctx, run)
}

func (s *ClickHouseRunStorage) storeSpreads(ctx context.Context, run *models.RunResult) error {
	if len(run.Spreads) == 0 {
		return nil
	}
	values := make([]string, 0, len(run.Spreads))
	args := make([]interface{}, 0, len(run.Spreads)*18)
	for _, r := range run.Spreads {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			run.RunID,
			run.FinishedAt,
			uint32(r.Rank),
			r.Ticker,
			string(r.Type),
			r.Expiration.Date,
			uint16(r.Expiration.DTE),
			r.ShortStrike,
			r.LongStrike,
			r.Width,
			r.NetCredit,
			r.MaxLoss,
			r.ROI,
			r.PoP,
			string(r.PoPMethod),
			r.Score,
			r.Composite,
			string(r.Decision),
		)
	}
	q := fmt.Sprintf(`INSERT INTO %s.ranked_spreads
        (run_id, finished_at, rank, ticker, type, expiration, dte, short_strike, long_strike, width,
         net_credit, max_loss, roi, pop, pop_method, score, composite, decision)
        VALUES %s`, s.database, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse store spreads error",
			applogger.String("run_id", run.RunID),
			applogger.Int("rows", len(values)),
			applogger.Error(err),
		)
		return fmt.Errorf("insert spreads: %w", err)
	}
	return nil
}

func (s *ClickHouseRunStorage) LatestRun(ctx context.Context) (*models.RunResult, error) {
	q := fmt.Sprintf("SELECT payload FROM %s.spread_runs ORDER BY finished_at DESC LIMIT 1", s.database)
	var payload string
	if err := s.db.QueryRowContext(ctx, q).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domrepo.ErrNoRun
		}
		return nil, fmt.Errorf("latest run: %w", err)
	}
	var run models.RunResult
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}

func (s *ClickHouseRunStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseRunStorage) Close() error {
	return nil // pool owned by pkg/clickhouse
}
