package repository

import (
	"context"
	"errors"
	"time"

	"SpreadScout/internal/domain/models"
)

// ErrPollTimeout is returned by GreeksFeed.PollNext when the deadline passes
// before an event arrives.
var ErrPollTimeout = errors.New("feed: poll deadline exceeded")

// GreeksFeed is a live event feed reframed as pull-with-deadline. The
// subscription set is owned by a single caller at a time.
type GreeksFeed interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Unsubscribe(ctx context.Context, symbols []string) error
	PollNext(deadline time.Time) (models.GreeksReading, error)
	Close() error
	IsConnected() bool
}

// RateSource fetches the current annualized risk-free rate (e.g. 0.043).
type RateSource interface {
	FetchRate(ctx context.Context) (float64, error)
}

// RunPublisher fans a finished run out to downstream consumers.
type RunPublisher interface {
	PublishRun(ctx context.Context, run *models.RunResult) error
	Close() error
}

// RunStorage persists runs and serves the latest one.
type RunStorage interface {
	StoreRun(ctx context.Context, run *models.RunResult) error
	LatestRun(ctx context.Context) (*models.RunResult, error)
	Health(ctx context.Context) error
	Close() error
}

// Notifier delivers actionable spreads to a human channel.
type Notifier interface {
	NotifyEntries(ctx context.Context, run *models.RunResult) error
}

type Metrics interface {
	RecordBatch(result string, requested, collected int)
	RecordRetry(requested, collected int)
	RecordCoverage(pct float64)
	RecordCandidates(stage string, n int)
	RecordRejection(reason string)
	RecordDecision(decision string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// ErrNoRun is returned when no discovery cycle has completed yet.
var ErrNoRun = errors.New("no completed run")
