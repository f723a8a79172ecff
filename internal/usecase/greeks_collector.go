package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"SpreadScout/internal/domain/models"
	drepo "SpreadScout/internal/domain/repository"
	"SpreadScout/pkg/logger"
)

// CollectorConfig bounds one collection pass.
type CollectorConfig struct {
	BatchSize      int
	CoverageTarget float64 // fraction of a batch, 0..1
	BatchTimeout   time.Duration
	RetryTimeout   time.Duration
	PollInterval   time.Duration
}

func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		BatchSize:      300,
		CoverageTarget: 0.70,
		BatchTimeout:   8 * time.Second,
		RetryTimeout:   4 * time.Second,
		PollInterval:   300 * time.Millisecond,
	}
}

// Collection is the result of one collection pass: the last valid reading
// per symbol plus diagnostics.
type Collection struct {
	Readings map[string]models.Greeks
	Summary  models.CollectionSummary
}

// GreeksCollector attaches Greeks to a symbol set within bounded windows.
// It owns the feed subscription while Collect runs.
type GreeksCollector struct {
	feed    drepo.GreeksFeed
	cfg     CollectorConfig
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewGreeksCollector(feed drepo.GreeksFeed, cfg CollectorConfig, metrics drepo.Metrics, log *logger.Logger) *GreeksCollector {
	def := DefaultCollectorConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.CoverageTarget <= 0 || cfg.CoverageTarget > 1 {
		cfg.CoverageTarget = def.CoverageTarget
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = def.BatchTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	return &GreeksCollector{feed: feed, cfg: cfg, metrics: metrics, log: log}
}

// Collect runs the primary batches over symbols, then one retry window over
// whatever is still missing. It fails only when no symbol produced a valid
// reading or ctx is cancelled.
func (c *GreeksCollector) Collect(ctx context.Context, symbols []string) (*Collection, error) {
	symbols = dedupe(symbols)
	got := make(map[string]models.Greeks, len(symbols))
	summary := models.CollectionSummary{Requested: len(symbols)}

	if !c.feed.IsConnected() {
		if err := c.feed.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &models.FatalCollectionError{Requested: summary.Requested, Err: err}
		}
	}

	for i, batch := range chunk(symbols, c.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		n, early, err := c.window(ctx, batch, c.cfg.BatchTimeout, c.cfg.CoverageTarget, got)
		if err != nil {
			return nil, err
		}
		summary.Batches++
		result := "timeout"
		if early {
			result = "target"
		}
		c.metrics.RecordBatch(result, len(batch), n)
		c.log.Info("greeks batch done",
			logger.Int("batch", i),
			logger.Int("size", len(batch)),
			logger.Int("collected", n),
			logger.Float64("coverage", pct(n, len(batch))),
			logger.Duration("elapsed", time.Since(start)),
			logger.Bool("early_exit", early),
		)
	}

	missing := Missing(symbols, got)
	if len(missing) > 0 && c.cfg.RetryTimeout > 0 {
		summary.Retried = len(missing)
		recovered := 0
		for _, batch := range chunk(missing, c.cfg.BatchSize) {
			n, _, err := c.window(ctx, batch, c.cfg.RetryTimeout, 1, got)
			if err != nil {
				return nil, err
			}
			recovered += n
		}
		c.metrics.RecordRetry(len(missing), recovered)
		c.log.Info("greeks retry done",
			logger.Int("missing", len(missing)),
			logger.Int("recovered", recovered),
		)
		missing = Missing(symbols, got)
	}
	if len(missing) > 0 {
		sample := missing
		if len(sample) > 10 {
			sample = sample[:10]
		}
		c.log.Debug("greeks gaps", logger.Int("count", len(missing)), logger.Strings("sample", sample))
	}

	summary.Collected = len(got)
	summary.CoveragePct = pct(summary.Collected, summary.Requested)
	summary.Gaps = missing
	c.metrics.RecordCoverage(summary.CoveragePct)

	if summary.Collected == 0 {
		c.metrics.RecordError("collection")
		return nil, &models.FatalCollectionError{Requested: summary.Requested}
	}
	return &Collection{Readings: got, Summary: summary}, nil
}

// window subscribes to batch and polls until target*len(batch) symbols of
// the batch have a valid reading or timeout elapses. Readings for symbols
// already present in got from an earlier window are refreshed but never
// counted again. It returns the number of newly validated symbols.
func (c *GreeksCollector) window(ctx context.Context, batch []string, timeout time.Duration, target float64, got map[string]models.Greeks) (int, bool, error) {
	want := make(map[string]struct{}, len(batch))
	have := 0
	for _, s := range batch {
		want[s] = struct{}{}
		if _, ok := got[s]; ok {
			have++
		}
	}
	need := int(math.Ceil(target*float64(len(batch)) - 1e-9))

	if err := c.feed.Subscribe(ctx, batch); err != nil {
		c.metrics.RecordError("subscribe")
		c.log.Warn("greeks subscribe failed", logger.Int("size", len(batch)), logger.Error(err))
		return 0, false, nil
	}
	defer func() {
		uctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := c.feed.Unsubscribe(uctx, batch); err != nil {
			c.log.Warn("greeks unsubscribe failed", logger.Error(err))
		}
	}()

	added := 0
	deadline := time.Now().Add(timeout)
	for have < need {
		if err := ctx.Err(); err != nil {
			return added, false, err
		}
		now := time.Now()
		if !now.Before(deadline) {
			return added, false, nil
		}
		wait := now.Add(c.cfg.PollInterval)
		if wait.After(deadline) {
			wait = deadline
		}
		r, err := c.feed.PollNext(wait)
		if errors.Is(err, drepo.ErrPollTimeout) {
			continue
		}
		if err != nil {
			c.metrics.RecordError("feed")
			c.log.Warn("greeks poll failed", logger.Error(err))
			return added, false, nil
		}
		if _, ok := want[r.Symbol]; !ok || !r.Greeks.Valid() {
			continue
		}
		if _, seen := got[r.Symbol]; !seen {
			have++
			added++
		}
		got[r.Symbol] = r.Greeks
	}
	return added, true, nil
}

// Missing returns the requested symbols without a reading, in request order.
func Missing(requested []string, got map[string]models.Greeks) []string {
	var out []string
	for _, s := range requested {
		if _, ok := got[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func chunk(symbols []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(symbols); start += size {
		end := start + size
		if end > len(symbols) {
			end = len(symbols)
		}
		out = append(out, symbols[start:end])
	}
	return out
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func pct(n, of int) float64 {
	if of <= 0 {
		return 0
	}
	return math.Min(float64(n)/float64(of)*100, 100)
}
