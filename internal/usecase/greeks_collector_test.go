package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"SpreadScout/internal/domain/models"
	"SpreadScout/pkg/logger"
)

func testCollector(feed *fakeFeed, cfg CollectorConfig) *GreeksCollector {
	return NewGreeksCollector(feed, cfg, nopMetrics{}, logger.Nop())
}

func TestCollectEarlyExitOnTarget(t *testing.T) {
	feed := newFakeFeed()
	symbols := make([]string, 300)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("SYM%03d", i)
		feed.available[symbols[i]] = []models.Greeks{{IV: 0.25, Delta: -0.2}}
	}
	cfg := DefaultCollectorConfig()
	cfg.RetryTimeout = 0

	start := time.Now()
	col, err := testCollector(feed, cfg).Collect(context.Background(), symbols)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("collector consumed the window: %v", elapsed)
	}
	if col.Summary.Collected != 210 || feed.polls != 210 {
		t.Fatalf("expected exit at 210 readings, collected=%d polls=%d", col.Summary.Collected, feed.polls)
	}
	if col.Summary.CoveragePct != 70 {
		t.Fatalf("coverage = %v, want 70", col.Summary.CoveragePct)
	}
	if len(col.Summary.Gaps) != 90 || feed.unsubs != 1 {
		t.Fatalf("gaps=%d unsubs=%d", len(col.Summary.Gaps), feed.unsubs)
	}
}

func TestCollectRetryOnlyMissing(t *testing.T) {
	feed := newFakeFeed()
	var symbols []string
	for _, s := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		symbols = append(symbols, s)
		feed.available[s] = []models.Greeks{{IV: 0.3}}
	}
	symbols = append(symbols, "z")
	feed.available["z"] = []models.Greeks{{IV: 0}}
	feed.lateOnly["i"] = true
	feed.lateOnly["j"] = true
	feed.extra = []models.GreeksReading{{Symbol: "a", Greeks: models.Greeks{IV: 0.9}}}

	cfg := CollectorConfig{
		BatchSize:      50,
		CoverageTarget: 0.7,
		BatchTimeout:   300 * time.Millisecond,
		RetryTimeout:   200 * time.Millisecond,
		PollInterval:   20 * time.Millisecond,
	}
	col, err := testCollector(feed, cfg).Collect(context.Background(), symbols)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	s := col.Summary
	if s.Requested != 11 || s.Collected != 10 {
		t.Fatalf("requested=%d collected=%d", s.Requested, s.Collected)
	}
	if s.Retried != 3 {
		t.Fatalf("retried = %d, want 3", s.Retried)
	}
	if !reflect.DeepEqual(s.Gaps, []string{"z"}) {
		t.Fatalf("gaps = %v", s.Gaps)
	}
	if s.CoveragePct < 0 || s.CoveragePct > 100 {
		t.Fatalf("coverage out of range: %v", s.CoveragePct)
	}
	if feed.subs != 2 || feed.unsubs != 2 {
		t.Fatalf("expected one batch and one retry, subs=%d unsubs=%d", feed.subs, feed.unsubs)
	}
}

func TestCollectLastValidReadingWins(t *testing.T) {
	feed := newFakeFeed()
	feed.available["a"] = []models.Greeks{{IV: 0.2}, {IV: 0}, {IV: 0.3}}
	feed.available["b"] = []models.Greeks{{IV: 0.4}}
	cfg := DefaultCollectorConfig()
	cfg.CoverageTarget = 1
	col, err := testCollector(feed, cfg).Collect(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got := col.Readings["a"].IV; got != 0.3 {
		t.Fatalf("a iv = %v, want 0.3", got)
	}
}

func TestCollectFatalWithoutReadings(t *testing.T) {
	feed := newFakeFeed()
	cfg := CollectorConfig{
		BatchSize:      10,
		CoverageTarget: 0.7,
		BatchTimeout:   50 * time.Millisecond,
		RetryTimeout:   50 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
	}
	_, err := testCollector(feed, cfg).Collect(context.Background(), []string{"a", "b"})
	if !models.IsFatal(err) {
		t.Fatalf("expected fatal collection error, got %v", err)
	}
}

func TestCollectFatalWhenFeedUnreachable(t *testing.T) {
	feed := newFakeFeed()
	dialErr := errors.New("feed connect: connection refused")
	feed.dialErr = dialErr
	_, err := testCollector(feed, DefaultCollectorConfig()).Collect(context.Background(), []string{"a", "b"})
	if !models.IsFatal(err) {
		t.Fatalf("expected fatal collection error, got %v", err)
	}
	if !errors.Is(err, dialErr) {
		t.Fatalf("connect cause lost: %v", err)
	}
	var fe *models.FatalCollectionError
	if !errors.As(err, &fe) || fe.Requested != 2 {
		t.Fatalf("requested = %d, want 2", fe.Requested)
	}
}

func TestCollectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testCollector(newFakeFeed(), DefaultCollectorConfig()).Collect(ctx, []string{"a"})
	if err == nil || models.IsFatal(err) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestMissing(t *testing.T) {
	got := map[string]models.Greeks{"b": {IV: 0.2}}
	if m := Missing([]string{"a", "b", "c"}, got); !reflect.DeepEqual(m, []string{"a", "c"}) {
		t.Fatalf("missing = %v", m)
	}
	if m := Missing([]string{"b"}, got); len(m) != 0 {
		t.Fatalf("expected nothing missing, got %v", m)
	}
}
