package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SpreadScout/internal/domain/models"
	"SpreadScout/internal/services/pricing"
	"SpreadScout/internal/services/ranking"
	"SpreadScout/internal/services/spreads"
	"SpreadScout/pkg/cache"
	"SpreadScout/pkg/logger"
)

type fixedRate struct{}

func (fixedRate) Rate(context.Context) (models.RateInfo, error) {
	return models.RateInfo{Value: 0.042, Source: "fallback"}, nil
}
func (fixedRate) Cached() models.RateInfo { return models.RateInfo{Value: 0.042, Source: "fallback"} }

type recordingSink struct {
	mu       sync.Mutex
	stored   []*models.RunResult
	notified int
}

func (r *recordingSink) StoreRun(_ context.Context, run *models.RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = append(r.stored, run)
	return nil
}
func (r *recordingSink) LatestRun(context.Context) (*models.RunResult, error) { return nil, nil }
func (r *recordingSink) Health(context.Context) error                       { return nil }
func (r *recordingSink) Close() error                                       { return nil }
func (r *recordingSink) PublishRun(context.Context, *models.RunResult) error {
	return errors.New("kafka unavailable")
}
func (r *recordingSink) NotifyEntries(context.Context, *models.RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified++
	return nil
}

// underlying builds a ladder with OTM puts at 90/95 and calls at 105/110,
// spot 100. shortBid sets the premium of both short legs.
func underlying(ticker string, shortBid float64) models.Underlying {
	sym := func(side string, k string) string { return "." + ticker + "250221" + side + k }
	return models.Underlying{
		Ticker: ticker,
		Mid:    100,
		Expirations: []models.Expiration{{
			Date: "2025-02-21",
			DTE:  30,
			Strikes: []models.StrikeRow{
				{Strike: 90, PutSymbol: sym("P", "90"), PutBid: 0.40, PutAsk: 0.42},
				{Strike: 95, PutSymbol: sym("P", "95"), PutBid: shortBid, PutAsk: shortBid + 0.04},
				{Strike: 105, CallSymbol: sym("C", "105"), CallBid: shortBid, CallAsk: shortBid + 0.04},
				{Strike: 110, CallSymbol: sym("C", "110"), CallBid: 0.40, CallAsk: 0.42},
			},
		}},
	}
}

func feedFor(snap *models.ChainSnapshot) *fakeFeed {
	feed := newFakeFeed()
	for _, u := range snap.Underlyings {
		for _, row := range u.Expirations[0].Strikes {
			if row.PutSymbol != "" {
				feed.available[row.PutSymbol] = []models.Greeks{{IV: 0.3, Delta: -0.25}}
			}
			if row.CallSymbol != "" {
				feed.available[row.CallSymbol] = []models.Greeks{{IV: 0.3, Delta: 0.25}}
			}
		}
	}
	return feed
}

func newTestDiscovery(feed *fakeFeed, sink *recordingSink, lock cache.Service) *Discovery {
	cfg := DefaultCollectorConfig()
	cfg.CoverageTarget = 1
	cfg.BatchTimeout = 200 * time.Millisecond
	cfg.RetryTimeout = 50 * time.Millisecond
	cfg.PollInterval = 10 * time.Millisecond
	col := NewGreeksCollector(feed, cfg, nopMetrics{}, logger.Nop())
	return NewDiscovery(col, spreads.New(spreads.DefaultConfig()), pricing.BlackScholes{}, fixedRate{},
		ranking.New(ranking.DefaultConfig()), sink, sink, sink, lock, nopMetrics{}, logger.Nop(), DiscoveryConfig{Workers: 2})
}

func TestDiscoveryRun(t *testing.T) {
	snap := &models.ChainSnapshot{Underlyings: []models.Underlying{underlying("XYZ", 1.00), underlying("ABC", 1.80)}}
	sink := &recordingSink{}
	mc := cache.NewMemoryCache()
	defer mc.Close()

	run, err := newTestDiscovery(feedFor(snap), sink, mc).Run(context.Background(), snap)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.RunID == "" || run.Collection.Requested != 8 || run.Collection.CoveragePct != 100 {
		t.Fatalf("unexpected run header %+v", run.Collection)
	}
	if run.Candidates.Built != 4 {
		t.Fatalf("expected 4 candidates, got %d (%v)", run.Candidates.Built, run.Candidates.Rejected)
	}
	if len(run.Spreads) != 2 {
		t.Fatalf("expected one spread per ticker, got %d", len(run.Spreads))
	}
	top := run.Spreads[0]
	if top.Ticker != "ABC" || top.Rank != 1 || top.Decision != models.DecisionEnter {
		t.Fatalf("unexpected top spread %+v", top)
	}
	if top.PoPMethod != models.PoPBlackScholes || top.PoP <= 0 || top.ShortIV != 0.3 {
		t.Fatalf("probability not attached: %+v", top)
	}
	if run.Spreads[1].Ticker != "XYZ" || run.Spreads[1].Decision != models.DecisionSkip {
		t.Fatalf("unexpected second spread %+v", run.Spreads[1])
	}
	if run.Summary.Total != 2 || run.Summary.Enter != 1 || run.Summary.Skip != 1 {
		t.Fatalf("unexpected summary %+v", run.Summary)
	}
	if len(sink.stored) != 1 || sink.notified != 1 {
		t.Fatalf("side effects must run despite publish failure: stored=%d notified=%d", len(sink.stored), sink.notified)
	}
	if ok, _ := mc.Exists(context.Background(), "lock:discovery"); ok {
		t.Fatalf("run lock not released")
	}
}

func TestDiscoveryRejectsConcurrentRun(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	_, _, _ = mc.TryLock(context.Background(), "lock:discovery", time.Minute)

	snap := &models.ChainSnapshot{Underlyings: []models.Underlying{underlying("XYZ", 1.00)}}
	_, err := newTestDiscovery(feedFor(snap), &recordingSink{}, mc).Run(context.Background(), snap)
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestDiscoveryFatalWithoutReadings(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	sink := &recordingSink{}

	snap := &models.ChainSnapshot{Underlyings: []models.Underlying{underlying("XYZ", 1.00)}}
	_, err := newTestDiscovery(newFakeFeed(), sink, mc).Run(context.Background(), snap)
	if !models.IsFatal(err) {
		t.Fatalf("expected fatal collection error, got %v", err)
	}
	if len(sink.stored) != 0 {
		t.Fatalf("failed run must not be stored")
	}
}

func TestAttachGreeksCopies(t *testing.T) {
	chains := []models.Chain{{
		Ticker: "XYZ",
		Spot:   100,
		Expirations: []models.ExpirationLadder{{
			Puts: []models.OptionContract{{Symbol: "a"}, {Symbol: "b"}},
		}},
	}}
	out := AttachGreeks(chains, map[string]models.Greeks{"a": {IV: 0.2}})
	if !out[0].Expirations[0].Puts[0].HasGreeks() || out[0].Expirations[0].Puts[1].HasGreeks() {
		t.Fatalf("unexpected attachment %+v", out[0].Expirations[0].Puts)
	}
	if chains[0].Expirations[0].Puts[0].Greeks != nil {
		t.Fatalf("input chain was modified")
	}
}

func TestDiscoveryRunSkipsBadRows(t *testing.T) {
	xyz := underlying("XYZ", 1.00)
	xyz.Bid = -0.01
	xyz.Expirations[0].Strikes = append(xyz.Expirations[0].Strikes,
		models.StrikeRow{Strike: 0, PutSymbol: ".XYZ250221P0", PutBid: 0.5, PutAsk: 0.52})
	broken := models.Underlying{Ticker: "BRK", Bid: -0.01, Ask: -0.01}
	snap := &models.ChainSnapshot{Underlyings: []models.Underlying{xyz, underlying("ABC", 1.80), broken}}
	if err := ValidateSnapshot(snap); err != nil {
		t.Fatalf("validate: %v", err)
	}

	mc := cache.NewMemoryCache()
	defer mc.Close()
	run, err := newTestDiscovery(feedFor(&models.ChainSnapshot{Underlyings: snap.Underlyings[:2]}), &recordingSink{}, mc).Run(context.Background(), snap)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Collection.Requested != 8 {
		t.Fatalf("strike 0 row must not be requested, got %d", run.Collection.Requested)
	}
	if len(run.Spreads) != 2 || run.Spreads[0].Ticker != "ABC" || run.Spreads[1].Ticker != "XYZ" {
		t.Fatalf("unexpected spreads %+v", run.Spreads)
	}
}
