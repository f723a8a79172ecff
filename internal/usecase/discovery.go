package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"SpreadScout/internal/domain/models"
	drepo "SpreadScout/internal/domain/repository"
	"SpreadScout/internal/domain/service"
	"SpreadScout/internal/services/liquidity"
	"SpreadScout/internal/services/pricing"
	"SpreadScout/internal/services/ranking"
	"SpreadScout/internal/services/spreads"
	"SpreadScout/pkg/cache"
	"SpreadScout/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrRunInProgress is returned when another discovery cycle holds the lock.
var ErrRunInProgress = errors.New("discovery: run already in progress")

type DiscoveryConfig struct {
	MinLiquidity      float64
	Workers           int
	LockKey           string
	LockTTL           time.Duration
	SideEffectTimeout time.Duration
}

// Discovery runs one full cycle over a chain snapshot: liquidity selection,
// Greeks collection, spread construction, probability and ranking. Storage,
// publishing and notification happen after ranking and never fail the run.
type Discovery struct {
	collector *GreeksCollector
	builder   *spreads.Builder
	estimator service.ProbabilityEstimator
	rates     service.RateProvider
	ranker    *ranking.Ranker
	store     drepo.RunStorage
	publisher drepo.RunPublisher
	notifier  drepo.Notifier
	lock      cache.Service
	metrics   drepo.Metrics
	log       *logger.Logger
	cfg       DiscoveryConfig
}

func NewDiscovery(
	collector *GreeksCollector,
	builder *spreads.Builder,
	estimator service.ProbabilityEstimator,
	rates service.RateProvider,
	ranker *ranking.Ranker,
	store drepo.RunStorage,
	publisher drepo.RunPublisher,
	notifier drepo.Notifier,
	lock cache.Service,
	metrics drepo.Metrics,
	log *logger.Logger,
	cfg DiscoveryConfig,
) *Discovery {
	if cfg.MinLiquidity <= 0 {
		cfg.MinLiquidity = liquidity.DefaultMinScore
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.LockKey == "" {
		cfg.LockKey = "lock:discovery"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.SideEffectTimeout <= 0 {
		cfg.SideEffectTimeout = 15 * time.Second
	}
	return &Discovery{
		collector: collector,
		builder:   builder,
		estimator: estimator,
		rates:     rates,
		ranker:    ranker,
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		lock:      lock,
		metrics:   metrics,
		log:       log,
		cfg:       cfg,
	}
}

// Run executes one discovery cycle. Only a whole-run collection failure,
// a held lock or cancellation return an error.
func (d *Discovery) Run(ctx context.Context, snap *models.ChainSnapshot) (*models.RunResult, error) {
	token, ok, err := d.lock.TryLock(ctx, d.cfg.LockKey, d.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	defer func() {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := d.lock.Unlock(uctx, d.cfg.LockKey, token); err != nil {
			d.log.Warn("release run lock failed", logger.Error(err))
		}
	}()

	start := time.Now()
	run, err := d.execute(ctx, snap)
	d.metrics.RecordLatency("discovery", time.Since(start).Seconds())
	if err != nil {
		if models.IsFatal(err) {
			d.metrics.RecordError("fatal_collection")
		}
		d.log.Error("discovery run failed", logger.Error(err))
		return nil, err
	}

	d.sideEffects(ctx, run)
	d.log.Info("discovery run done",
		logger.String("run_id", run.RunID),
		logger.Int("liquid", run.Liquid),
		logger.Float64("coverage_pct", run.Collection.CoveragePct),
		logger.Int("candidates", run.Candidates.Built),
		logger.Int("enter", run.Summary.Enter),
		logger.Int("watch", run.Summary.Watch),
		logger.Int("skip", run.Summary.Skip),
		logger.Duration("elapsed", time.Since(start)),
	)
	return run, nil
}

func (d *Discovery) execute(ctx context.Context, snap *models.ChainSnapshot) (*models.RunResult, error) {
	run := &models.RunResult{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}

	sel := liquidity.Select(snap, d.cfg.MinLiquidity, run.StartedAt)
	run.Liquid = sel.Liquid
	d.metrics.RecordCandidates("scored", sel.Scored)
	d.metrics.RecordCandidates("liquid", sel.Liquid)
	if len(sel.Symbols) == 0 {
		return nil, &models.FatalCollectionError{Requested: 0}
	}

	col, err := d.collector.Collect(ctx, sel.Symbols)
	if err != nil {
		return nil, err
	}
	run.Collection = col.Summary
	chains := AttachGreeks(sel.Chains, col.Readings)
	for _, sym := range col.Summary.Gaps {
		d.log.Debug("contract ineligible", logger.Error(&models.DataGapError{Symbol: sym}))
	}

	rate, err := d.rates.Rate(ctx)
	if err != nil {
		rate = d.rates.Cached()
	}
	run.Rate = rate

	built, err := d.buildAll(ctx, chains, rate.Value)
	if err != nil {
		return nil, err
	}
	run.Candidates = models.CandidateStats{
		Built:    len(built.Candidates),
		Rejected: built.Rejected,
		Suspect:  built.Suspect,
		DataGaps: built.DataGaps,
	}
	d.metrics.RecordCandidates("built", len(built.Candidates))
	for reason, n := range built.Rejected {
		for i := 0; i < n; i++ {
			d.metrics.RecordRejection(reason)
		}
	}

	ranked := d.ranker.Rank(built.Candidates)
	run.Summary = ranked.Summary
	run.Spreads = make([]models.SpreadRecord, 0, len(ranked.Spreads))
	for _, rs := range ranked.Spreads {
		run.Spreads = append(run.Spreads, rs.Record())
		d.metrics.RecordDecision(string(rs.Decision))
	}
	for _, s := range ranked.Suspect {
		run.Suspect = append(run.Suspect, s.Record(0))
		d.log.Warn("suspect candidate excluded",
			logger.String("ticker", s.Ticker),
			logger.Error(&models.SuspectDataWarning{ROI: s.ROI}),
		)
	}
	d.metrics.RecordCandidates("ranked", len(run.Spreads))
	run.FinishedAt = time.Now().UTC()
	return run, nil
}

// buildAll builds and prices each ticker's candidates in parallel and
// merges them in ticker order.
func (d *Discovery) buildAll(ctx context.Context, chains []models.Chain, rate float64) (spreads.Result, error) {
	sort.SliceStable(chains, func(i, j int) bool { return chains[i].Ticker < chains[j].Ticker })
	results := make([]spreads.Result, len(chains))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i := range chains {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := d.builder.Build(chains[i])
			res.Candidates = pricing.Apply(d.estimator, res.Candidates, rate)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return spreads.Result{}, err
	}

	var all spreads.Result
	for _, r := range results {
		all.Merge(r)
	}
	return all, nil
}

func (d *Discovery) sideEffects(ctx context.Context, run *models.RunResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.SideEffectTimeout)
	defer cancel()

	if err := d.store.StoreRun(ctx, run); err != nil {
		d.metrics.RecordError("store")
		d.log.Error("store run failed", logger.String("run_id", run.RunID), logger.Error(err))
	}
	if err := d.publisher.PublishRun(ctx, run); err != nil {
		d.metrics.RecordError("publish")
		d.log.Error("publish run failed", logger.String("run_id", run.RunID), logger.Error(err))
	}
	if err := d.notifier.NotifyEntries(ctx, run); err != nil {
		d.metrics.RecordError("notify")
		d.log.Warn("notify entries failed", logger.String("run_id", run.RunID), logger.Error(err))
	}
}

// AttachGreeks returns copies of chains whose contracts carry the collected
// reading for their symbol. Contracts without one keep nil Greeks.
func AttachGreeks(chains []models.Chain, readings map[string]models.Greeks) []models.Chain {
	out := make([]models.Chain, len(chains))
	for i, ch := range chains {
		cp := models.Chain{Ticker: ch.Ticker, Spot: ch.Spot, Expirations: make([]models.ExpirationLadder, len(ch.Expirations))}
		for j, exp := range ch.Expirations {
			cp.Expirations[j] = models.ExpirationLadder{
				Date:  exp.Date,
				DTE:   exp.DTE,
				Calls: attach(exp.Calls, readings),
				Puts:  attach(exp.Puts, readings),
			}
		}
		out[i] = cp
	}
	return out
}

func attach(contracts []models.OptionContract, readings map[string]models.Greeks) []models.OptionContract {
	out := make([]models.OptionContract, len(contracts))
	for i, c := range contracts {
		if g, ok := readings[c.Symbol]; ok {
			c = c.WithGreeks(g)
		}
		out[i] = c
	}
	return out
}
