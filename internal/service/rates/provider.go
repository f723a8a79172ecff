package rates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SpreadScout/internal/domain/models"
	drepo "SpreadScout/internal/domain/repository"
	"SpreadScout/internal/domain/service"
	"SpreadScout/pkg/cache"
	"SpreadScout/pkg/logger"
	"SpreadScout/pkg/util"
)

const (
	DefaultFallback = 0.042

	SourceFeed     = "fred"
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

type ProviderConfig struct {
	Attempts    int
	BackoffBase time.Duration
	Fallback    float64
	MaxRate     float64
}

// Provider caches one rate per calendar day. When every attempt fails it
// serves the fallback and caches that for the day too.
type Provider struct {
	source  drepo.RateSource
	cache   cache.Service
	metrics drepo.Metrics
	log     *logger.Logger
	cfg     ProviderConfig
	now     func() time.Time

	mu   sync.RWMutex
	last *models.RateInfo
}

func NewProvider(source drepo.RateSource, c cache.Service, metrics drepo.Metrics, log *logger.Logger, cfg ProviderConfig) *Provider {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.Fallback <= 0 {
		cfg.Fallback = DefaultFallback
	}
	if cfg.MaxRate <= 0 {
		cfg.MaxRate = 0.25
	}
	return &Provider{source: source, cache: c, metrics: metrics, log: log, cfg: cfg, now: time.Now}
}

var _ service.RateProvider = (*Provider)(nil)

func (p *Provider) key() string {
	return cache.GenerateKey("rate", p.now().UTC().Format(util.DateLayout))
}

// Rate returns today's rate. It never fails: after exhausting its attempts
// it returns the fallback.
func (p *Provider) Rate(ctx context.Context) (models.RateInfo, error) {
	key := p.key()
	if info, err := cache.GetTyped[models.RateInfo](ctx, p.cache, key); err == nil && info.Value > 0 {
		info.Source = SourceCache
		p.remember(info)
		return info, nil
	}

	start := time.Now()
fetch:
	for attempt := 0; attempt < p.cfg.Attempts; attempt++ {
		v, err := p.source.FetchRate(ctx)
		if err == nil && (v <= 0 || v > p.cfg.MaxRate) {
			err = fmt.Errorf("rate %.4f out of range", v)
		}
		if err == nil {
			info := models.RateInfo{Value: v, Source: SourceFeed}
			p.store(ctx, key, info)
			p.metrics.RecordLatency("rate_fetch", time.Since(start).Seconds())
			return info, nil
		}
		p.metrics.RecordError("rate")
		p.log.Warn("risk-free rate fetch failed", logger.Int("attempt", attempt+1), logger.Error(err))
		if attempt == p.cfg.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			break fetch
		case <-time.After(p.cfg.BackoffBase * time.Duration(1<<attempt)):
		}
	}

	info := models.RateInfo{Value: p.cfg.Fallback, Source: SourceFallback}
	p.log.Warn("using fallback risk-free rate", logger.Float64("rate", info.Value))
	p.store(ctx, key, info)
	return info, nil
}

// Cached returns the last known rate without I/O.
func (p *Provider) Cached() models.RateInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return models.RateInfo{Value: p.cfg.Fallback, Source: SourceFallback}
	}
	return *p.last
}

func (p *Provider) store(ctx context.Context, key string, info models.RateInfo) {
	p.remember(info)
	if err := p.cache.Set(ctx, key, info, 24*time.Hour); err != nil {
		p.log.Warn("cache rate failed", logger.Error(err))
	}
}

func (p *Provider) remember(info models.RateInfo) {
	p.mu.Lock()
	p.last = &info
	p.mu.Unlock()
}
