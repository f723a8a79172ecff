package repository

import (
	"context"
	"sync"
	"time"

	"SpreadScout/internal/domain/models"
	domrepo "SpreadScout/internal/domain/repository"
	"SpreadScout/pkg/cache"
)

const latestRunKey = "run:latest"

// CachedRunStorage writes every run to the cache and to the inner store,
// and serves the latest run from the cache first.
type CachedRunStorage struct {
	inner domrepo.RunStorage
	cache cache.Service
	ttl   time.Duration
}

func NewCachedRunStorage(inner domrepo.RunStorage, c cache.Service, ttl time.Duration) *CachedRunStorage {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedRunStorage{inner: inner, cache: c, ttl: ttl}
}

var _ domrepo.RunStorage = (*CachedRunStorage)(nil)

// StoreRun updates the cache even when the inner store fails, so the API
// keeps serving the newest run.
func (s *CachedRunStorage) StoreRun(ctx context.Context, run *models.RunResult) error {
	cerr := s.cache.Set(ctx, latestRunKey, run, s.ttl)
	if err := s.inner.StoreRun(ctx, run); err != nil {
		return err
	}
	return cerr
}

func (s *CachedRunStorage) LatestRun(ctx context.Context) (*models.RunResult, error) {
	var run models.RunResult
	if err := s.cache.Get(ctx, latestRunKey, &run); err == nil {
		return &run, nil
	}
	// a miss or a cache outage both fall through to the store
	latest, err := s.inner.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, latestRunKey, latest, s.ttl)
	return latest, nil
}

func (s *CachedRunStorage) Health(ctx context.Context) error {
	if err := s.cache.Ping(ctx); err != nil {
		return err
	}
	return s.inner.Health(ctx)
}

func (s *CachedRunStorage) Close() error {
	return s.inner.Close()
}

// MemoryRunStorage keeps only the latest run. It serves the one-shot CLI
// and deployments without ClickHouse.
type MemoryRunStorage struct {
	mu     sync.RWMutex
	latest *models.RunResult
}

func NewMemoryRunStorage() *MemoryRunStorage { return &MemoryRunStorage{} }

var _ domrepo.RunStorage = (*MemoryRunStorage)(nil)

func (s *MemoryRunStorage) StoreRun(_ context.Context, run *models.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.latest = &cp
	return nil
}

func (s *MemoryRunStorage) LatestRun(context.Context) (*models.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, domrepo.ErrNoRun
	}
	cp := *s.latest
	return &cp, nil
}

func (s *MemoryRunStorage) Health(context.Context) error { return nil }
func (s *MemoryRunStorage) Close() error                 { return nil }
