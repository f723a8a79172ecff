package usecase

import (
	"context"
	"sync"
	"time"

	"SpreadScout/internal/domain/models"
	drepo "SpreadScout/internal/domain/repository"
)

// fakeFeed queues the configured readings for every subscribed symbol and
// serves them in subscription order.
type fakeFeed struct {
	mu        sync.Mutex
	available map[string][]models.Greeks
	lateOnly  map[string]bool
	extra     []models.GreeksReading
	queue     []models.GreeksReading
	subs      int
	unsubs    int
	polls     int
	connected bool
	dialErr   error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{available: map[string][]models.Greeks{}, lateOnly: map[string]bool{}}
}

func (f *fakeFeed) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dialErr != nil {
		return f.dialErr
	}
	f.connected = true
	return nil
}

func (f *fakeFeed) Subscribe(_ context.Context, symbols []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs++
	for _, s := range symbols {
		if f.lateOnly[s] && f.subs == 1 {
			continue
		}
		for _, g := range f.available[s] {
			f.queue = append(f.queue, models.GreeksReading{Symbol: s, Greeks: g, ReceivedAt: time.Now()})
		}
	}
	f.queue = append(f.queue, f.extra...)
	return nil
}

func (f *fakeFeed) Unsubscribe(_ context.Context, symbols []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs++
	drop := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		drop[s] = true
	}
	kept := f.queue[:0]
	for _, r := range f.queue {
		if !drop[r.Symbol] {
			kept = append(kept, r)
		}
	}
	f.queue = kept
	return nil
}

func (f *fakeFeed) PollNext(deadline time.Time) (models.GreeksReading, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		r := f.queue[0]
		f.queue = f.queue[1:]
		f.polls++
		f.mu.Unlock()
		return r, nil
	}
	f.mu.Unlock()
	time.Sleep(time.Until(deadline))
	return models.GreeksReading{}, drepo.ErrPollTimeout
}

func (f *fakeFeed) Close() error { return nil }

func (f *fakeFeed) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

type nopMetrics struct{}

func (nopMetrics) RecordBatch(string, int, int) {}
func (nopMetrics) RecordRetry(int, int) {}
func (nopMetrics) RecordCoverage(float64) {}
func (nopMetrics) RecordCandidates(string, int) {}
func (nopMetrics) RecordRejection(string) {}
func (nopMetrics) RecordDecision(string) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordLatency(string, float64) {}

var _ drepo.GreeksFeed = (*fakeFeed)(nil)
var _ drepo.Metrics = nopMetrics{}
