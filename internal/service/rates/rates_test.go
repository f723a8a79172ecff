package rates

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"SpreadScout/pkg/cache"
	xhttp "SpreadScout/pkg/http"
	"SpreadScout/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordBatch(string, int, int)  {}
func (nopMetrics) RecordRetry(int, int)          {}
func (nopMetrics) RecordCoverage(float64)        {}
func (nopMetrics) RecordCandidates(string, int)  {}
func (nopMetrics) RecordRejection(string)        {}
func (nopMetrics) RecordDecision(string)         {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}

type seqSource struct {
	results []float64
	errs    []error
	calls   int
}

func (s *seqSource) FetchRate(context.Context) (float64, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return 0, s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return 0, errors.New("exhausted")
}

func testProvider(src *seqSource) (*Provider, *cache.MemoryCache) {
	mc := cache.NewMemoryCache()
	p := NewProvider(src, mc, nopMetrics{}, logger.Nop(), ProviderConfig{BackoffBase: time.Millisecond})
	return p, mc
}

func TestFREDSourceLastObservation(t *testing.T) {
	csvBody := "observation_date,DGS3MO\n2025-01-02,4.34\n2025-01-03,4.31\n2025-01-06,.\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "DGS3MO" {
			http.Error(w, "bad series", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(csvBody))
	}))
	defer srv.Close()

	src := NewFREDSource(xhttp.NewClient(xhttp.WithTimeout(2*time.Second)), srv.URL, "")
	v, err := src.FetchRate(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if math.Abs(v-0.0431) > 1e-9 {
		t.Fatalf("rate = %v, want 0.0431", v)
	}
}

func TestLastObservationEmpty(t *testing.T) {
	if _, err := lastObservation(strings.NewReader("DATE,DGS3MO\n2025-01-06,.\n")); !errors.Is(err, ErrNoObservation) {
		t.Fatalf("expected ErrNoObservation, got %v", err)
	}
}

func TestProviderRetriesThenSucceeds(t *testing.T) {
	src := &seqSource{
		errs:    []error{errors.New("timeout"), errors.New("503"), nil},
		results: []float64{0, 0, 0.0435},
	}
	p, mc := testProvider(src)
	defer mc.Close()

	info, err := p.Rate(context.Background())
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if info.Value != 0.0435 || info.Source != SourceFeed || src.calls != 3 {
		t.Fatalf("unexpected %+v after %d calls", info, src.calls)
	}
	if p.Cached().Value != 0.0435 {
		t.Fatalf("cached = %+v", p.Cached())
	}
}

func TestProviderFallbackCachedForDay(t *testing.T) {
	src := &seqSource{results: []float64{4.3, 4.3, 4.3}}
	p, mc := testProvider(src)
	defer mc.Close()

	info, _ := p.Rate(context.Background())
	if info.Value != DefaultFallback || info.Source != SourceFallback {
		t.Fatalf("expected fallback, got %+v", info)
	}
	if src.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", src.calls)
	}

	again, _ := p.Rate(context.Background())
	if again.Value != DefaultFallback || again.Source != SourceCache || src.calls != 3 {
		t.Fatalf("second call should hit the day cache: %+v calls=%d", again, src.calls)
	}
}

func TestProviderCachedWithoutIO(t *testing.T) {
	src := &seqSource{}
	p, mc := testProvider(src)
	defer mc.Close()
	if info := p.Cached(); info.Value != DefaultFallback || src.calls != 0 {
		t.Fatalf("unexpected %+v calls=%d", info, src.calls)
	}
}
