package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SpreadScout/internal/domain/models"
	"SpreadScout/internal/repository"
	"SpreadScout/internal/service/ratelimit"
	"SpreadScout/internal/usecase"
	xhttp "SpreadScout/pkg/http"
	xlogger "SpreadScout/pkg/logger"

	"github.com/labstack/echo/v4"
)

type fakeEnqueuer struct {
	msgType string
	payload interface{}
	err     error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	f.msgType, f.payload = msgType, payload
	if f.err != nil {
		return "", f.err
	}
	return "job-1", nil
}

func sampleRun() *models.RunResult {
	return &models.RunResult{
		RunID:   "run-1",
		Summary: models.DecisionCounts{Total: 3, Enter: 1, Watch: 1, Skip: 1},
		Spreads: []models.SpreadRecord{
			{Rank: 1, Ticker: "ABC", Decision: models.DecisionEnter},
			{Rank: 2, Ticker: "XYZ", Decision: models.DecisionWatch},
			{Rank: 3, Ticker: "QQQ", Decision: models.DecisionSkip},
		},
	}
}

func newTestEcho(t *testing.T, run *models.RunResult, jobs *fakeEnqueuer) *echo.Echo {
	t.Helper()
	store := repository.NewMemoryRunStorage()
	if run != nil {
		if err := store.StoreRun(context.Background(), run); err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	h := NewSpreadsEchoHandler(xlogger.Nop(), store, jobs, ratelimit.New(1, 0.001), map[string]HealthCheck{
		"storage": store.Health,
	})
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSpreadsFiltersByDecision(t *testing.T) {
	e := newTestEcho(t, sampleRun(), &fakeEnqueuer{})
	rec := do(e, http.MethodGet, "/api/spreads?decision=WATCH", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			Rows  []models.SpreadRecord `json:"rows"`
			Total int64                 `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data.Rows) != 1 || resp.Data.Rows[0].Ticker != "XYZ" || resp.Data.Total != 3 {
		t.Fatalf("unexpected response %+v", resp.Data)
	}
}

func TestSpreadsRejectsBadDecision(t *testing.T) {
	e := newTestEcho(t, sampleRun(), &fakeEnqueuer{})
	rec := do(e, http.MethodGet, "/api/spreads?decision=MAYBE", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Data []xhttp.ValidationError `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Data) != 1 || resp.Data[0].Field != "decision" || resp.Data[0].Code != "ERR_ONEOF" {
		t.Fatalf("unexpected validation errors %+v", resp.Data)
	}
}

func TestSummaryWithoutRun(t *testing.T) {
	e := newTestEcho(t, nil, &fakeEnqueuer{})
	if rec := do(e, http.MethodGet, "/api/summary", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSummaryViews(t *testing.T) {
	e := newTestEcho(t, sampleRun(), &fakeEnqueuer{})
	rec := do(e, http.MethodGet, "/api/summary", "")
	var resp struct {
		Data models.RunSummary `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Summary.Enter != 1 || len(resp.Data.EnterTrades) != 1 || len(resp.Data.WatchList) != 1 {
		t.Fatalf("unexpected summary %+v", resp.Data)
	}
}

const snapshotBody = `{"underlyings":[{"ticker":"ABC","mid":100,"expirations":[{"date":"2030-01-18","strikes":[{"strike":95,"put_symbol":".ABC300118P95","put_bid":1,"put_ask":1.1}]}]}]}`

func TestTriggerRunQueuesAndRateLimits(t *testing.T) {
	jobs := &fakeEnqueuer{}
	e := newTestEcho(t, nil, jobs)

	rec := do(e, http.MethodPost, "/api/runs", snapshotBody)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if jobs.msgType != usecase.DiscoveryJobType {
		t.Fatalf("job type = %q", jobs.msgType)
	}
	snap, ok := jobs.payload.(*models.ChainSnapshot)
	if !ok || snap.Underlyings[0].Ticker != "ABC" || snap.TakenAt.IsZero() {
		t.Fatalf("unexpected payload %#v", jobs.payload)
	}

	if rec := do(e, http.MethodPost, "/api/runs", snapshotBody); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", rec.Code)
	}
}

func TestTriggerRunValidation(t *testing.T) {
	e := newTestEcho(t, nil, &fakeEnqueuer{})
	if rec := do(e, http.MethodPost, "/api/runs", `{"underlyings":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTriggerRunQueueDown(t *testing.T) {
	e := newTestEcho(t, nil, &fakeEnqueuer{err: errors.New("redis down")})
	if rec := do(e, http.MethodPost, "/api/runs", snapshotBody); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	e := newTestEcho(t, nil, &fakeEnqueuer{})
	if rec := do(e, http.MethodGet, "/api/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
