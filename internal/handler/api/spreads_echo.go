package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"SpreadScout/internal/domain/models"
	domrepo "SpreadScout/internal/domain/repository"
	"SpreadScout/internal/service/ratelimit"
	"SpreadScout/internal/usecase"
	xhttp "SpreadScout/pkg/http"
	xlogger "SpreadScout/pkg/logger"
	"SpreadScout/pkg/queue"

	"github.com/labstack/echo/v4"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// SpreadsEchoHandler serves the latest ranked output and accepts run
// requests.
type SpreadsEchoHandler struct {
	logger  *xlogger.Logger
	runs    domrepo.RunStorage
	jobs    queue.Enqueuer
	limiter *ratelimit.Limiter
	checks  map[string]HealthCheck
}

func NewSpreadsEchoHandler(
	logger *xlogger.Logger,
	runs domrepo.RunStorage,
	jobs queue.Enqueuer,
	limiter *ratelimit.Limiter,
	checks map[string]HealthCheck,
) *SpreadsEchoHandler {
	return &SpreadsEchoHandler{logger: logger, runs: runs, jobs: jobs, limiter: limiter, checks: checks}
}

var _ xhttp.Handler = (*SpreadsEchoHandler)(nil)

func (h *SpreadsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/spreads", h.Spreads)
	g.GET("/summary", h.Summary)
	g.POST("/runs", h.TriggerRun)
	g.GET("/health", h.Health)
}

func (h *SpreadsEchoHandler) Spreads(c echo.Context) error {
	req := &models.SpreadsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	run, err := h.latest(c.Request().Context())
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	rows := make([]models.SpreadRecord, 0, req.Limit)
	for _, s := range run.Spreads {
		if req.Decision != "" && string(s.Decision) != req.Decision {
			continue
		}
		if req.Ticker != "" && !strings.EqualFold(s.Ticker, req.Ticker) {
			continue
		}
		rows = append(rows, s)
		if len(rows) == req.Limit {
			break
		}
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	c.Response().Header().Set("X-Run-ID", run.RunID)
	return xhttp.ListResponse(c, rows, int64(len(run.Spreads)))
}

func (h *SpreadsEchoHandler) Summary(c echo.Context) error {
	run, err := h.latest(c.Request().Context())
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, run.RunSummary())
}

// TriggerRun queues a discovery cycle for the posted chain snapshot.
func (h *SpreadsEchoHandler) TriggerRun(c echo.Context) error {
	ip := c.RealIP()
	if h.limiter != nil && !h.limiter.Allow(ip) {
		h.logger.Warn("run trigger rate limited", xlogger.String("remote", ip))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many run requests"))
	}

	snap := &models.ChainSnapshot{}
	if verr := xhttp.ReadAndValidateRequest(c, snap); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}

	id, err := h.jobs.Enqueue(c.Request().Context(), usecase.DiscoveryJobType, snap)
	if err != nil {
		h.logger.Error("enqueue discovery run", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("run queue unavailable").WithError(err))
	}
	h.logger.Info("discovery run queued",
		xlogger.String("job_id", id),
		xlogger.Int("underlyings", len(snap.Underlyings)))
	return xhttp.AcceptedResponse(c, models.RunAccepted{JobID: id, Status: "queued"})
}

func (h *SpreadsEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	return xhttp.DataResponse(c, status, results)
}

func (h *SpreadsEchoHandler) latest(ctx context.Context) (*models.RunResult, error) {
	run, err := h.runs.LatestRun(ctx)
	if errors.Is(err, domrepo.ErrNoRun) {
		return nil, xhttp.NotFoundError("no completed run yet")
	}
	if err != nil {
		h.logger.Error("load latest run", xlogger.Error(err))
		return nil, xhttp.InternalErrorf("load latest run").WithError(err)
	}
	return run, nil
}
