package usecase

import (
	"context"
	"errors"
	"fmt"

	"SpreadScout/internal/domain/models"
	"SpreadScout/pkg/logger"
	"SpreadScout/pkg/queue"
)

const DiscoveryJobType = "discovery.run"

// DiscoveryJob runs discovery for snapshots enqueued through the API.
type DiscoveryJob struct {
	runner Runner
	log    *logger.Logger
}

func NewDiscoveryJob(runner Runner, log *logger.Logger) *DiscoveryJob {
	return &DiscoveryJob{runner: runner, log: log}
}

var _ queue.Job = (*DiscoveryJob)(nil)

func (j *DiscoveryJob) Name() string { return "discovery" }
func (j *DiscoveryJob) Type() string { return DiscoveryJobType }

func (j *DiscoveryJob) Handle(ctx context.Context, payload interface{}) error {
	snap, err := queue.ParsePayload[models.ChainSnapshot](payload)
	if err != nil {
		return fmt.Errorf("discovery payload: %w", err)
	}
	if err := ValidateSnapshot(snap); err != nil {
		return err
	}
	run, err := j.runner.Run(ctx, snap)
	if err != nil {
		if models.IsFatal(err) {
			j.log.Warn("queued snapshot produced no readings", logger.Error(err))
			return nil
		}
		if errors.Is(err, ErrRunInProgress) {
			return err
		}
		return fmt.Errorf("discovery: %w", err)
	}
	j.log.Info("queued discovery done", logger.String("run_id", run.RunID), logger.Int("ranked", len(run.Spreads)))
	return nil
}
