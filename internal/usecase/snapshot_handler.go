package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"SpreadScout/internal/domain/models"
	drepo "SpreadScout/internal/domain/repository"
	pkgkafka "SpreadScout/pkg/kafka"
	"SpreadScout/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// Runner runs one discovery cycle.
type Runner interface {
	Run(ctx context.Context, snap *models.ChainSnapshot) (*models.RunResult, error)
}

var snapshotValidator = validator.New()

// DecodeSnapshot parses and validates a chain snapshot.
func DecodeSnapshot(b []byte) (*models.ChainSnapshot, error) {
	var snap models.ChainSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := ValidateSnapshot(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func ValidateSnapshot(snap *models.ChainSnapshot) error {
	if err := snapshotValidator.Struct(snap); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	return nil
}

// SnapshotHandler runs discovery for every chain snapshot on its topic.
type SnapshotHandler struct {
	topic   string
	runner  Runner
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewSnapshotHandler(topic string, runner Runner, metrics drepo.Metrics, log *logger.Logger) *SnapshotHandler {
	return &SnapshotHandler{topic: topic, runner: runner, metrics: metrics, log: log}
}

var _ pkgkafka.MessageHandler = (*SnapshotHandler)(nil)

func (h *SnapshotHandler) Topic() string { return h.topic }

// Handle returns an error for malformed snapshots and for a held run lock,
// so the consumer retries and eventually dead-letters them. A run that
// collected nothing is logged and acknowledged.
func (h *SnapshotHandler) Handle(ctx context.Context, b []byte) error {
	snap, err := DecodeSnapshot(b)
	if err != nil {
		h.metrics.RecordError("consumer_decode")
		return err
	}
	_, err = h.runner.Run(ctx, snap)
	switch {
	case err == nil:
		return nil
	case models.IsFatal(err):
		h.log.Warn("snapshot produced no readings", logger.Int("underlyings", len(snap.Underlyings)), logger.Error(err))
		return nil
	case errors.Is(err, ErrRunInProgress):
		return err
	default:
		return fmt.Errorf("discovery: %w", err)
	}
}
