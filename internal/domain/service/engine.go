package service

import (
	"context"

	"SpreadScout/internal/domain/models"
)

// RateProvider supplies the risk-free rate to the probability engine.
// Cached never performs I/O.
type RateProvider interface {
	Rate(ctx context.Context) (models.RateInfo, error)
	Cached() models.RateInfo
}

// ProbabilityEstimator attaches a probability of profit to a candidate.
type ProbabilityEstimator interface {
	Method() models.PoPMethod
	Estimate(s models.Spread, rate float64) float64
}
