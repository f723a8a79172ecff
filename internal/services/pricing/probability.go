// Package pricing estimates the probability that a credit spread expires
// worthless for its seller.
package pricing

import (
	"fmt"
	"math"

	"SpreadScout/internal/domain/models"
	"SpreadScout/internal/domain/service"
)

const daysPerYear = 365.0

// BlackScholesPoP returns the lognormal probability, in percent, that the
// underlying finishes on the profitable side of the short strike: above it
// for a bull put, below it for a bear call. dte <= 0 or sigma <= 0 gives 0.
func BlackScholesPoP(spot, strike float64, dte int, sigma, rate float64, typ models.SpreadType) float64 {
	if dte <= 0 || sigma <= 0 || spot <= 0 || strike <= 0 {
		return 0
	}
	t := float64(dte) / daysPerYear
	volT := sigma * math.Sqrt(t)
	d1 := (math.Log(spot/strike) + (rate+0.5*sigma*sigma)*t) / volT
	d2 := d1 - volT

	var p float64
	switch typ {
	case models.BearCall:
		p = NormCDF(-d2)
	case models.BullPut:
		p = NormCDF(d2)
	default:
		return 0
	}
	return clampPct(p * 100)
}

// DeltaPoP approximates PoP from the short leg delta.
func DeltaPoP(delta float64) float64 {
	return clampPct((1 - math.Abs(delta)) * 100)
}

func clampPct(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// BlackScholes estimates PoP from the short leg's implied volatility.
type BlackScholes struct{}

func (BlackScholes) Method() models.PoPMethod { return models.PoPBlackScholes }

func (BlackScholes) Estimate(s models.Spread, rate float64) float64 {
	if s.Short.Greeks == nil {
		return 0
	}
	return BlackScholesPoP(s.Spot, s.Short.Strike, s.Expiration.DTE, s.Short.Greeks.IV, rate, s.Type)
}

// DeltaApprox treats the short leg delta as the probability of finishing in the money.
type DeltaApprox struct{}

func (DeltaApprox) Method() models.PoPMethod { return models.PoPDelta }

func (DeltaApprox) Estimate(s models.Spread, _ float64) float64 {
	if s.Short.Greeks == nil {
		return 0
	}
	return DeltaPoP(s.Short.Greeks.Delta)
}

var (
	_ service.ProbabilityEstimator = BlackScholes{}
	_ service.ProbabilityEstimator = DeltaApprox{}
)

// New returns the estimator for method. An empty method selects Black-Scholes.
func New(method string) (service.ProbabilityEstimator, error) {
	switch models.PoPMethod(method) {
	case models.PoPBlackScholes, "":
		return BlackScholes{}, nil
	case models.PoPDelta:
		return DeltaApprox{}, nil
	default:
		return nil, fmt.Errorf("unknown pop method %q", method)
	}
}

// Apply returns copies of spreads carrying the estimator's PoP.
func Apply(est service.ProbabilityEstimator, spreads []models.Spread, rate float64) []models.Spread {
	out := make([]models.Spread, len(spreads))
	for i, s := range spreads {
		out[i] = s.WithPoP(est.Estimate(s, rate), est.Method())
	}
	return out
}
