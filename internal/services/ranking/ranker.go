// Package ranking scores, classifies and deduplicates priced spreads.
package ranking

import (
	"math"
	"sort"

	"SpreadScout/internal/domain/models"
)

// Config is the ranking policy. Weights must sum to 1.
type Config struct {
	WeightScore    float64
	WeightPoP      float64
	WeightROI      float64
	WeightDistance float64
	EnterPoPMin    float64
	EnterROIMin    float64
	WatchPoPMin    float64
	WatchROIMin    float64
}

func DefaultConfig() Config {
	return Config{
		WeightScore:    0.4,
		WeightPoP:      0.3,
		WeightROI:      0.2,
		WeightDistance: 0.1,
		EnterPoPMin:    70,
		EnterROIMin:    20,
		WatchPoPMin:    60,
		WatchROIMin:    30,
	}
}

// Result holds the deduplicated ranking. Suspect candidates never enter
// the ranking; they are returned separately, classified SKIP.
type Result struct {
	Spreads []models.RankedSpread
	Suspect []models.Spread
	Summary models.DecisionCounts
}

type Ranker struct {
	cfg Config
}

func New(cfg Config) *Ranker {
	return &Ranker{cfg: cfg}
}

// Score is the risk-adjusted return proxy roi*pop/100.
func Score(roi, pop float64) float64 {
	return roi * pop / 100
}

// Composite blends normalized score, pop, capped roi and distance of the
// short strike from spot.
func (r *Ranker) Composite(s models.Spread) float64 {
	score := math.Min(Score(s.ROI, s.PoP)/100, 1)
	roi := math.Min(s.ROI/100, 1)
	var dist float64
	if s.Spot > 0 {
		dist = math.Min(math.Abs(s.Short.Strike-s.Spot)/s.Spot*10, 1)
	}
	return score*r.cfg.WeightScore +
		s.PoP/100*r.cfg.WeightPoP +
		roi*r.cfg.WeightROI +
		dist*r.cfg.WeightDistance
}

// Classify applies the decision thresholds in priority order.
func (r *Ranker) Classify(s models.Spread) models.Decision {
	if s.Suspect {
		return models.DecisionSkip
	}
	switch {
	case s.PoP >= r.cfg.EnterPoPMin && s.ROI >= r.cfg.EnterROIMin:
		return models.DecisionEnter
	case s.PoP >= r.cfg.WatchPoPMin && s.ROI >= r.cfg.WatchROIMin:
		return models.DecisionWatch
	default:
		return models.DecisionSkip
	}
}

// Rank scores every candidate, keeps the best candidate per ticker and
// numbers the survivors from 1. The input slice is not modified.
func (r *Ranker) Rank(candidates []models.Spread) Result {
	var res Result
	scored := make([]models.Spread, 0, len(candidates))
	for _, c := range candidates {
		c.Score = Score(c.ROI, c.PoP)
		c.Composite = r.Composite(c)
		c.Decision = r.Classify(c)
		if c.Suspect {
			res.Suspect = append(res.Suspect, c)
			continue
		}
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool { return less(scored[i], scored[j]) })

	seen := make(map[string]struct{}, len(scored))
	for _, s := range scored {
		if _, ok := seen[s.Ticker]; ok {
			continue
		}
		seen[s.Ticker] = struct{}{}
		res.Spreads = append(res.Spreads, models.RankedSpread{Spread: s, Rank: len(res.Spreads) + 1})
		res.Summary.Add(s.Decision)
	}
	return res
}

func less(a, b models.Spread) bool {
	if a.Composite != b.Composite {
		return a.Composite > b.Composite
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.PoP != b.PoP {
		return a.PoP > b.PoP
	}
	if a.Ticker != b.Ticker {
		return a.Ticker < b.Ticker
	}
	if a.Expiration.Date != b.Expiration.Date {
		return a.Expiration.Date < b.Expiration.Date
	}
	return a.Short.Strike < b.Short.Strike
}
