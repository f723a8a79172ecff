package models

import "time"

// CollectionSummary is the collector's diagnostic output.
type CollectionSummary struct {
	Requested   int      `json:"requested"`
	Collected   int      `json:"collected"`
	CoveragePct float64  `json:"coverage_pct"`
	Batches     int      `json:"batches"`
	Retried     int      `json:"retried"`
	Gaps        []string `json:"gaps,omitempty"`
}

type DecisionCounts struct {
	Total int `json:"total"`
	Enter int `json:"enter"`
	Watch int `json:"watch"`
	Skip  int `json:"skip"`
}

// Add counts one decision.
func (d *DecisionCounts) Add(dec Decision) {
	d.Total++
	switch dec {
	case DecisionEnter:
		d.Enter++
	case DecisionWatch:
		d.Watch++
	default:
		d.Skip++
	}
}

type CandidateStats struct {
	Built    int            `json:"built"`
	Rejected map[string]int `json:"rejected,omitempty"`
	Suspect  int            `json:"suspect"`
	DataGaps int            `json:"data_gaps"`
}

type RateInfo struct {
	Value  float64 `json:"value"`
	Source string  `json:"source"`
}

// RunResult is everything one discovery cycle produces.
type RunResult struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Liquid     int               `json:"liquid_contracts"`
	Collection CollectionSummary `json:"collection"`
	Candidates CandidateStats    `json:"candidates"`
	Rate       RateInfo          `json:"rate"`
	Summary    DecisionCounts    `json:"summary"`
	Spreads    []SpreadRecord    `json:"spreads"`
	Suspect    []SpreadRecord    `json:"suspect,omitempty"`
}

// EnterTrades returns the ENTER records in rank order.
func (r *RunResult) EnterTrades() []SpreadRecord { return r.byDecision(DecisionEnter) }

// WatchList returns the WATCH records in rank order.
func (r *RunResult) WatchList() []SpreadRecord { return r.byDecision(DecisionWatch) }

func (r *RunResult) byDecision(d Decision) []SpreadRecord {
	out := make([]SpreadRecord, 0)
	for _, s := range r.Spreads {
		if s.Decision == d {
			out = append(out, s)
		}
	}
	return out
}
