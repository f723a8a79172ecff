package models

import "time"

// Requests and responses of the spreads HTTP endpoints.

type SpreadsRequest struct {
	Decision string `query:"decision" json:"decision" validate:"omitempty,oneof=ENTER WATCH SKIP"`
	Ticker   string `query:"ticker" json:"ticker" validate:"omitempty,max=16"`
	Limit    int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type RunAccepted struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// RunSummary is a RunResult without the full spread list.
type RunSummary struct {
	RunID       string            `json:"run_id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Collection  CollectionSummary `json:"collection"`
	Candidates  CandidateStats    `json:"candidates"`
	Rate        RateInfo          `json:"rate"`
	Summary     DecisionCounts    `json:"summary"`
	EnterTrades []SpreadRecord    `json:"enter_trades"`
	WatchList   []SpreadRecord    `json:"watch_list"`
}

func (r *RunResult) RunSummary() RunSummary {
	return RunSummary{
		RunID:       r.RunID,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Collection:  r.Collection,
		Candidates:  r.Candidates,
		Rate:        r.Rate,
		Summary:     r.Summary,
		EnterTrades: r.EnterTrades(),
		WatchList:   r.WatchList(),
	}
}
