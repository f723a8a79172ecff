// Package liquidity scores option quotes and selects the liquid part of a
// chain snapshot.
package liquidity

import (
	"time"

	"SpreadScout/internal/domain/models"
	"SpreadScout/pkg/util"
)

// DefaultMinScore is the cutoff a contract must reach to be kept.
const DefaultMinScore = 40

type tier struct {
	bound  float64
	points float64
}

var (
	// spread_pct upper bounds, tightest first
	spreadTiers = []tier{{3, 60}, {5, 45}, {8, 30}, {12, 15}, {20, 5}}
	// mid price lower bounds, highest first
	midTiers = []tier{{1.00, 40}, {0.50, 30}, {0.30, 20}, {0.20, 10}}
)

// Score returns the 0-100 liquidity score of a quote. ok is false when the
// score is undefined (non-positive bid or ask). A non-positive mid is
// replaced by the bid/ask midpoint.
func Score(bid, ask, mid float64) (score float64, ok bool) {
	if bid <= 0 || ask <= 0 {
		return 0, false
	}
	if mid <= 0 {
		mid = (bid + ask) / 2
	}
	spreadPct := (ask - bid) / mid * 100
	for _, t := range spreadTiers {
		if spreadPct <= t.bound {
			score += t.points
			break
		}
	}
	for _, t := range midTiers {
		if mid >= t.bound {
			score += t.points
			break
		}
	}
	return score, true
}

// Selection is the liquid subset of a snapshot.
type Selection struct {
	Chains  []models.Chain
	Symbols []string
	Scored  int
	Liquid  int
}

// Select scores every quoted contract of the snapshot and keeps those scoring
// at least minScore. Contracts without a streamer symbol cannot be enriched
// and are dropped, as are rows with a non-positive strike. Missing DTE values
// are derived from the expiration date.
func Select(snap *models.ChainSnapshot, minScore float64, now time.Time) Selection {
	var sel Selection
	seen := make(map[string]struct{})

	for _, u := range snap.Underlyings {
		spot := u.Spot()
		if spot <= 0 {
			continue
		}
		chain := models.Chain{Ticker: u.Ticker, Spot: spot}
		for _, exp := range u.Expirations {
			dte := exp.DTE
			if dte == 0 {
				if d, ok := util.DTEFromString(exp.Date, now); ok {
					dte = d
				}
			}
			ladder := models.ExpirationLadder{Date: exp.Date, DTE: dte}
			for _, row := range exp.Strikes {
				if row.Strike <= 0 {
					continue
				}
				if c, ok := sel.keep(u.Ticker, exp.Date, dte, row.Strike, models.SideCall, row.CallSymbol, row.CallBid, row.CallAsk, minScore); ok {
					ladder.Calls = append(ladder.Calls, c)
				}
				if c, ok := sel.keep(u.Ticker, exp.Date, dte, row.Strike, models.SidePut, row.PutSymbol, row.PutBid, row.PutAsk, minScore); ok {
					ladder.Puts = append(ladder.Puts, c)
				}
			}
			if len(ladder.Calls) == 0 && len(ladder.Puts) == 0 {
				continue
			}
			ladder.Sort()
			chain.Expirations = append(chain.Expirations, ladder)
			for _, c := range ladder.Calls {
				sel.addSymbol(seen, c.Symbol)
			}
			for _, c := range ladder.Puts {
				sel.addSymbol(seen, c.Symbol)
			}
		}
		if len(chain.Expirations) > 0 {
			sel.Chains = append(sel.Chains, chain)
		}
	}
	return sel
}

func (s *Selection) keep(ticker, date string, dte int, strike float64, side models.OptionSide, symbol string, bid, ask, minScore float64) (models.OptionContract, bool) {
	if symbol == "" {
		return models.OptionContract{}, false
	}
	mid := (bid + ask) / 2
	score, ok := Score(bid, ask, mid)
	if !ok {
		return models.OptionContract{}, false
	}
	s.Scored++
	if score < minScore {
		return models.OptionContract{}, false
	}
	s.Liquid++
	return models.OptionContract{
		Ticker:         ticker,
		Symbol:         symbol,
		Strike:         strike,
		Side:           side,
		Expiration:     date,
		DTE:            dte,
		Bid:            bid,
		Ask:            ask,
		Mid:            mid,
		LiquidityScore: score,
	}, true
}

func (s *Selection) addSymbol(seen map[string]struct{}, sym string) {
	if _, ok := seen[sym]; ok {
		return
	}
	seen[sym] = struct{}{}
	s.Symbols = append(s.Symbols, sym)
}
