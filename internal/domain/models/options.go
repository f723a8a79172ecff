package models

import (
	"sort"
	"time"
)

type OptionSide string

const (
	SideCall OptionSide = "call"
	SidePut  OptionSide = "put"
)

// Greeks is one volatility/sensitivity reading for a contract.
type Greeks struct {
	IV    float64 `json:"iv"`
	Delta float64 `json:"delta"`
	Theta float64 `json:"theta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
}

// Valid reports whether the reading carries a usable implied volatility.
func (g Greeks) Valid() bool { return g.IV > 0 }

// GreeksReading is a feed event for a single streamer symbol.
type GreeksReading struct {
	Symbol     string
	Greeks     Greeks
	ReceivedAt time.Time
}

// OptionContract is one side of one strike. Greeks stays nil until the
// collector attaches a validated reading.
type OptionContract struct {
	Ticker         string     `json:"ticker"`
	Symbol         string     `json:"symbol"`
	Strike         float64    `json:"strike"`
	Side           OptionSide `json:"side"`
	Expiration     string     `json:"expiration"`
	DTE            int        `json:"dte"`
	Bid            float64    `json:"bid"`
	Ask            float64    `json:"ask"`
	Mid            float64    `json:"mid"`
	Greeks         *Greeks    `json:"greeks,omitempty"`
	LiquidityScore float64    `json:"liquidity_score"`
}

// WithGreeks returns a copy of the contract carrying g.
func (c OptionContract) WithGreeks(g Greeks) OptionContract {
	c.Greeks = &g
	return c
}

func (c OptionContract) HasGreeks() bool { return c.Greeks != nil && c.Greeks.Valid() }

// ExpirationLadder holds the liquid contracts of one expiration, each side
// sorted by ascending strike.
type ExpirationLadder struct {
	Date  string
	DTE   int
	Calls []OptionContract
	Puts  []OptionContract
}

// Sort orders both sides by strike.
func (l *ExpirationLadder) Sort() {
	sort.SliceStable(l.Calls, func(i, j int) bool { return l.Calls[i].Strike < l.Calls[j].Strike })
	sort.SliceStable(l.Puts, func(i, j int) bool { return l.Puts[i].Strike < l.Puts[j].Strike })
}

// Chain is the builder input for one underlying.
type Chain struct {
	Ticker      string
	Spot        float64
	Expirations []ExpirationLadder
}
