package models

import "time"

// ChainSnapshot is the normalized input of one discovery cycle, as supplied
// by the upstream chain scanner.
type ChainSnapshot struct {
	TakenAt     time.Time    `json:"taken_at"`
	Underlyings []Underlying `json:"underlyings" validate:"required,min=1,dive"`
}

// Underlying and StrikeRow carry no numeric validation. A bad quote or
// strike disqualifies only that row or underlying during selection.
type Underlying struct {
	Ticker      string       `json:"ticker" validate:"required"`
	Bid         float64      `json:"bid"`
	Ask         float64      `json:"ask"`
	Mid         float64      `json:"mid"`
	Expirations []Expiration `json:"expirations" validate:"dive"`
}

// Spot returns the mid price, or the bid/ask midpoint when mid is absent.
func (u Underlying) Spot() float64 {
	if u.Mid > 0 {
		return u.Mid
	}
	if u.Bid > 0 && u.Ask > 0 {
		return (u.Bid + u.Ask) / 2
	}
	return 0
}

type Expiration struct {
	Date    string      `json:"date" validate:"required"`
	DTE     int         `json:"dte"`
	Strikes []StrikeRow `json:"strikes" validate:"dive"`
}

type StrikeRow struct {
	Strike     float64 `json:"strike"`
	CallSymbol string  `json:"call_symbol"`
	CallBid    float64 `json:"call_bid"`
	CallAsk    float64 `json:"call_ask"`
	PutSymbol  string  `json:"put_symbol"`
	PutBid     float64 `json:"put_bid"`
	PutAsk     float64 `json:"put_ask"`
}
