package models

type SpreadType string

const (
	BullPut  SpreadType = "Bull Put"
	BearCall SpreadType = "Bear Call"
)

type Decision string

const (
	DecisionEnter Decision = "ENTER"
	DecisionWatch Decision = "WATCH"
	DecisionSkip  Decision = "SKIP"
)

// PoPMethod records which estimator produced a probability of profit.
type PoPMethod string

const (
	PoPBlackScholes PoPMethod = "black_scholes"
	PoPDelta        PoPMethod = "delta"
)

type ExpirationRef struct {
	Date string `json:"date"`
	DTE  int    `json:"dte"`
}

// Spread is a two-leg vertical credit spread. Stages enrich it by returning
// modified copies; nothing mutates a Spread held by another stage.
type Spread struct {
	Ticker     string
	Type       SpreadType
	Short      OptionContract
	Long       OptionContract
	Spot       float64
	Width      float64
	NetCredit  float64
	MaxLoss    float64
	ROI        float64
	PoP        float64
	PoPMethod  PoPMethod
	Score      float64
	Composite  float64
	Decision   Decision
	Suspect    bool
	Expiration ExpirationRef
}

// WithPoP returns a copy carrying the probability estimate.
func (s Spread) WithPoP(pop float64, method PoPMethod) Spread {
	s.PoP = pop
	s.PoPMethod = method
	return s
}

// RankedSpread is a Spread that survived deduplication, numbered from 1.
type RankedSpread struct {
	Spread
	Rank int
}

// SpreadRecord is the flat output shape of a ranked spread.
type SpreadRecord struct {
	Rank        int           `json:"rank"`
	Ticker      string        `json:"ticker"`
	Type        SpreadType    `json:"type"`
	ShortStrike float64       `json:"short_strike"`
	LongStrike  float64       `json:"long_strike"`
	Width       float64       `json:"width"`
	NetCredit   float64       `json:"net_credit"`
	MaxLoss     float64       `json:"max_loss"`
	ROI         float64       `json:"roi"`
	PoP         float64       `json:"pop"`
	PoPMethod   PoPMethod     `json:"pop_method"`
	Score       float64       `json:"score"`
	Composite   float64       `json:"composite"`
	Decision    Decision      `json:"decision"`
	Suspect     bool          `json:"suspect,omitempty"`
	ShortDelta  float64       `json:"short_delta"`
	ShortIV     float64       `json:"short_iv"`
	Expiration  ExpirationRef `json:"expiration"`
}

// Record flattens s with the given rank.
func (s Spread) Record(rank int) SpreadRecord {
	r := SpreadRecord{
		Rank:        rank,
		Ticker:      s.Ticker,
		Type:        s.Type,
		ShortStrike: s.Short.Strike,
		LongStrike:  s.Long.Strike,
		Width:       s.Width,
		NetCredit:   s.NetCredit,
		MaxLoss:     s.MaxLoss,
		ROI:         s.ROI,
		PoP:         s.PoP,
		PoPMethod:   s.PoPMethod,
		Score:       s.Score,
		Composite:   s.Composite,
		Decision:    s.Decision,
		Suspect:     s.Suspect,
		Expiration:  s.Expiration,
	}
	if s.Short.Greeks != nil {
		r.ShortDelta = s.Short.Greeks.Delta
		r.ShortIV = s.Short.Greeks.IV
	}
	return r
}

func (r RankedSpread) Record() SpreadRecord { return r.Spread.Record(r.Rank) }
