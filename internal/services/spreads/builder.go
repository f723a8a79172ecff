// Package spreads enumerates vertical credit spread candidates from liquid
// strike ladders.
package spreads

import (
	"errors"
	"math"

	"SpreadScout/internal/domain/models"
)

// Config holds the structural filters applied to each short/long pair.
type Config struct {
	MinDTE     int
	MaxDTE     int
	MinWidth   float64
	MaxWidth   float64
	MinCredit  float64
	MinROI     float64
	MaxROI     float64
	SuspectROI float64
	MinDelta   float64
	MaxDelta   float64
	Lookahead  int
}

func DefaultConfig() Config {
	return Config{
		MinDTE:     7,
		MaxDTE:     45,
		MinWidth:   2.5,
		MaxWidth:   10,
		MinCredit:  0.10,
		MinROI:     5,
		MaxROI:     50,
		SuspectROI: 100,
		MinDelta:   0.15,
		MaxDelta:   0.35,
		Lookahead:  4,
	}
}

// Result is the builder output for one chain. Suspect candidates are part
// of Candidates with Suspect set.
type Result struct {
	Candidates []models.Spread
	Rejected   map[string]int
	Suspect    int
	DataGaps   int
}

func (r *Result) reject(reason string) {
	if r.Rejected == nil {
		r.Rejected = make(map[string]int)
	}
	r.Rejected[reason]++
}

// Merge folds o into r, keeping candidate order.
func (r *Result) Merge(o Result) {
	r.Candidates = append(r.Candidates, o.Candidates...)
	for k, v := range o.Rejected {
		if r.Rejected == nil {
			r.Rejected = make(map[string]int)
		}
		r.Rejected[k] += v
	}
	r.Suspect += o.Suspect
	r.DataGaps += o.DataGaps
}

type Builder struct {
	cfg Config
}

func New(cfg Config) *Builder {
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = 1
	}
	return &Builder{cfg: cfg}
}

// Build enumerates bull put and bear call candidates for every expiration of
// the chain whose DTE is inside the configured band. Each short leg is paired
// with at most Lookahead further out-of-the-money strikes.
func (b *Builder) Build(chain models.Chain) Result {
	var res Result
	if chain.Spot <= 0 {
		return res
	}
	for _, exp := range chain.Expirations {
		if exp.DTE < b.cfg.MinDTE || exp.DTE > b.cfg.MaxDTE {
			res.reject(models.RejectExpiryDTE)
			continue
		}
		ref := models.ExpirationRef{Date: exp.Date, DTE: exp.DTE}
		b.bullPuts(chain, exp.Puts, ref, &res)
		b.bearCalls(chain, exp.Calls, ref, &res)
	}
	return res
}

// bullPuts walks puts below spot; the long leg sits at a lower strike.
func (b *Builder) bullPuts(chain models.Chain, puts []models.OptionContract, ref models.ExpirationRef, res *Result) {
	for i := len(puts) - 1; i >= 0; i-- {
		short := puts[i]
		if short.Strike >= chain.Spot {
			continue
		}
		for j := i - 1; j >= 0 && i-j <= b.cfg.Lookahead; j-- {
			b.evaluate(chain, models.BullPut, short, puts[j], ref, res)
		}
	}
}

// bearCalls walks calls above spot; the long leg sits at a higher strike.
func (b *Builder) bearCalls(chain models.Chain, calls []models.OptionContract, ref models.ExpirationRef, res *Result) {
	for i := 0; i < len(calls); i++ {
		short := calls[i]
		if short.Strike <= chain.Spot {
			continue
		}
		for j := i + 1; j < len(calls) && j-i <= b.cfg.Lookahead; j++ {
			b.evaluate(chain, models.BearCall, short, calls[j], ref, res)
		}
	}
}

func (b *Builder) evaluate(chain models.Chain, typ models.SpreadType, short, long models.OptionContract, ref models.ExpirationRef, res *Result) {
	s, err := b.Price(chain, typ, short, long, ref)
	if err != nil {
		var inv *models.InvalidSpreadError
		if !errors.As(err, &inv) {
			res.reject("unknown")
			return
		}
		res.reject(inv.Reason)
		if inv.Reason == models.RejectNoGreeks {
			res.DataGaps++
		}
		return
	}
	if s.Suspect {
		res.Suspect++
	}
	res.Candidates = append(res.Candidates, s)
}

// Price builds one candidate from a short/long pair, or explains why the
// pair is not a valid spread. A suspect ROI yields a candidate with
// Suspect set rather than an error.
func (b *Builder) Price(chain models.Chain, typ models.SpreadType, short, long models.OptionContract, ref models.ExpirationRef) (models.Spread, error) {
	if !otm(typ, short.Strike, chain.Spot) || !otm(typ, long.Strike, chain.Spot) {
		return models.Spread{}, &models.InvalidSpreadError{Reason: models.RejectNotOTM}
	}
	width := round(math.Abs(short.Strike - long.Strike))
	if width <= 0 || width < b.cfg.MinWidth || width > b.cfg.MaxWidth {
		return models.Spread{}, &models.InvalidSpreadError{Reason: models.RejectWidth}
	}
	if !short.HasGreeks() || !long.HasGreeks() {
		return models.Spread{}, &models.InvalidSpreadError{Reason: models.RejectNoGreeks}
	}
	credit := round(short.Bid - long.Ask)
	if credit <= b.cfg.MinCredit {
		return models.Spread{}, &models.InvalidSpreadError{Reason: models.RejectCredit}
	}
	maxLoss := round(width - credit)
	if maxLoss <= 0 {
		return models.Spread{}, &models.InvalidSpreadError{Reason: models.RejectMaxLoss}
	}
	roi := credit / maxLoss * 100

	suspect := roi > b.cfg.SuspectROI
	if roi < b.cfg.MinROI || (!suspect && roi > b.cfg.MaxROI) {
		return models.Spread{}, &models.InvalidSpreadError{Reason: models.RejectROI}
	}
	d := math.Abs(short.Greeks.Delta)
	if d < b.cfg.MinDelta || d > b.cfg.MaxDelta {
		return models.Spread{}, &models.InvalidSpreadError{Reason: models.RejectDelta}
	}

	return models.Spread{
		Ticker:     chain.Ticker,
		Type:       typ,
		Short:      short,
		Long:       long,
		Spot:       chain.Spot,
		Width:      width,
		NetCredit:  credit,
		MaxLoss:    maxLoss,
		ROI:        roi,
		Suspect:    suspect,
		Expiration: ref,
	}, nil
}

func otm(typ models.SpreadType, strike, spot float64) bool {
	if typ == models.BullPut {
		return strike < spot
	}
	return strike > spot
}

// round trims float noise from price arithmetic to 1/10000.
func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
