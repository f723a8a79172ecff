package liquidity

import (
	"testing"
	"time"

	"SpreadScout/internal/domain/models"
)

func TestScoreTiers(t *testing.T) {
	cases := []struct {
		bid, ask float64
		want     float64
	}{
		{1.00, 1.02, 100}, // ~2% spread, mid 1.01
		{0.98, 1.03, 85},  // ~4.98% spread, mid 1.005
		{0.50, 0.54, 60},  // ~7.7% spread, mid 0.52
		{0.28, 0.32, 25},  // 13.3% spread, mid 0.30
		{0.10, 0.20, 0},   // 66% spread, mid 0.15
	}
	for _, c := range cases {
		got, ok := Score(c.bid, c.ask, (c.bid+c.ask)/2)
		if !ok {
			t.Fatalf("score(%v,%v) undefined", c.bid, c.ask)
		}
		if got != c.want {
			t.Fatalf("score(%v,%v) = %v, want %v", c.bid, c.ask, got, c.want)
		}
	}
}

func TestScoreUndefined(t *testing.T) {
	if _, ok := Score(0, 1, 0.5); ok {
		t.Fatalf("expected undefined for zero bid")
	}
	if _, ok := Score(1, -1, 0); ok {
		t.Fatalf("expected undefined for negative ask")
	}
}

func TestScoreBounded(t *testing.T) {
	for bid := 0.05; bid < 5; bid += 0.07 {
		for w := 0.0; w < 1; w += 0.05 {
			s, ok := Score(bid, bid+w, bid+w/2)
			if !ok {
				t.Fatalf("unexpected undefined score")
			}
			if s < 0 || s > 100 {
				t.Fatalf("score out of range: %v", s)
			}
		}
	}
}

func TestScoreMonotonic(t *testing.T) {
	// tighter spread at fixed mid never scores lower
	mid := 0.8
	prev := -1.0
	for half := 0.4; half >= 0; half -= 0.01 {
		s, _ := Score(mid-half, mid+half, mid)
		if s < prev {
			t.Fatalf("tightening spread lowered score: %v < %v (half=%v)", s, prev, half)
		}
		prev = s
	}
	// higher mid at fixed spread_pct never scores lower
	prev = -1.0
	for m := 0.05; m < 3; m += 0.05 {
		half := m * 0.02
		s, _ := Score(m-half, m+half, m)
		if s < prev {
			t.Fatalf("raising mid lowered score: %v < %v (mid=%v)", s, prev, m)
		}
		prev = s
	}
}

func TestSelect(t *testing.T) {
	snap := &models.ChainSnapshot{Underlyings: []models.Underlying{
		{
			Ticker: "XYZ", Mid: 100,
			Expirations: []models.Expiration{{
				Date: "2025-02-01", DTE: 30,
				Strikes: []models.StrikeRow{
					{Strike: 95, PutSymbol: ".XYZP95", PutBid: 1.00, PutAsk: 1.02, CallSymbol: ".XYZC95", CallBid: 0, CallAsk: 6},
					{Strike: 90, PutSymbol: ".XYZP90", PutBid: 0.40, PutAsk: 0.42},
					{Strike: 85, PutSymbol: ".XYZP85", PutBid: 0.05, PutAsk: 0.10},
					{Strike: 0, PutSymbol: ".XYZP0", PutBid: 1.00, PutAsk: 1.02},
				},
			}},
		},
		{Ticker: "NOPX"},
	}}
	sel := Select(snap, DefaultMinScore, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	if len(sel.Chains) != 1 {
		t.Fatalf("expected 1 chain, got %d", len(sel.Chains))
	}
	puts := sel.Chains[0].Expirations[0].Puts
	if len(puts) != 2 {
		t.Fatalf("expected 2 liquid puts, got %d", len(puts))
	}
	if puts[0].Strike != 90 || puts[1].Strike != 95 {
		t.Fatalf("puts not sorted by strike: %v, %v", puts[0].Strike, puts[1].Strike)
	}
	if len(sel.Symbols) != 2 {
		t.Fatalf("expected 2 symbols, got %v", sel.Symbols)
	}
	if sel.Scored != 3 || sel.Liquid != 2 {
		t.Fatalf("unexpected counts scored=%d liquid=%d", sel.Scored, sel.Liquid)
	}
}
