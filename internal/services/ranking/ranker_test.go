package ranking

import (
	"testing"

	"SpreadScout/internal/domain/models"
)

func candidate(ticker string, pop, roi, strike float64) models.Spread {
	return models.Spread{
		Ticker:     ticker,
		Type:       models.BullPut,
		Short:      models.OptionContract{Strike: strike},
		Long:       models.OptionContract{Strike: strike - 5},
		Spot:       100,
		ROI:        roi,
		PoP:        pop,
		Expiration: models.ExpirationRef{Date: "2025-02-21", DTE: 30},
	}
}

func TestClassify(t *testing.T) {
	r := New(DefaultConfig())
	cases := []struct {
		pop, roi float64
		want     models.Decision
	}{
		{75, 25, models.DecisionEnter},
		{70, 30, models.DecisionEnter},
		{65, 35, models.DecisionWatch},
		{75, 15, models.DecisionSkip},
		{59, 40, models.DecisionSkip},
	}
	for _, c := range cases {
		if got := r.Classify(candidate("XYZ", c.pop, c.roi, 95)); got != c.want {
			t.Fatalf("pop=%v roi=%v: got %s want %s", c.pop, c.roi, got, c.want)
		}
	}
}

func TestRankKeepsBestPerTicker(t *testing.T) {
	r := New(DefaultConfig())
	in := []models.Spread{
		candidate("XYZ", 65, 20, 95),
		candidate("ABC", 70, 25, 95),
		candidate("XYZ", 80, 30, 95),
	}
	res := r.Rank(in)
	if len(res.Spreads) != 2 {
		t.Fatalf("expected 2 ranked spreads, got %d", len(res.Spreads))
	}
	first, second := res.Spreads[0], res.Spreads[1]
	if first.Ticker != "XYZ" || first.PoP != 80 || first.Rank != 1 {
		t.Fatalf("unexpected first: %+v", first)
	}
	if second.Ticker != "ABC" || second.Rank != 2 {
		t.Fatalf("unexpected second: %+v", second)
	}
	if first.Score != 24 {
		t.Fatalf("score = %v, want 24", first.Score)
	}
	if res.Summary.Total != 2 || res.Summary.Enter != 2 {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
	if in[0].Score != 0 {
		t.Fatalf("input slice was modified")
	}
}

func TestRankExcludesSuspect(t *testing.T) {
	r := New(DefaultConfig())
	s := candidate("QQQ", 90, 145, 95)
	s.Suspect = true
	res := r.Rank([]models.Spread{s, candidate("ABC", 62, 35, 95)})
	if len(res.Suspect) != 1 || res.Suspect[0].Decision != models.DecisionSkip {
		t.Fatalf("suspect candidate must be returned separately as SKIP: %+v", res.Suspect)
	}
	for _, rs := range res.Spreads {
		if rs.Ticker == "QQQ" {
			t.Fatalf("suspect candidate was ranked")
		}
	}
	if res.Summary.Total != 1 || res.Summary.Watch != 1 || res.Summary.Enter != 0 {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
}

func TestRankDeterministic(t *testing.T) {
	r := New(DefaultConfig())
	a := []models.Spread{
		candidate("BBB", 70, 25, 95),
		candidate("AAA", 70, 25, 95),
		candidate("CCC", 72, 22, 94),
		candidate("AAA", 70, 25, 96),
	}
	b := []models.Spread{a[3], a[2], a[1], a[0]}
	ra, rb := r.Rank(a), r.Rank(b)
	if len(ra.Spreads) != len(rb.Spreads) {
		t.Fatalf("length mismatch %d vs %d", len(ra.Spreads), len(rb.Spreads))
	}
	for i := range ra.Spreads {
		x, y := ra.Spreads[i], rb.Spreads[i]
		if x.Ticker != y.Ticker || x.Short.Strike != y.Short.Strike || x.Rank != y.Rank {
			t.Fatalf("order differs at %d: %s/%v vs %s/%v", i, x.Ticker, x.Short.Strike, y.Ticker, y.Short.Strike)
		}
	}
}
