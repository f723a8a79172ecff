package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordBatch("target", 300, 210)
	r.RecordBatch("timeout", 10, 4)
	r.RecordCoverage(71.5)
	r.RecordDecision("ENTER")
	r.RecordDecision("ENTER")

	if got := testutil.ToFloat64(r.symbols.WithLabelValues("collected")); got != 214 {
		t.Fatalf("collected = %v", got)
	}
	if got := testutil.ToFloat64(r.coverage); got != 71.5 {
		t.Fatalf("coverage = %v", got)
	}
	if got := testutil.ToFloat64(r.decisions.WithLabelValues("ENTER")); got != 2 {
		t.Fatalf("enter = %v", got)
	}
}
