package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"SpreadScout/internal/domain/models"
	"SpreadScout/pkg/logger"
)

type fakeRunner struct {
	err   error
	calls int
	last  *models.ChainSnapshot
}

func (f *fakeRunner) Run(_ context.Context, snap *models.ChainSnapshot) (*models.RunResult, error) {
	f.calls++
	f.last = snap
	if f.err != nil {
		return nil, f.err
	}
	return &models.RunResult{RunID: "r1"}, nil
}

const snapshotJSON = `{"taken_at":"2025-01-22T15:00:00Z","underlyings":[{"ticker":"XYZ","mid":100,
"expirations":[{"date":"2025-02-21","strikes":[{"strike":95,"put_symbol":".XYZ250221P95","put_bid":1,"put_ask":1.04}]}]}]}`

func TestSnapshotHandler(t *testing.T) {
	r := &fakeRunner{}
	h := NewSnapshotHandler("chains.snapshots", r, nopMetrics{}, logger.Nop())
	if h.Topic() != "chains.snapshots" {
		t.Fatalf("topic = %s", h.Topic())
	}
	if err := h.Handle(context.Background(), []byte(snapshotJSON)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if r.calls != 1 || r.last.Underlyings[0].Expirations[0].Strikes[0].PutSymbol != ".XYZ250221P95" {
		t.Fatalf("snapshot not passed through: %+v", r.last)
	}

	if err := h.Handle(context.Background(), []byte(`{"underlyings":[]}`)); err == nil {
		t.Fatalf("empty snapshot should be rejected")
	}
	if err := h.Handle(context.Background(), []byte(`{`)); err == nil {
		t.Fatalf("malformed json should be rejected")
	}
	if r.calls != 1 {
		t.Fatalf("invalid snapshots must not run discovery")
	}
}

func TestSnapshotHandlerErrors(t *testing.T) {
	r := &fakeRunner{err: &models.FatalCollectionError{Requested: 4}}
	h := NewSnapshotHandler("chains.snapshots", r, nopMetrics{}, logger.Nop())
	if err := h.Handle(context.Background(), []byte(snapshotJSON)); err != nil {
		t.Fatalf("fatal collection should be acknowledged, got %v", err)
	}
	r.err = ErrRunInProgress
	if err := h.Handle(context.Background(), []byte(snapshotJSON)); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("held lock should be retried, got %v", err)
	}
}

func TestDiscoveryJobParsesQueuedPayload(t *testing.T) {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(snapshotJSON), &payload); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	r := &fakeRunner{}
	j := NewDiscoveryJob(r, logger.Nop())
	if j.Type() != DiscoveryJobType {
		t.Fatalf("type = %s", j.Type())
	}
	if err := j.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if r.last == nil || r.last.Underlyings[0].Ticker != "XYZ" {
		t.Fatalf("snapshot not decoded: %+v", r.last)
	}
}

func TestDecodeSnapshotKeepsBadRows(t *testing.T) {
	raw := `{"underlyings":[
{"ticker":"XYZ","bid":-0.01,"ask":100.02,"mid":100,"expirations":[{"date":"2025-02-21","strikes":[
{"strike":0,"put_symbol":".XYZ250221P0","put_bid":0.5,"put_ask":0.52},
{"strike":95,"put_symbol":".XYZ250221P95","put_bid":-0.01,"put_ask":1.04}]}]},
{"ticker":"ABC","mid":50,"expirations":[]}]}`
	snap, err := DecodeSnapshot([]byte(raw))
	if err != nil {
		t.Fatalf("one bad quote must not reject the snapshot: %v", err)
	}
	if len(snap.Underlyings) != 2 {
		t.Fatalf("expected 2 underlyings, got %d", len(snap.Underlyings))
	}
	if _, err := DecodeSnapshot([]byte(`{"underlyings":[{"mid":100}]}`)); err == nil {
		t.Fatalf("underlying without ticker should be rejected")
	}
}
