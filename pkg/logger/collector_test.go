package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollectorDeduplicatesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "spreadscout.logs", Publisher: pub})

	c.AddLog("error", "feed poll failed", map[string]interface{}{"attempt": 1}, "feed.go:10")
	c.AddLog("error", "feed poll failed", map[string]interface{}{"attempt": 2}, "feed.go:10")
	c.AddLog("warn", "slow batch", nil, "collector.go:20")
	c.Close()

	if len(pub.batches) != 1 || pub.topic != "spreadscout.logs" {
		t.Fatalf("expected one batch on topic, got %d %q", len(pub.batches), pub.topic)
	}
	batch := pub.batches[0]
	if len(batch) != 2 {
		t.Fatalf("expected 2 unique entries, got %+v", batch)
	}
	for _, e := range batch {
		if e.Message == "feed poll failed" && (e.Count != 2 || e.Fields["attempt"] != 1) {
			t.Fatalf("unexpected entry %+v", e)
		}
	}
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	defer c.Close()

	c.AddLog("error", "a", nil, "x:1")
	c.AddLog("error", "b", nil, "x:2")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		pub.mu.Lock()
		n := len(pub.batches)
		pub.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("threshold flush did not happen")
}

func TestLoggerFeedsCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Publisher: pub})
	l.Error("store failed", Error(errors.New("x")))
	l.Info("ignored")
	l.RemoveCollector()

	if len(pub.batches) != 1 || pub.batches[0][0].Message != "store failed" {
		t.Fatalf("unexpected batches %+v", pub.batches)
	}
}
