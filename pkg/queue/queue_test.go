package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"SpreadScout/pkg/logger"
)

type snapshotStub struct {
	Ticker string  `json:"ticker"`
	Spot   float64 `json:"spot"`
}

type countingJob struct {
	calls    atomic.Int32
	failFor  int32
	received chan *snapshotStub
}

func (j *countingJob) Name() string { return "test" }
func (j *countingJob) Type() string { return "test.run" }
func (j *countingJob) Handle(_ context.Context, payload interface{}) error {
	n := j.calls.Add(1)
	if n <= j.failFor {
		return errors.New("transient")
	}
	p, err := ParsePayload[snapshotStub](payload)
	if err != nil {
		return err
	}
	j.received <- p
	return nil
}

func TestParsePayload(t *testing.T) {
	raw := json.RawMessage(`{"ticker":"XYZ","spot":101.5}`)
	p, err := ParsePayload[snapshotStub](raw)
	if err != nil || p.Ticker != "XYZ" || p.Spot != 101.5 {
		t.Fatalf("raw: %+v, %v", p, err)
	}
	p, err = ParsePayload[snapshotStub](map[string]interface{}{"ticker": "ABC"})
	if err != nil || p.Ticker != "ABC" {
		t.Fatalf("map: %+v, %v", p, err)
	}
	if _, err := ParsePayload[snapshotStub](42); err == nil {
		t.Fatalf("expected error for unsupported payload")
	}
}

func TestRetryDelayDoubles(t *testing.T) {
	if retryDelay(time.Second, 1) != time.Second || retryDelay(time.Second, 3) != 4*time.Second {
		t.Fatalf("unexpected delays %v %v", retryDelay(time.Second, 1), retryDelay(time.Second, 3))
	}
}

func TestMemoryQueueRetriesThenDelivers(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 1, RetryLimit: 2, RetryDelay: time.Millisecond}, 4)
	job := &countingJob{failFor: 1, received: make(chan *snapshotStub, 1)}
	q.RegisterJob(job)
	if err := q.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer q.Stop(context.Background())

	id, err := q.Enqueue(context.Background(), "test.run", snapshotStub{Ticker: "XYZ"})
	if err != nil || id == "" {
		t.Fatalf("enqueue: %q %v", id, err)
	}
	select {
	case p := <-job.received:
		if p.Ticker != "XYZ" {
			t.Fatalf("payload = %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("job never completed")
	}
	if job.calls.Load() != 2 {
		t.Fatalf("expected one retry, calls=%d", job.calls.Load())
	}
}

func TestMemoryQueueDeadLetters(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 1, RetryLimit: 1, RetryDelay: time.Millisecond}, 4)
	job := &countingJob{failFor: 100, received: make(chan *snapshotStub, 1)}
	q.RegisterJob(job)
	_ = q.Start()
	defer q.Stop(context.Background())

	_, _ = q.Enqueue(context.Background(), "test.run", snapshotStub{})
	deadline := time.Now().Add(2 * time.Second)
	for len(q.DeadLetters()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	dl := q.DeadLetters()
	if len(dl) != 1 || dl[0].Attempts != 2 || dl[0].LastError != "transient" {
		t.Fatalf("unexpected dead letters %+v", dl)
	}
	if _, err := q.Enqueue(context.Background(), "unknown", nil); err == nil {
		t.Fatalf("unknown type must be rejected")
	}
}
