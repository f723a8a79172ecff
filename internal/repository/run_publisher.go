package repository

import (
	"context"
	"time"

	"SpreadScout/internal/domain/models"
	domrepo "SpreadScout/internal/domain/repository"
	pkgkafka "SpreadScout/pkg/kafka"
)

type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// RankedSpreadEvent is one ranked spread on the output topic.
type RankedSpreadEvent struct {
	RunID      string              `json:"run_id"`
	FinishedAt time.Time           `json:"finished_at"`
	Spread     models.SpreadRecord `json:"spread"`
}

// KafkaRunPublisher publishes the run summary keyed by run id, then each
// ranked spread keyed by ticker.
type KafkaRunPublisher struct {
	producer producer
	topic    string
}

func NewKafkaRunPublisher(p *pkgkafka.Producer, topic string) *KafkaRunPublisher {
	return &KafkaRunPublisher{producer: p, topic: topic}
}

var _ domrepo.RunPublisher = (*KafkaRunPublisher)(nil)

func (p *KafkaRunPublisher) PublishRun(ctx context.Context, run *models.RunResult) error {
	summary := *run
	summary.Spreads = nil
	summary.Suspect = nil
	if err := p.producer.Publish(ctx, p.topic, []byte(run.RunID), summary); err != nil {
		return err
	}
	if len(run.Spreads) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(run.Spreads))
	for i, s := range run.Spreads {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(s.Ticker),
			Value: RankedSpreadEvent{RunID: run.RunID, FinishedAt: run.FinishedAt, Spread: s},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaRunPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher drops runs; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishRun(context.Context, *models.RunResult) error { return nil }
func (NopPublisher) Close() error                                       { return nil }
