package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher delivers lifecycle events to a Kafka topic, keyed by the
// entity id so per-entity ordering survives partitioning.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects to the given seed brokers. Returns nil when
// no seeds are configured so callers can fall back to another sink.
func NewKafkaPublisher(seeds []string, topic string) (*KafkaPublisher, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

func (p *KafkaPublisher) Emit(ctx context.Context, event Event) error {
	if event.Occurred.IsZero() {
		event.Occurred = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Entity.ID),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event %s: %w", event.Name, err)
	}
	return nil
}

// Close flushes and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
