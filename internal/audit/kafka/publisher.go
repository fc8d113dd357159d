// Package kafka publishes audit entries to a Kafka topic so downstream
// compliance and SIEM consumers can subscribe without touching the primary
// store.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"fleettrack/internal/audit"
)

// Publisher is a best-effort audit.Sink backed by franz-go.
type Publisher struct {
	client *kgo.Client
	topic  string
}

func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Publisher{client: client, topic: topic}, nil
}

// payload mirrors audit.Entry with wire-stable field names.
type payload struct {
	ID          string                `json:"id"`
	ActorID     string                `json:"actor_id,omitempty"`
	Action      string                `json:"action"`
	EntityType  string                `json:"entity_type"`
	EntityID    string                `json:"entity_id,omitempty"`
	EntityLabel string                `json:"entity_label,omitempty"`
	OldValues   map[string]any        `json:"old_values,omitempty"`
	NewValues   map[string]any        `json:"new_values,omitempty"`
	Metadata    map[string]any        `json:"metadata,omitempty"`
	Request     audit.RequestMetadata `json:"request"`
	CreatedAt   time.Time             `json:"created_at"`
}

// Publish produces one record per entry, keyed by entry ID so partition
// ordering follows creation time.
func (p *Publisher) Publish(ctx context.Context, entry audit.Entry) error {
	msg := payload{
		ID:          entry.ID,
		Action:      string(entry.Action),
		EntityType:  string(entry.EntityType),
		EntityLabel: entry.EntityLabel,
		OldValues:   entry.OldValues,
		NewValues:   entry.NewValues,
		Metadata:    entry.Metadata,
		Request:     entry.Request,
		CreatedAt:   entry.CreatedAt,
	}
	if entry.ActorID != nil {
		msg.ActorID = entry.ActorID.String()
	}
	if entry.EntityID != nil {
		msg.EntityID = entry.EntityID.String()
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(entry.ID),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit record: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Close()
}
