package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Topic carries every audit event for long-retention compliance streaming.
// The relational store remains the source of truth for trail queries.
const Topic = "veritax.audit.events"

// KafkaSink publishes audit events to Kafka, keyed by organization so one
// tenant's events stay ordered within a partition.
type KafkaSink struct {
	client *kgo.Client
}

// NewKafkaSink connects to the given seed brokers and ensures the audit topic
// exists.
func NewKafkaSink(ctx context.Context, seeds string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(seeds, ",")...),
		kgo.DefaultProduceTopic(Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	// Idempotent: CreateTopic reports TOPIC_ALREADY_EXISTS, which we ignore.
	if _, err := admin.CreateTopic(ctx, 6, 1, nil, Topic); err != nil && !strings.Contains(err.Error(), "TOPIC_ALREADY_EXISTS") {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	return &KafkaSink{client: client}, nil
}

func (s *KafkaSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(event.OrgID.String()),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() {
	s.client.Close()
}
