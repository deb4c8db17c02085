package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes notifications to a Kafka topic, keyed by recipient so
// a consumer sees one recipient's notifications in order.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

type kafkaEnvelope struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	DocumentID  string    `json:"document_id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

func (s *KafkaSink) Deliver(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(kafkaEnvelope{
		ID:          n.ID.String(),
		RecipientID: n.RecipientID.String(),
		DocumentID:  n.DocumentID.String(),
		Type:        string(n.Type),
		Message:     n.Message,
		CreatedAt:   n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(n.RecipientID.String()),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() {
	s.client.Close()
}
