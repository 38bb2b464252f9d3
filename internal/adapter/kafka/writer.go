// Package kafka publishes corrected location records to a downstream topic.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gojson "github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/address-correction-service/internal/domain"
)

// Publisher produces corrected locations to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the corrected-locations topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishCorrected serializes and publishes the records in a single
// WriteMessages call for efficiency.
func (p *Publisher) PublishCorrected(ctx context.Context, records []domain.Location) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a corrected location into a Kafka message.
// The normalized address keys the message so repeated corrections of the
// same place land in the same partition.
func serializeToMessage(rec domain.Location) (kafkago.Message, error) {
	data, err := gojson.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize corrected location: %w", err)
	}
	key := rec.NormalizedAddress
	if key == "" {
		key = rec.UnformattedAddress
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "corrected_at", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		},
	}, nil
}
