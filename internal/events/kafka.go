package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/MiX1964/wforecast/internal/config"
	"github.com/MiX1964/wforecast/internal/weather"
)

const publishTimeout = 2 * time.Second

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher emits a place.cached message to Kafka whenever a new place is stored.
// It implements weather.PlaceEvents.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured places topic.
func NewPublisher(cfg *config.AppConfig, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaPlacesTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Publisher{writer: w, logger: logger}
}

// placeCached is the message body.
type placeCached struct {
	Event      string        `json:"event"`
	Place      weather.Place `json:"place"`
	Source     string        `json:"source"`
	ResolvedAt time.Time     `json:"resolved_at"`
}

// PlaceCached publishes res. Delivery is bounded by a short timeout so a slow
// broker never stalls resolution.
func (p *Publisher) PlaceCached(ctx context.Context, res weather.Resolution) error {
	msg, err := serializeToMessage(res)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish place %d: %w", res.Place.ID, err)
	}
	p.logger.Debug("place event published", "place_id", res.Place.ID, "source", string(res.Source))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a Resolution into a Kafka message keyed by place id.
func serializeToMessage(res weather.Resolution) (kafkago.Message, error) {
	data, err := json.Marshal(placeCached{
		Event:      "place.cached",
		Place:      res.Place,
		Source:     string(res.Source),
		ResolvedAt: res.ResolvedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize place event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatInt(res.Place.ID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(res.Source)},
			{Key: "resolved_at", Value: []byte(res.ResolvedAt.Format(time.RFC3339))},
		},
	}, nil
}
