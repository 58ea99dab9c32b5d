package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/hospitality-spend-ledger/internal/config"
)

// RefreshRequestProducer publishes snapshot refresh requests. Messages are
// keyed by scope so requests for one view stay ordered on a partition.
type RefreshRequestProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewRefreshRequestProducer ensures the refresh topic exists and returns a synchronous producer
func NewRefreshRequestProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*RefreshRequestProducer, error) {
	if cfg.RefreshRequestsTopic == "" {
		return nil, fmt.Errorf("kafka refresh requests topic is not configured")
	}

	if err := ensureTopic(cfg, cfg.RefreshRequestsTopic, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure refresh topic %s exists: %w", cfg.RefreshRequestsTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.RefreshRequestsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.MaxWait,
	}

	return &RefreshRequestProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.RefreshRequestsTopic,
	}, nil
}

func (p *RefreshRequestProducer) Publish(ctx context.Context, key string, value any) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish refresh request",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish refresh request to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published refresh request",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *RefreshRequestProducer) Close() error {
	p.logger.Info("Closing refresh request producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}

var _ MessagePublisher = (*RefreshRequestProducer)(nil)
