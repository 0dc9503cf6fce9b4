package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/copytrade-ledger/internal/logging"
	"github.com/copytrade-ledger/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisSink publishes events as JSON on a Redis pub/sub channel
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink creates a sink publishing to channel
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// Name identifies the sink
func (s *RedisSink) Name() string {
	return "redis"
}

// Publish sends event to the channel
func (s *RedisSink) Publish(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// LogSink writes events to a logger
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a sink writing to logger
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Name identifies the sink
func (s *LogSink) Name() string {
	return "log"
}

// Publish logs the event
func (s *LogSink) Publish(ctx context.Context, event models.Event) error {
	s.logger.WithFields(map[string]interface{}{
		"eventId":  event.ID,
		"account":  event.Account,
		"kind":     string(event.Kind),
		"traderId": event.TraderID,
		"amount":   event.Amount.String(),
		"balance":  event.Balance.String(),
		"revision": event.Revision,
	}).Info("Ledger event")
	return nil
}
