// Package events publishes security events to the platform message bus.
// Publication is fire-and-forget; when no bus is configured events are
// logged and dropped.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type Type string

const (
	TypeAccountLocked    Type = "account_locked"
	TypeAccountUnlocked  Type = "account_unlocked"
	TypeSuspiciousSource Type = "suspicious_source"
	TypeTokenRevoked     Type = "token_revoked"
)

type Event struct {
	Type     Type           `json:"type"`
	Identity string         `json:"identity,omitempty"`
	Source   string         `json:"source,omitempty"`
	Time     time.Time      `json:"time"`
	Data     map[string]any `json:"data,omitempty"`
}

type Sink interface {
	Publish(ctx context.Context, event Event) error
}

type redisSink struct {
	rdb     redis.UniversalClient
	channel string
}

func (s *redisSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, s.channel, payload).Err()
}

func NewRedisSink(rdb redis.UniversalClient, channel string) Sink {
	return &redisSink{rdb: rdb, channel: channel}
}

type logSink struct{}

func (logSink) Publish(_ context.Context, event Event) error {
	slog.Debug("No event bus configured, dropping event", "type", event.Type, "identity", event.Identity)
	return nil
}

func NewLogSink() Sink {
	return logSink{}
}

// OrDefault substitutes the log-only fallback when no sink is wired.
func OrDefault(sink Sink) Sink {
	if sink == nil {
		return NewLogSink()
	}
	return sink
}
