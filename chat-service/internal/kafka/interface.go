package kafka

import (
	"context"
	"encoding/json"
)

// RoomEvent is an accepted room change exported for downstream consumers.
type RoomEvent struct {
	Room      string          `json:"room"`
	Type      string          `json:"type"`
	ActorID   string          `json:"actor_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

type EventProducer interface {
	ProduceEvent(ctx context.Context, ev *RoomEvent) error
	Close() error
}

// NoopProducer discards events. It is used when export is disabled.
type NoopProducer struct{}

func (NoopProducer) ProduceEvent(context.Context, *RoomEvent) error { return nil }
func (NoopProducer) Close() error                                 { return nil }
