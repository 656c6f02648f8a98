package kafka

import (
	"encoding/json"
	"testing"
	"time"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

func TestRoomMessage(t *testing.T) {
	ev := &RoomEvent{
		Room:      "main",
		Type:      "add",
		ActorID:   "u1",
		Payload:   json.RawMessage(`{"id":"m1"}`),
		Timestamp: 1_700_000_000_000,
	}
	msg, err := roomMessage("chat-room-events", ev)
	if err != nil {
		t.Fatal(err)
	}
	if *msg.TopicPartition.Topic != "chat-room-events" || msg.TopicPartition.Partition != ckafka.PartitionAny {
		t.Fatalf("unexpected partition %v", msg.TopicPartition)
	}
	if string(msg.Key) != "main" {
		t.Fatalf("expected room key, got %q", msg.Key)
	}
	if got := headerValue(msg, eventTypeHeader); got != "add" {
		t.Fatalf("expected event type header, got %q", got)
	}
	if !msg.Timestamp.Equal(time.UnixMilli(ev.Timestamp)) {
		t.Fatalf("unexpected timestamp %v", msg.Timestamp)
	}

	var decoded RoomEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ActorID != "u1" || string(decoded.Payload) != `{"id":"m1"}` {
		t.Fatalf("unexpected value %+v", decoded)
	}
}

func TestNewConfluentProducerNeedsTopic(t *testing.T) {
	if _, err := NewConfluentProducer(Config{Brokers: "localhost:9092"}); err == nil {
		t.Fatal("expected error without topic")
	}
}
