package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/filmnt/chat/chat-service/internal/metrics"
	"github.com/filmnt/chat/pkg/log"
)

const eventTypeHeader = "event_type"

// Config configures the room event exporter.
type Config struct {
	Brokers      string
	Topic        string
	FlushTimeout time.Duration
}

// ConfluentProducer exports room events to one topic. Events are keyed by
// room so a room's history stays in order on a single partition.
type ConfluentProducer struct {
	producer     *kafka.Producer
	topic        string
	flushTimeout time.Duration
	reported     chan struct{}
}

func NewConfluentProducer(cfg Config) (*ConfluentProducer, error) {
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 5 * time.Second
	}
	if err := ensureTopic(cfg.Brokers, cfg.Topic); err != nil {
		l := log.L()
		l.Warn().Err(err).Str("topic", cfg.Topic).Msg("Could not create event topic")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"acks":               "all",
		"enable.idempotence": true,
		"linger.ms":          10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	cp := &ConfluentProducer{
		producer:     p,
		topic:        cfg.Topic,
		flushTimeout: cfg.FlushTimeout,
		reported:     make(chan struct{}),
	}
	go cp.watchDeliveries()
	return cp, nil
}

// ensureTopic creates the single-partition event topic when it is missing.
func ensureTopic(brokers, topic string) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": brokers})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{
		{Topic: topic, NumPartitions: 1, ReplicationFactor: 1},
	})
	if err != nil {
		return err
	}
	for _, r := range results {
		switch r.Error.Code() {
		case kafka.ErrNoError, kafka.ErrTopicAlreadyExists:
		default:
			return fmt.Errorf("create topic %s: %v", r.Topic, r.Error)
		}
	}
	return nil
}

func (cp *ConfluentProducer) watchDeliveries() {
	defer close(cp.reported)
	for e := range cp.producer.Events() {
		msg, ok := e.(*kafka.Message)
		if !ok {
			continue
		}
		eventType := headerValue(msg, eventTypeHeader)
		if err := msg.TopicPartition.Error; err != nil {
			metrics.EventsExported.WithLabelValues("failed").Inc()
			l := log.L()
			l.Error().Err(err).Str("topic", cp.topic).Str("event_type", eventType).Msg("Room event not delivered")
			continue
		}
		metrics.EventsExported.WithLabelValues("delivered").Inc()
	}
}

// ProduceEvent queues ev for delivery and returns without waiting for the
// broker.
func (cp *ConfluentProducer) ProduceEvent(ctx context.Context, ev *RoomEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := roomMessage(cp.topic, ev)
	if err != nil {
		return err
	}
	if err := cp.producer.Produce(msg, nil); err != nil {
		metrics.EventsExported.WithLabelValues("dropped").Inc()
		return fmt.Errorf("queue room event %s: %w", ev.Type, err)
	}
	return nil
}

// Close flushes queued events for at most the flush timeout.
func (cp *ConfluentProducer) Close() error {
	left := cp.producer.Flush(int(cp.flushTimeout / time.Millisecond))
	cp.producer.Close()
	<-cp.reported
	if left > 0 {
		return fmt.Errorf("kafka: %d room events not flushed", left)
	}
	return nil
}

func roomMessage(topic string, ev *RoomEvent) (*kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal room event: %w", err)
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(ev.Room),
		Value:          value,
		Headers:        []kafka.Header{{Key: eventTypeHeader, Value: []byte(ev.Type)}},
		Timestamp:      time.UnixMilli(ev.Timestamp),
	}, nil
}

func headerValue(msg *kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
