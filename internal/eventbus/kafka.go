package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mm_engine/internal/core"

	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes engine events to a Kafka topic. Delivery runs on a
// background goroutine so trading code paths never wait on the broker.
type KafkaSink struct {
	writer *kafka.Writer
	logger core.ILogger
	queue  chan core.Event
	done   chan struct{}
}

// NewKafkaSink creates a Kafka sink writing to the given brokers and topic
func NewKafkaSink(brokers []string, topic string, logger core.ILogger) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.CRC32Balancer{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
	}

	s := &KafkaSink{
		writer: writer,
		logger: logger.WithField("component", "kafka_sink"),
		queue:  make(chan core.Event, 1024),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Deliver enqueues the event for asynchronous publication. Events are dropped
// with a warning when the queue is full.
func (s *KafkaSink) Deliver(ctx context.Context, event core.Event) {
	select {
	case s.queue <- event:
	default:
		s.logger.Warn("Kafka event queue full, dropping event", "event_type", event.Type)
	}
}

func (s *KafkaSink) run() {
	for {
		select {
		case <-s.done:
			return
		case event := <-s.queue:
			if err := s.write(event); err != nil {
				s.logger.Error("Failed to publish event to kafka",
					"event_type", event.Type,
					"error", err)
			}
		}
	}
}

func (s *KafkaSink) write(event core.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%s-%s", event.BotID, event.Type)),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}

	return s.writer.WriteMessages(ctx, msg)
}

// Close stops the delivery goroutine and closes the writer
func (s *KafkaSink) Close() error {
	close(s.done)
	return s.writer.Close()
}
