package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the kafka notifier.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier writes notifications to a kafka topic, keyed by title so
// that one kind of outcome stays on one partition.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewKafkaNotifier creates a notifier with a kafka.Writer for cfg.
func NewKafkaNotifier(cfg KafkaConfig) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		RequiredAcks:           kafka.RequireOne,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: writer, topic: cfg.Topic, now: time.Now}
}

func (n *KafkaNotifier) Notify(ctx context.Context, title, body string) error {
	value, err := newNotification(title, body, n.now()).encode()
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(title),
		Value: value,
	})
	observe("kafka", err)
	if err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
