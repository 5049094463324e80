package notify

import (
	"context"
	"fmt"
	"time"
)

// DefaultChannel is the pub/sub channel notifications are published on.
const DefaultChannel = "notifications"

// Publisher is the subset of the redis client used for notifications.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisNotifier publishes notifications over redis pub/sub.
type RedisNotifier struct {
	pub     Publisher
	channel string
	now     func() time.Time
}

// NewRedisNotifier creates a notifier publishing on channel, or
// DefaultChannel when empty.
func NewRedisNotifier(pub Publisher, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{pub: pub, channel: channel, now: time.Now}
}

func (n *RedisNotifier) Notify(ctx context.Context, title, body string) error {
	payload, err := newNotification(title, body, n.now()).encode()
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	err = n.pub.Publish(ctx, n.channel, payload)
	observe("redis", err)
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
