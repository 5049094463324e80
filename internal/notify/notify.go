// Package notify delivers sync outcome notifications. Delivery is best
// effort: the scheduler logs and drops failures.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/vietddude/syncwatch/internal/metrics"
)

// Notification is the payload published to brokers.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func newNotification(title, body string, at time.Time) Notification {
	return Notification{
		ID:        uuid.New().String(),
		Title:     title,
		Body:      body,
		CreatedAt: at,
	}
}

func (n Notification) encode() ([]byte, error) {
	return sonic.Marshal(n)
}

func observe(channel string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.NotificationsSent.WithLabelValues(channel, result).Inc()
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs at info level.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, title, body string) error {
	n.logger.InfoContext(ctx, "Notification", "title", title, "body", body)
	observe("log", nil)
	return nil
}

// Sender is a single notification channel.
type Sender interface {
	Notify(ctx context.Context, title, body string) error
}

// Multi fans a notification out to every sender. All senders are tried;
// their errors are joined.
type Multi []Sender

func (m Multi) Notify(ctx context.Context, title, body string) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
