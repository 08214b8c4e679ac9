// Package notify delivers payment notifications to outbound sinks after the
// database transaction that recorded them commits.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"estore/api/internal/config"
	"estore/api/internal/logger"
	"estore/api/internal/model"

	"github.com/shopspring/decimal"
)

// Event is the outbound form of a persisted payment notification.
type Event struct {
	NotificationID string                 `json:"notificationId"`
	Type           model.NotificationType `json:"type"`
	TransactionID  string                 `json:"transactionId"`
	OrderID        string                 `json:"orderId"`
	Method         model.PaymentMethod    `json:"method"`
	Status         model.PaymentStatus    `json:"status"`
	Amount         decimal.Decimal        `json:"amount"`
	Message        string                 `json:"message"`
	OccurredAt     time.Time              `json:"occurredAt"`
}

// Sink receives notification events. Delivery is best effort: the
// notification row is already committed when Publish runs.
type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogSink writes events to the process log.
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, e Event) error {
	logger.InfoContext(ctx, "payment notification",
		"type", e.Type, "transaction_id", e.TransactionID, "order_id", e.OrderID,
		"status", e.Status, "message", e.Message)
	return nil
}

func (LogSink) Close() error { return nil }

// Multi fans an event out to several sinks and joins their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory. Tests use it to assert on
// outbound notifications.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// New builds the sink selected by NOTIFY_SINK. Non-log sinks also log.
func New(cfg *config.Config) (Sink, error) {
	switch cfg.NotifySink {
	case "", "log":
		return LogSink{}, nil
	case "kafka":
		return Multi{LogSink{}, NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)}, nil
	case "redis":
		return Multi{LogSink{}, NewRedisSink(cfg.RedisAddr, cfg.RedisChannel)}, nil
	}
	return nil, fmt.Errorf("unknown notify sink %q", cfg.NotifySink)
}

func encode(e Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return b, nil
}
