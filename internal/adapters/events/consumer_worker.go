package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
)

const TopicUserDeleted = "user.deleted"

type Message struct {
	Topic   string
	Payload []byte
}

type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
}

// UserEventHandler is the part of the application service the consumer
// drives.
type UserEventHandler interface {
	HandleUserDeleted(ctx context.Context, payload []byte) error
}

type ConsumerWorker struct {
	logger   *slog.Logger
	consumer Consumer
	handler  UserEventHandler
	interval time.Duration
	attempts int
	backoff  time.Duration
}

func NewConsumerWorker(logger *slog.Logger, consumer Consumer, handler UserEventHandler, interval time.Duration) *ConsumerWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerWorker{logger: logger, consumer: consumer, handler: handler, interval: interval, attempts: 3, backoff: 250 * time.Millisecond}
}

// SetRetry bounds how often a failing message is handed to the handler
// before the worker moves past it. The wait doubles after each attempt.
func (w *ConsumerWorker) SetRetry(attempts int, backoff time.Duration) {
	if attempts < 1 {
		attempts = 1
	}
	w.attempts = attempts
	w.backoff = backoff
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "consumer iteration failed",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce handles one polled batch. Malformed payloads are logged and
// dropped; they would fail the same way on redelivery. Other failures are
// retried with backoff up to the configured attempts.
func (w *ConsumerWorker) ProcessOnce(ctx context.Context) error {
	msgs, err := w.consumer.Poll(ctx, 50)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if msg.Topic != TopicUserDeleted {
			continue
		}
		if err := w.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			outcome := "failure"
			if errors.Is(err, domain.ErrInvalidInput) {
				outcome = "dropped"
			}
			w.logger.WarnContext(ctx, "failed to handle user.deleted",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "handle_user_deleted",
				"outcome", outcome,
				"error", err,
			)
		}
	}
	return nil
}

func (w *ConsumerWorker) handle(ctx context.Context, msg Message) error {
	wait := w.backoff
	var err error
	for attempt := 1; ; attempt++ {
		err = w.handler.HandleUserDeleted(ctx, msg.Payload)
		if err == nil || errors.Is(err, domain.ErrInvalidInput) || attempt >= w.attempts {
			return err
		}
		w.logger.DebugContext(ctx, "retrying user.deleted",
			"module", "events.consumer_worker",
			"layer", "adapter",
			"operation", "handle_user_deleted",
			"outcome", "retry",
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
		wait *= 2
	}
}
