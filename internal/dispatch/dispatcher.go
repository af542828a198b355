package dispatch

import (
	"context"
	"log/slog"
)

// Dispatcher puts email and push deliveries on the queue. Its methods never
// block on the provider and never return delivery errors; outcomes are
// logged by the queue.
type Dispatcher struct {
	queue  *Queue
	mailer Mailer
	pusher Pusher
	logger *slog.Logger
}

func NewDispatcher(queue *Queue, mailer Mailer, pusher Pusher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{queue: queue, mailer: mailer, pusher: pusher, logger: logger}
}

// SendEmail schedules e for delivery.
func (d *Dispatcher) SendEmail(e Email) {
	_, err := d.queue.Enqueue("email", func(ctx context.Context) error {
		return d.mailer.Send(ctx, e)
	})
	if err != nil {
		d.logger.Error("enqueueing email",
			slog.String("to", e.To),
			slog.String("subject", e.Subject),
			slog.String("error", err.Error()),
		)
	}
}

// Push schedules a realtime event.
func (d *Dispatcher) Push(channel, event string, data any) {
	_, err := d.queue.Enqueue("push", func(ctx context.Context) error {
		return d.pusher.Trigger(ctx, channel, event, data)
	})
	if err != nil {
		d.logger.Error("enqueueing push event",
			slog.String("channel", channel),
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
