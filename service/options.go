package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
)

type options struct {
	now    func() time.Time
	events ports.EventPublisher
}

// Option configures a service.
type Option func(*options)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithEvents publishes lifecycle events to p.
func WithEvents(p ports.EventPublisher) Option {
	return func(o *options) { o.events = p }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func componentLogger(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// publishAuth never fails the caller; the event stream is advisory.
func (o options) publishAuth(ctx context.Context, logger zerolog.Logger, ev core.AuthEvent) {
	if o.events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = o.now()
	}
	if err := o.events.PublishAuth(ctx, ev); err != nil {
		logger.Warn().Err(err).Str("topic", ev.Topic).Msg("failed to publish auth event")
	}
}

func (o options) publishPayment(ctx context.Context, logger zerolog.Logger, topic string, tx core.Transaction) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishPayment(ctx, topic, tx); err != nil {
		logger.Warn().Err(err).Str("topic", topic).Msg("failed to publish payment event")
	}
}
