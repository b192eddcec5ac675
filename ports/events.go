package ports

import (
	"context"

	"github.com/layer-3/paydesk/core"
)

// EventPublisher publishes lifecycle events to other instances and consumers
type EventPublisher interface {
	PublishAuth(ctx context.Context, event core.AuthEvent) error
	PublishPayment(ctx context.Context, topic string, tx core.Transaction) error
}
