package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
)

// PaymentEvent is the payload published for transaction lifecycle changes
type PaymentEvent struct {
	Hash      string        `json:"hash"`
	From      string        `json:"from"`
	Recipient string        `json:"recipient"`
	Amount    string        `json:"amount"`
	Token     string        `json:"token"`
	Status    core.TxStatus `json:"status"`
	Block     uint64        `json:"block,omitempty"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	prefix    string
}

// NewWatermillPublisher creates a new Watermill publisher; topics are prefixed with "paydesk."
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		prefix:    "paydesk.",
	}
}

// PublishAuth publishes an authentication lifecycle event
func (p *WatermillPublisher) PublishAuth(ctx context.Context, event core.AuthEvent) error {
	return p.publish(ctx, event.Topic, event)
}

// PublishPayment publishes a payment lifecycle event
func (p *WatermillPublisher) PublishPayment(ctx context.Context, topic string, tx core.Transaction) error {
	return p.publish(ctx, topic, PaymentEvent{
		Hash:      tx.Hash.Hex(),
		From:      string(tx.From),
		Recipient: string(tx.Recipient),
		Amount:    tx.Amount.String(),
		Token:     tx.Token,
		Status:    tx.Status,
		Block:     tx.BlockNumber,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), data)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.prefix+topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishAuth(context.Context, core.AuthEvent) error { return nil }

func (NopPublisher) PublishPayment(context.Context, string, core.Transaction) error { return nil }
