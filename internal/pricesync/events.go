package pricesync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pricesync-backend/internal/pricing"
	"github.com/angelmondragon/pricesync-backend/pkg/pubsub"
)

const envelopeVersion = 1

type messageSender interface {
	Publish(ctx context.Context, topic string, msg pubsub.Message) error
}

// Envelope is the stable wire shape of a pricing event.
type Envelope struct {
	Version    int               `json:"version"`
	EventID    string            `json:"eventId"`
	EventType  pricing.EventType `json:"eventType"`
	ProductID  uuid.UUID         `json:"productId"`
	OccurredAt time.Time         `json:"occurredAt"`
	Data       json.RawMessage   `json:"data"`
}

// EventPublisher serializes pricing events into envelopes and sends them to
// one topic, keyed by product so a sync and its later expiry stay in order.
type EventPublisher struct {
	sender messageSender
	topic  string
}

func NewEventPublisher(sender messageSender, topic string) *EventPublisher {
	return &EventPublisher{sender: sender, topic: topic}
}

func (p *EventPublisher) Publish(ctx context.Context, event pricing.Event) error {
	if p == nil || p.sender == nil {
		return nil
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		EventType:  event.Type,
		ProductID:  event.ProductID,
		OccurredAt: event.OccurredAt,
		Data:       payload,
	})
	if err != nil {
		return err
	}
	productID := event.ProductID.String()
	return p.sender.Publish(ctx, p.topic, pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_type": string(event.Type),
			"product_id": productID,
		},
		OrderingKey: productID,
	})
}
