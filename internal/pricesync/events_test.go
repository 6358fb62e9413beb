package pricesync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/pricesync-backend/internal/pricing"
	"github.com/angelmondragon/pricesync-backend/pkg/pubsub"
)

type captureSender struct {
	topic       string
	data        []byte
	attrs       map[string]string
	orderingKey string
}

func (c *captureSender) Publish(_ context.Context, topic string, msg pubsub.Message) error {
	c.topic, c.data, c.attrs, c.orderingKey = topic, msg.Data, msg.Attributes, msg.OrderingKey
	return nil
}

func TestEventPublisherEnvelope(t *testing.T) {
	sender := &captureSender{}
	pub := NewEventPublisher(sender, "pricing-events")
	id := uuid.New()
	at := time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)

	err := pub.Publish(context.Background(), pricing.Event{
		Type:       pricing.EventSaleExpired,
		ProductID:  id,
		OccurredAt: at,
		Data:       pricing.SaleExpiredData{SaleEnd: "2025-01-10", RestoredUSD: 58.4},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if sender.topic != "pricing-events" {
		t.Fatalf("unexpected topic %q", sender.topic)
	}
	if sender.attrs["event_type"] != "sale_expired" || sender.attrs["product_id"] != id.String() {
		t.Fatalf("unexpected attributes %+v", sender.attrs)
	}
	if sender.orderingKey != id.String() {
		t.Fatalf("expected product ordering key, got %q", sender.orderingKey)
	}

	var env Envelope
	if err := json.Unmarshal(sender.data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Version != 1 || env.EventID == "" || env.ProductID != id || !env.OccurredAt.Equal(at) {
		t.Fatalf("unexpected envelope %+v", env)
	}
	var data pricing.SaleExpiredData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.RestoredUSD != 58.4 || data.SaleEnd != "2025-01-10" {
		t.Fatalf("unexpected data %+v", data)
	}
}

func TestNilEventPublisherIsNoop(t *testing.T) {
	var pub *EventPublisher
	if err := pub.Publish(context.Background(), pricing.Event{Type: pricing.EventPriceSynced}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
