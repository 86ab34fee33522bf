package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/domain"
)

// PubSubSettlementPublisher publishes settlement events to a Pub/Sub topic for payout routing.
type PubSubSettlementPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubSettlementPublisher constructs a Pub/Sub backed settlement publisher.
func NewPubSubSettlementPublisher(topic *pubsub.Topic) (*PubSubSettlementPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub settlement publisher: topic is required")
	}
	return &PubSubSettlementPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishSettlement enqueues the event and waits for the server-assigned message id.
func (p *PubSubSettlementPublisher) PublishSettlement(ctx context.Context, event domain.SettlementEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub settlement publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal settlement event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventId", event.EventID)
	setAttr(attrs, "paymentId", event.PaymentID)
	setAttr(attrs, "shopId", event.ShopID)
	setAttr(attrs, "vendorId", event.VendorID)
	setAttr(attrs, "hotelId", event.HotelID)
	setAttr(attrs, "model", event.Model)
	setAttr(attrs, "currency", strings.ToLower(event.Currency))

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish settlement event: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *PubSubSettlementPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
