package notify

import (
	"context"

	"github.com/wbfreight/dispatch/internal/domain"
	"github.com/wbfreight/dispatch/internal/messaging"
)

// EventPublisher delivers order events through the broker instead of a
// direct HTTP call. Events for one order share a key so they stay in
// order on the topic.
type EventPublisher struct {
	producer *messaging.Producer
}

func NewEventPublisher(producer *messaging.Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func (p *EventPublisher) Notify(ctx context.Context, event domain.OrderEvent) error {
	return p.producer.Publish(ctx, event.OrderID, event)
}
