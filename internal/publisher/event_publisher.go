package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/billcycle/billcycle/internal/config"
	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/billcycle/billcycle/internal/logger"
	"github.com/billcycle/billcycle/internal/pubsub"
	"github.com/billcycle/billcycle/internal/types"
)

// SubscriptionEvent is the outbound lifecycle notification. Delivery is
// at-least-once; consumers must be idempotent.
type SubscriptionEvent struct {
	ID             string                      `json:"id"`
	EventType      types.SubscriptionEventType `json:"event_type"`
	SubscriptionID string                      `json:"subscription_id"`
	TenantID       string                      `json:"tenant_id"`
	Timestamp      time.Time                   `json:"timestamp"`
}

// EventPublisher publishes subscription lifecycle events to the outbound
// notification hook. Publishing is fire-and-forget from the caller's
// perspective; failures are logged, never propagated into the triggering
// operation.
type EventPublisher interface {
	Publish(ctx context.Context, eventType types.SubscriptionEventType, subscriptionID string) error
}

type eventPublisher struct {
	pubSub pubsub.Publisher
	cfg    *config.Configuration
	logger *logger.Logger
}

// NewEventPublisher creates a new lifecycle event publisher
func NewEventPublisher(
	pubSub pubsub.Publisher,
	cfg *config.Configuration,
	logger *logger.Logger,
) EventPublisher {
	return &eventPublisher{
		pubSub: pubSub,
		cfg:    cfg,
		logger: logger,
	}
}

func (p *eventPublisher) Publish(ctx context.Context, eventType types.SubscriptionEventType, subscriptionID string) error {
	if !p.cfg.Event.Enabled {
		return nil
	}

	event := SubscriptionEvent{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT),
		EventType:      eventType,
		SubscriptionID: subscriptionID,
		TenantID:       types.GetTenantID(ctx),
		Timestamp:      time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal subscription event").
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(event.ID, payload)
	if err := p.pubSub.Publish(ctx, p.cfg.Event.Topic, msg); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to publish subscription event").
			Mark(ierr.ErrSystem)
	}

	p.logger.Debugw("published subscription event",
		"event_id", event.ID,
		"event_type", eventType,
		"subscription_id", subscriptionID,
	)
	return nil
}

// UnmarshalEvent decodes a lifecycle event from a watermill message payload.
func UnmarshalEvent(msg *message.Message) (*SubscriptionEvent, error) {
	var event SubscriptionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to unmarshal subscription event").
			Mark(ierr.ErrValidation)
	}
	return &event, nil
}
