package webhook

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/domain/payevent"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/pubsub"
)

// EventPublisher produces canonical payment events onto the pipeline topic
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *payevent.CanonicalPaymentEvent) error
	Close() error
}

type eventPublisher struct {
	pubSub pubsub.PubSub
	config *config.WebhookConfig
	logger *logger.Logger
}

func NewEventPublisher(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	logger *logger.Logger,
) (EventPublisher, error) {
	return &eventPublisher{
		pubSub: pubSub,
		config: &cfg.Webhook,
		logger: logger,
	}, nil
}

func (p *eventPublisher) PublishEvent(ctx context.Context, event *payevent.CanonicalPaymentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("tenant_id", event.TenantID)
	msg.Metadata.Set("provider", string(event.Provider))
	msg.Metadata.Set("event_type", string(event.Type))

	p.logger.Debugw("publishing payment event",
		"event_id", event.ID,
		"event_type", event.Type,
		"provider_event_id", event.ProviderEventID,
		"topic", p.config.Topic,
	)

	if err := p.pubSub.Publish(ctx, p.config.Topic, msg); err != nil {
		p.logger.Errorw("failed to publish payment event",
			"error", err,
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return err
	}

	return nil
}

func (p *eventPublisher) Close() error {
	return p.pubSub.Close()
}
