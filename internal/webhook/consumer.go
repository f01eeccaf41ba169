package webhook

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/domain/payevent"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/pubsub"
	pubsubRouter "github.com/meterline/meterline/internal/pubsub/router"
	"github.com/meterline/meterline/internal/types"
)

// EventProcessor applies a verified canonical payment event to the billing
// state. Implementations must be idempotent per provider event id.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *payevent.CanonicalPaymentEvent) error
}

// Consumer drains the canonical topic and dispatches events to the processor
type Consumer interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type consumer struct {
	pubSub    pubsub.PubSub
	config    *config.WebhookConfig
	processor EventProcessor
	logger    *logger.Logger
}

func NewConsumer(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	processor EventProcessor,
	logger *logger.Logger,
) Consumer {
	return &consumer{
		pubSub:    pubSub,
		config:    &cfg.Webhook,
		processor: processor,
		logger:    logger,
	}
}

func (c *consumer) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"payment_event_handler",
		c.config.Topic,
		c.pubSub,
		c.processMessage,
	)
}

func (c *consumer) processMessage(msg *message.Message) error {
	ctx := msg.Context()

	var event payevent.CanonicalPaymentEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		c.logger.Errorw("failed to unmarshal payment event",
			"error", err,
			"message_uuid", msg.UUID,
		)
		return nil // Don't retry on unmarshal errors
	}

	ctx = context.WithValue(ctx, types.CtxTenantID, event.TenantID)
	ctx = context.WithValue(ctx, types.CtxCorrelationID, event.CorrelationID)

	if err := c.processor.ProcessEvent(ctx, &event); err != nil {
		if !shouldRetry(err) {
			c.logger.Errorw("dropping unprocessable payment event",
				"error", err,
				"event_id", event.ID,
				"event_type", event.Type,
				"provider_event_id", event.ProviderEventID,
			)
			return nil
		}
		return err
	}

	c.logger.Infow("payment event processed",
		"event_id", event.ID,
		"event_type", event.Type,
		"message_uuid", msg.UUID,
	)
	return nil
}

// shouldRetry decides whether the router's retry middleware should redeliver.
// Business rejections are final; everything else is assumed transient.
func shouldRetry(err error) bool {
	if ierr.IsValidation(err) ||
		ierr.IsInvalidOperation(err) ||
		ierr.IsAlreadyExists(err) {
		return false
	}
	return true
}
