package webhook

import (
	"context"

	"github.com/meterline/meterline/internal/alert"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/gateway"
	"github.com/meterline/meterline/internal/idempotency"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/types"
)

// IngressResult tells the HTTP layer how to acknowledge the delivery
type IngressResult struct {
	// EventID is the canonical event id, empty for duplicate deliveries
	EventID string `json:"event_id,omitempty"`
	// Duplicate is true when the provider redelivered an already accepted
	// event
	Duplicate bool `json:"duplicate,omitempty"`
	// Ignored is true for verified events outside the billing surface
	Ignored bool `json:"ignored,omitempty"`
}

// IngressService accepts raw provider webhooks, verifies them, deduplicates
// by provider event id, and hands verified events to the async pipeline. It
// never does billing work inline so the provider gets a fast acknowledgement.
type IngressService interface {
	HandleInbound(ctx context.Context, provider types.PaymentProvider, payload []byte, signature string) (*IngressResult, error)
}

type ingressService struct {
	adapters    map[types.PaymentProvider]gateway.Adapter
	idempotency *idempotency.Service
	publisher   EventPublisher
	alerts      alert.Sink
	logger      *logger.Logger
}

func NewIngressService(
	adapters map[types.PaymentProvider]gateway.Adapter,
	idempotencySvc *idempotency.Service,
	publisher EventPublisher,
	alerts alert.Sink,
	logger *logger.Logger,
) IngressService {
	return &ingressService{
		adapters:    adapters,
		idempotency: idempotencySvc,
		publisher:   publisher,
		alerts:      alerts,
		logger:      logger,
	}
}

func (s *ingressService) HandleInbound(ctx context.Context, provider types.PaymentProvider, payload []byte, signature string) (*IngressResult, error) {
	adapter, ok := s.adapters[provider]
	if !ok {
		return nil, ierr.NewError("unsupported payment provider").
			WithHintf("No adapter is registered for provider %s", provider).
			Mark(ierr.ErrValidation)
	}

	event, err := adapter.VerifyWebhook(ctx, payload, signature)
	if err != nil {
		return nil, err
	}

	if event.Type == types.PaymentEventTypeUnknown {
		s.alerts.Raise(ctx, alert.Alert{
			Type:    alert.TypeUnknownWebhookEvent,
			Message: "accepted webhook event of unhandled type",
			Details: map[string]any{
				"provider":          provider,
				"provider_event_id": event.ProviderEventID,
			},
		})
		return &IngressResult{EventID: event.ID, Ignored: true}, nil
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}

	scopeKey := idempotency.ScopedKey(idempotency.ScopeWebhook, event.DedupKey())
	check, err := s.idempotency.CheckAndReserve(ctx, scopeKey)
	if err != nil {
		return nil, err
	}
	if !check.Fresh {
		s.logger.Infow("duplicate webhook delivery acknowledged",
			"provider", provider,
			"provider_event_id", event.ProviderEventID,
		)
		return &IngressResult{Duplicate: true}, nil
	}

	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		// free the key so the provider's redelivery gets through
		s.idempotency.Release(ctx, scopeKey)
		return nil, err
	}

	if err := s.idempotency.StoreResult(ctx, scopeKey, 0, nil); err != nil {
		s.logger.Errorw("failed to store webhook idempotency record",
			"error", err,
			"provider_event_id", event.ProviderEventID,
		)
	}

	return &IngressResult{EventID: event.ID}, nil
}
