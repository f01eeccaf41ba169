package service

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/api/dto"
	ierr "github.com/meterline/meterline/internal/errors"
)

// UsageService ingests metered usage facts and exposes the period aggregate
type UsageService interface {
	// RecordUsage appends an immutable usage event for a billable
	// subscription
	RecordUsage(ctx context.Context, req dto.RecordUsageRequest) (*dto.UsageEventResponse, error)

	// GetUsageSummary aggregates unprocessed usage for the subscription's
	// current period. Pure read.
	GetUsageSummary(ctx context.Context, subscriptionID string) (*dto.UsageSummaryResponse, error)
}

type usageService struct {
	ServiceParams
}

func NewUsageService(params ServiceParams) UsageService {
	return &usageService{
		ServiceParams: params,
	}
}

func (s *usageService) RecordUsage(ctx context.Context, req dto.RecordUsageRequest) (*dto.UsageEventResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if !sub.IsBillable() {
		return nil, ierr.NewError("subscription is not billable").
			WithHintf("Usage cannot be recorded against a %s subscription", sub.SubscriptionStatus).
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	event := req.ToEvent(ctx)
	if err := event.Validate(); err != nil {
		return nil, err
	}

	if err := s.UsageRepo.Insert(ctx, event); err != nil {
		return nil, err
	}

	s.Logger.Debugw("usage event recorded",
		"event_id", event.ID,
		"subscription_id", event.SubscriptionID,
		"metric", event.Metric,
		"quantity", event.Quantity,
	)

	return &dto.UsageEventResponse{Event: event}, nil
}

func (s *usageService) GetUsageSummary(ctx context.Context, subscriptionID string) (*dto.UsageSummaryResponse, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	return s.summarize(ctx, sub.ID, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
}

func (s *usageService) summarize(ctx context.Context, subscriptionID string, periodStart, periodEnd time.Time) (*dto.UsageSummaryResponse, error) {
	metrics, err := s.UsageRepo.AggregateUnprocessed(ctx, subscriptionID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	return &dto.UsageSummaryResponse{
		SubscriptionID: subscriptionID,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Metrics:        metrics,
	}, nil
}
