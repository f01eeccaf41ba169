package service

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/api/dto"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// SubscriptionService manages the subscription lifecycle. Subscriptions are
// never deleted; cancellation is a status transition.
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ListSubscriptions(ctx context.Context, filter *types.Filter) (*dto.ListSubscriptionsResponse, error)
	UpdateSubscription(ctx context.Context, id string, req dto.UpdateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
	}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cust, err := s.CustomerRepo.Get(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if cust.ProviderCustomerID == nil {
		return nil, ierr.NewError("customer has no gateway identity").
			WithHint("Customer must be mirrored to the payment provider before subscribing").
			Mark(ierr.ErrInvalidOperation)
	}

	p, err := s.PlanRepo.Get(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	sub := req.ToSubscription(ctx, p.Currency)
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	providerSubID, err := s.Gateway.CreateSubscription(ctx, sub, *cust.ProviderCustomerID)
	if err != nil {
		return nil, err
	}
	sub.ProviderSubscriptionID = &providerSubID

	if err := s.SubRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("subscription created",
		"subscription_id", sub.ID,
		"customer_id", sub.CustomerID,
		"plan_id", sub.PlanID,
		"provider_subscription_id", providerSubID,
	)

	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, filter *types.Filter) (*dto.ListSubscriptionsResponse, error) {
	if filter == nil {
		f := types.GetDefaultFilter()
		filter = &f
	}

	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.SubscriptionResponse, len(subs))
	for i, sub := range subs {
		items[i] = &dto.SubscriptionResponse{Subscription: sub}
	}

	response := types.NewListResponse(items, len(items), filter.GetLimit(), filter.GetOffset())
	return &response, nil
}

func (s *subscriptionService) UpdateSubscription(ctx context.Context, id string, req dto.UpdateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusCanceled {
		return nil, ierr.NewError("subscription is canceled").
			WithHint("Canceled subscriptions cannot be modified").
			Mark(ierr.ErrInvalidOperation)
	}

	if req.PlanID != nil && *req.PlanID != sub.PlanID {
		p, err := s.PlanRepo.Get(ctx, *req.PlanID)
		if err != nil {
			return nil, err
		}
		if p.Currency != sub.Currency {
			return nil, ierr.NewError("plan currency mismatch").
				WithHintf("Cannot switch a %s subscription to a %s plan", sub.Currency, p.Currency).
				Mark(ierr.ErrInvalidOperation)
		}
		sub.PlanID = p.ID
	}
	if req.Metadata != nil {
		sub.Metadata = req.Metadata
	}
	sub.UpdatedBy = types.GetUserID(ctx)

	if err := s.Gateway.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusCanceled {
		return &dto.SubscriptionResponse{Subscription: sub}, nil
	}

	if sub.ProviderSubscriptionID != nil {
		if err := s.Gateway.CancelSubscription(ctx, *sub.ProviderSubscriptionID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	sub.SubscriptionStatus = types.SubscriptionStatusCanceled
	sub.CanceledAt = &now
	sub.UpdatedBy = types.GetUserID(ctx)

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.Logger.Infow("subscription canceled", "subscription_id", sub.ID)

	return &dto.SubscriptionResponse{Subscription: sub}, nil
}
