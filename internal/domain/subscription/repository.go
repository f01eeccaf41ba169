package subscription

import (
	"context"

	"github.com/meterline/meterline/internal/types"
)

// Repository defines the interface for subscription data access.
// There is deliberately no Delete; cancellation is an update.
type Repository interface {
	Create(ctx context.Context, subscription *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*Subscription, error)
	List(ctx context.Context, filter *types.Filter) ([]*Subscription, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*Subscription, error)
	Update(ctx context.Context, subscription *Subscription) error
}
