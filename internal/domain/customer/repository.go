package customer

import (
	"context"

	"github.com/meterline/meterline/internal/types"
)

// Repository defines the interface for customer data access
type Repository interface {
	Create(ctx context.Context, customer *Customer) error
	Get(ctx context.Context, id string) (*Customer, error)
	GetByExternalID(ctx context.Context, externalID string, provider types.PaymentProvider) (*Customer, error)
	GetByProviderCustomerID(ctx context.Context, providerCustomerID string) (*Customer, error)
	List(ctx context.Context, filter *types.Filter) ([]*Customer, error)
	Update(ctx context.Context, customer *Customer) error
}
