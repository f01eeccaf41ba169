package customer

import (
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// Customer represents a billable identity mapped to one external
// payment-gateway identity per provider.
// Invariant: unique per (tenant, external_id, provider).
type Customer struct {
	ID         string                `db:"id" json:"id"`
	ExternalID string                `db:"external_id" json:"external_id"`
	Name       string                `db:"name" json:"name"`
	Email      string                `db:"email" json:"email"`
	Provider   types.PaymentProvider `db:"provider" json:"provider"`
	// ProviderCustomerID is the gateway-side identity, captured once the
	// customer is mirrored remotely
	ProviderCustomerID *string        `db:"provider_customer_id" json:"provider_customer_id,omitempty"`
	Metadata           types.Metadata `db:"metadata" json:"metadata,omitempty"`
	types.BaseModel
}

func (c *Customer) Validate() error {
	if c.ExternalID == "" {
		return ierr.NewError("external_id is required").
			WithHint("Customer external id cannot be empty").
			Mark(ierr.ErrValidation)
	}
	if err := c.Provider.Validate(); err != nil {
		return err
	}
	return nil
}
