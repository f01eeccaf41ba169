package gateway

import (
	"context"

	"github.com/meterline/meterline/internal/domain/customer"
	"github.com/meterline/meterline/internal/domain/invoice"
	"github.com/meterline/meterline/internal/domain/payevent"
	"github.com/meterline/meterline/internal/domain/subscription"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
)

// Adapter is the narrow interface to the payment provider. It is the only
// code permitted to speak the provider's wire protocol; everything else in
// the system works with domain models and canonical events.
type Adapter interface {
	Provider() types.PaymentProvider

	// CreateCustomer mirrors a customer remotely and returns the provider
	// customer id
	CreateCustomer(ctx context.Context, c *customer.Customer) (string, error)

	// CreateSubscription mirrors a subscription remotely and returns the
	// provider subscription id
	CreateSubscription(ctx context.Context, sub *subscription.Subscription, providerCustomerID string) (string, error)

	// UpdateSubscription pushes subscription changes to the provider
	UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error

	// CancelSubscription cancels the remote subscription
	CancelSubscription(ctx context.Context, providerSubscriptionID string) error

	// CreateInvoice creates a draft invoice remotely, including line items,
	// and returns the provider invoice id
	CreateInvoice(ctx context.Context, inv *invoice.Invoice, providerCustomerID string) (string, error)

	// FinalizeInvoice finalizes the remote invoice for collection
	FinalizeInvoice(ctx context.Context, providerInvoiceID string) error

	// VoidInvoice voids the remote invoice
	VoidInvoice(ctx context.Context, providerInvoiceID string) error

	// Refund issues a full or partial refund against a provider payment and
	// returns the provider refund id
	Refund(ctx context.Context, providerPaymentID string, amountCents decimal.Decimal) (string, error)

	// VerifyWebhook checks the provider signature and timestamp freshness of
	// an inbound webhook and returns the normalized canonical event.
	// Signature or freshness failures are marked ErrSignatureInvalid.
	VerifyWebhook(ctx context.Context, payload []byte, signature string) (*payevent.CanonicalPaymentEvent, error)
}
