package invoice

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/types"
)

// Repository defines the interface for invoice persistence operations
type Repository interface {
	// CreateWithLineItems persists the invoice and its line items atomically
	CreateWithLineItems(ctx context.Context, invoice *Invoice) error

	// Get retrieves an invoice by ID including line items
	Get(ctx context.Context, id string) (*Invoice, error)

	// GetByPeriod retrieves the invoice covering the given subscription
	// period, if any. This is the natural-key lookup that makes
	// finalization idempotent.
	GetByPeriod(ctx context.Context, subscriptionID string, periodStart time.Time) (*Invoice, error)

	// GetByProviderInvoiceID retrieves an invoice by its gateway reference
	GetByProviderInvoiceID(ctx context.Context, providerInvoiceID string) (*Invoice, error)

	// GetByProviderPaymentID retrieves the invoice whose payment was made
	// with the given provider payment reference; disputes arrive keyed by
	// payment, not invoice
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*Invoice, error)

	// Update updates an existing invoice (status, totals, provider ref)
	Update(ctx context.Context, invoice *Invoice) error

	// AddLineItem appends a line item to an existing invoice
	AddLineItem(ctx context.Context, item *LineItem) error

	// List retrieves invoices based on filter criteria
	List(ctx context.Context, filter *InvoiceFilter) ([]*Invoice, error)

	// ListFinalizedInWindow returns invoices finalized inside the window;
	// used by batch reconciliation
	ListFinalizedInWindow(ctx context.Context, start, end time.Time) ([]*Invoice, error)

	// ListOutstandingByCustomer returns open and uncollectible invoices for
	// the balance cross-check
	ListOutstandingByCustomer(ctx context.Context, customerID string) ([]*Invoice, error)
}

// InvoiceFilter narrows invoice list queries
type InvoiceFilter struct {
	types.Filter
	CustomerID     string              `form:"customer_id"`
	SubscriptionID string              `form:"subscription_id"`
	InvoiceStatus  types.InvoiceStatus `form:"invoice_status"`
}
