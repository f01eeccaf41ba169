package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/meterline/meterline/internal/domain/customer"
	"github.com/meterline/meterline/internal/domain/invoice"
	"github.com/meterline/meterline/internal/domain/payevent"
	"github.com/meterline/meterline/internal/domain/subscription"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
)

// FakeGateway implements gateway.Adapter for tests. It hands out
// deterministic provider ids and records every call. Set FailWith to make
// all remote calls fail.
type FakeGateway struct {
	mu sync.Mutex

	// FailWith, when non-nil, is returned by every remote call
	FailWith error

	// VerifyFunc, when set, overrides webhook verification
	VerifyFunc func(ctx context.Context, payload []byte, signature string) (*payevent.CanonicalPaymentEvent, error)

	Customers     []*customer.Customer
	Subscriptions []*subscription.Subscription
	Invoices      []*invoice.Invoice
	Finalized     []string
	Voided        []string
	Canceled      []string
	Refunds       []FakeRefund

	seq int
}

type FakeRefund struct {
	ProviderPaymentID string
	AmountCents       decimal.Decimal
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

func (g *FakeGateway) Provider() types.PaymentProvider {
	return types.PaymentProviderStripe
}

func (g *FakeGateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_test_%d", prefix, g.seq)
}

func (g *FakeGateway) CreateCustomer(ctx context.Context, c *customer.Customer) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailWith != nil {
		return "", g.FailWith
	}
	g.Customers = append(g.Customers, c)
	return g.nextID("cus"), nil
}

func (g *FakeGateway) CreateSubscription(ctx context.Context, sub *subscription.Subscription, providerCustomerID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailWith != nil {
		return "", g.FailWith
	}
	g.Subscriptions = append(g.Subscriptions, sub)
	return g.nextID("sub"), nil
}

func (g *FakeGateway) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.FailWith
}

func (g *FakeGateway) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailWith != nil {
		return g.FailWith
	}
	g.Canceled = append(g.Canceled, providerSubscriptionID)
	return nil
}

func (g *FakeGateway) CreateInvoice(ctx context.Context, inv *invoice.Invoice, providerCustomerID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailWith != nil {
		return "", g.FailWith
	}
	g.Invoices = append(g.Invoices, inv)
	return g.nextID("in"), nil
}

func (g *FakeGateway) FinalizeInvoice(ctx context.Context, providerInvoiceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailWith != nil {
		return g.FailWith
	}
	g.Finalized = append(g.Finalized, providerInvoiceID)
	return nil
}

func (g *FakeGateway) VoidInvoice(ctx context.Context, providerInvoiceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailWith != nil {
		return g.FailWith
	}
	g.Voided = append(g.Voided, providerInvoiceID)
	return nil
}

func (g *FakeGateway) Refund(ctx context.Context, providerPaymentID string, amountCents decimal.Decimal) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailWith != nil {
		return "", g.FailWith
	}
	g.Refunds = append(g.Refunds, FakeRefund{
		ProviderPaymentID: providerPaymentID,
		AmountCents:       amountCents,
	})
	return g.nextID("re"), nil
}

func (g *FakeGateway) VerifyWebhook(ctx context.Context, payload []byte, signature string) (*payevent.CanonicalPaymentEvent, error) {
	if g.VerifyFunc != nil {
		return g.VerifyFunc(ctx, payload, signature)
	}
	return nil, ierr.NewError("webhook verification not configured").
		Mark(ierr.ErrSignatureInvalid)
}
