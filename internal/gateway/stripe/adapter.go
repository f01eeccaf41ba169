package stripe

import (
	"context"
	"strings"

	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/domain/customer"
	"github.com/meterline/meterline/internal/domain/invoice"
	"github.com/meterline/meterline/internal/domain/subscription"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

// Adapter implements gateway.Adapter against the Stripe API
type Adapter struct {
	client        *stripe.Client
	webhookSecret string
	cfg           *config.Configuration
	logger        *logger.Logger
}

func NewAdapter(cfg *config.Configuration, logger *logger.Logger) *Adapter {
	return &Adapter{
		client:        stripe.NewClient(cfg.Gateway.APIKey, nil),
		webhookSecret: cfg.Gateway.WebhookSecret,
		cfg:           cfg,
		logger:        logger,
	}
}

func (a *Adapter) Provider() types.PaymentProvider {
	return types.PaymentProviderStripe
}

func (a *Adapter) CreateCustomer(ctx context.Context, c *customer.Customer) (string, error) {
	params := &stripe.CustomerCreateParams{
		Name:  stripe.String(c.Name),
		Email: stripe.String(c.Email),
		Metadata: map[string]string{
			"meterline_customer_id": c.ID,
			"external_id":           c.ExternalID,
		},
	}

	stripeCustomer, err := a.client.V1Customers.Create(ctx, params)
	if err != nil {
		return "", a.wrapErr(err, "failed to create customer in Stripe")
	}

	return stripeCustomer.ID, nil
}

func (a *Adapter) CreateSubscription(ctx context.Context, sub *subscription.Subscription, providerCustomerID string) (string, error) {
	// Billing runs locally; the remote subscription is a mirror keyed by
	// metadata so provider events can be traced back.
	params := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(providerCustomerID),
		Metadata: map[string]string{
			"meterline_subscription_id": sub.ID,
			"meterline_plan_id":         sub.PlanID,
		},
	}
	if priceID, ok := sub.Metadata["provider_price_id"]; ok && priceID != "" {
		params.Items = []*stripe.SubscriptionCreateItemParams{
			{Price: stripe.String(priceID)},
		}
	}

	stripeSub, err := a.client.V1Subscriptions.Create(ctx, params)
	if err != nil {
		return "", a.wrapErr(err, "failed to create subscription in Stripe")
	}

	return stripeSub.ID, nil
}

func (a *Adapter) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if sub.ProviderSubscriptionID == nil {
		return ierr.NewError("subscription has no provider reference").
			WithHint("Subscription was never mirrored to Stripe").
			Mark(ierr.ErrInvalidOperation)
	}

	params := &stripe.SubscriptionUpdateParams{
		Metadata: map[string]string{
			"meterline_subscription_id": sub.ID,
			"meterline_plan_id":         sub.PlanID,
		},
	}

	_, err := a.client.V1Subscriptions.Update(ctx, *sub.ProviderSubscriptionID, params)
	if err != nil {
		return a.wrapErr(err, "failed to update subscription in Stripe")
	}
	return nil
}

func (a *Adapter) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	_, err := a.client.V1Subscriptions.Cancel(ctx, providerSubscriptionID, &stripe.SubscriptionCancelParams{})
	if err != nil {
		return a.wrapErr(err, "failed to cancel subscription in Stripe")
	}
	return nil
}

func (a *Adapter) CreateInvoice(ctx context.Context, inv *invoice.Invoice, providerCustomerID string) (string, error) {
	params := &stripe.InvoiceCreateParams{
		Customer:    stripe.String(providerCustomerID),
		Currency:    stripe.String(strings.ToLower(inv.Currency)),
		AutoAdvance: stripe.Bool(false),
		Metadata: map[string]string{
			"meterline_invoice_id": inv.ID,
			"invoice_number":       inv.InvoiceNumber,
		},
		CollectionMethod: stripe.String(string(stripe.InvoiceCollectionMethodChargeAutomatically)),
	}

	stripeInvoice, err := a.client.V1Invoices.Create(ctx, params)
	if err != nil {
		return "", a.wrapErr(err, "failed to create draft invoice in Stripe")
	}

	for _, item := range inv.LineItems {
		itemParams := &stripe.InvoiceItemCreateParams{
			Customer:    stripe.String(providerCustomerID),
			Invoice:     stripe.String(stripeInvoice.ID),
			Currency:    stripe.String(strings.ToLower(item.Currency)),
			Description: stripe.String(item.Description),
			// Stripe only allows either Amount or Quantity, not both
			Amount: stripe.Int64(item.AmountCents.IntPart()),
			Metadata: map[string]string{
				"meterline_line_item_id": item.ID,
				"line_item_type":         string(item.Type),
			},
		}

		if _, err := a.client.V1InvoiceItems.Create(ctx, itemParams); err != nil {
			return "", a.wrapErr(err, "failed to add line item to Stripe invoice")
		}
	}

	return stripeInvoice.ID, nil
}

func (a *Adapter) FinalizeInvoice(ctx context.Context, providerInvoiceID string) error {
	params := &stripe.InvoiceFinalizeInvoiceParams{
		AutoAdvance: stripe.Bool(true),
	}
	_, err := a.client.V1Invoices.FinalizeInvoice(ctx, providerInvoiceID, params)
	if err != nil {
		return a.wrapErr(err, "failed to finalize Stripe invoice")
	}
	return nil
}

func (a *Adapter) VoidInvoice(ctx context.Context, providerInvoiceID string) error {
	_, err := a.client.V1Invoices.VoidInvoice(ctx, providerInvoiceID, &stripe.InvoiceVoidInvoiceParams{})
	if err != nil {
		return a.wrapErr(err, "failed to void Stripe invoice")
	}
	return nil
}

func (a *Adapter) Refund(ctx context.Context, providerPaymentID string, amountCents decimal.Decimal) (string, error) {
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(providerPaymentID),
		Amount:        stripe.Int64(amountCents.IntPart()),
	}

	refund, err := a.client.V1Refunds.Create(ctx, params)
	if err != nil {
		return "", a.wrapErr(err, "failed to create refund in Stripe")
	}

	return refund.ID, nil
}

// wrapErr classifies a Stripe API error into the gateway error taxonomy.
// Network and 5xx/lock failures are transient and retried; everything else
// surfaces immediately.
func (a *Adapter) wrapErr(err error, msg string) error {
	var stripeErr *stripe.Error
	if ierr.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeAPI:
			// covers 5xx and lock timeouts
			return ierr.WithError(err).
				WithHint("Stripe is temporarily unavailable").
				Mark(ierr.ErrGateway)
		case stripe.ErrorType("rate_limit_error"):
			return ierr.WithError(err).
				WithHint("Stripe rate limit hit").
				Mark(ierr.ErrGateway)
		default:
			return ierr.WithError(err).
				WithHint(msg).
				WithReportableDetails(map[string]any{
					"stripe_error_type": string(stripeErr.Type),
					"stripe_error_code": string(stripeErr.Code),
				}).
				Mark(ierr.ErrInvalidOperation)
		}
	}

	// non-API errors are network-level and worth retrying
	return ierr.WithError(err).
		WithHint(msg).
		Mark(ierr.ErrGateway)
}
