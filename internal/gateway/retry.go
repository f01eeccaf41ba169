package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/domain/customer"
	"github.com/meterline/meterline/internal/domain/invoice"
	"github.com/meterline/meterline/internal/domain/payevent"
	"github.com/meterline/meterline/internal/domain/subscription"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
)

// breaker is a consecutive-failure circuit breaker. After threshold
// consecutive failures the circuit opens for the cool-down window and calls
// fail fast with ErrGatewayUnavailable instead of queuing retries.
type breaker struct {
	mu        sync.Mutex
	failures  int
	openUntil time.Time

	threshold int
	cooldown  time.Duration
}

func (b *breaker) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.After(b.openUntil)
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

func (b *breaker) recordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = now.Add(b.cooldown)
		b.failures = 0
	}
}

// RetryingAdapter wraps an Adapter with bounded exponential-backoff retry
// for transient errors and a circuit breaker. Webhook verification is local
// work and is passed through untouched.
type RetryingAdapter struct {
	inner      Adapter
	maxRetries uint64
	breaker    *breaker
	logger     *logger.Logger
}

func NewRetryingAdapter(inner Adapter, cfg *config.Configuration, logger *logger.Logger) *RetryingAdapter {
	return &RetryingAdapter{
		inner:      inner,
		maxRetries: uint64(cfg.Gateway.MaxRetries),
		breaker: &breaker{
			threshold: cfg.Gateway.BreakerThreshold,
			cooldown:  cfg.Gateway.BreakerCooldown,
		},
		logger: logger,
	}
}

func (a *RetryingAdapter) Provider() types.PaymentProvider {
	return a.inner.Provider()
}

// do runs fn with retry and breaker bookkeeping. Only errors marked
// ErrGateway (transient provider/network failures) are retried; domain
// errors from the provider surface immediately.
func (a *RetryingAdapter) do(ctx context.Context, op string, fn func() error) error {
	if !a.breaker.allow(time.Now()) {
		return ierr.NewError("payment gateway circuit open").
			WithHint("The payment gateway is temporarily unavailable, try again shortly").
			WithReportableDetails(map[string]any{
				"operation": op,
			}).
			Mark(ierr.ErrGatewayUnavailable)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), a.maxRetries),
		ctx,
	)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !ierr.Is(err, ierr.ErrGateway) {
			return backoff.Permanent(err)
		}
		a.logger.Warnw("transient gateway error, retrying",
			"operation", op,
			"attempt", attempt,
			"error", err,
		)
		return err
	}, policy)

	if err != nil {
		if ierr.Is(err, ierr.ErrGateway) {
			a.breaker.recordFailure(time.Now())
		}
		return err
	}

	a.breaker.recordSuccess()
	return nil
}

func (a *RetryingAdapter) CreateCustomer(ctx context.Context, c *customer.Customer) (string, error) {
	var id string
	err := a.do(ctx, "create_customer", func() error {
		var err error
		id, err = a.inner.CreateCustomer(ctx, c)
		return err
	})
	return id, err
}

func (a *RetryingAdapter) CreateSubscription(ctx context.Context, sub *subscription.Subscription, providerCustomerID string) (string, error) {
	var id string
	err := a.do(ctx, "create_subscription", func() error {
		var err error
		id, err = a.inner.CreateSubscription(ctx, sub, providerCustomerID)
		return err
	})
	return id, err
}

func (a *RetryingAdapter) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	return a.do(ctx, "update_subscription", func() error {
		return a.inner.UpdateSubscription(ctx, sub)
	})
}

func (a *RetryingAdapter) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	return a.do(ctx, "cancel_subscription", func() error {
		return a.inner.CancelSubscription(ctx, providerSubscriptionID)
	})
}

func (a *RetryingAdapter) CreateInvoice(ctx context.Context, inv *invoice.Invoice, providerCustomerID string) (string, error) {
	var id string
	err := a.do(ctx, "create_invoice", func() error {
		var err error
		id, err = a.inner.CreateInvoice(ctx, inv, providerCustomerID)
		return err
	})
	return id, err
}

func (a *RetryingAdapter) FinalizeInvoice(ctx context.Context, providerInvoiceID string) error {
	return a.do(ctx, "finalize_invoice", func() error {
		return a.inner.FinalizeInvoice(ctx, providerInvoiceID)
	})
}

func (a *RetryingAdapter) VoidInvoice(ctx context.Context, providerInvoiceID string) error {
	return a.do(ctx, "void_invoice", func() error {
		return a.inner.VoidInvoice(ctx, providerInvoiceID)
	})
}

func (a *RetryingAdapter) Refund(ctx context.Context, providerPaymentID string, amountCents decimal.Decimal) (string, error) {
	var id string
	err := a.do(ctx, "refund", func() error {
		var err error
		id, err = a.inner.Refund(ctx, providerPaymentID, amountCents)
		return err
	})
	return id, err
}

func (a *RetryingAdapter) VerifyWebhook(ctx context.Context, payload []byte, signature string) (*payevent.CanonicalPaymentEvent, error) {
	// verification is local crypto, no retry or breaker involved
	return a.inner.VerifyWebhook(ctx, payload, signature)
}
