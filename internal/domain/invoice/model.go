package invoice

import (
	"time"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice represents the invoice domain model. An invoice covers exactly one
// [PeriodStart, PeriodEnd) window of one subscription; at most one finalized
// invoice may exist per (subscription, period start).
type Invoice struct {
	ID             string              `db:"id" json:"id"`
	InvoiceNumber  string              `db:"invoice_number" json:"invoice_number"`
	CustomerID     string              `db:"customer_id" json:"customer_id"`
	SubscriptionID string              `db:"subscription_id" json:"subscription_id"`
	InvoiceStatus  types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`
	Currency       string              `db:"currency" json:"currency"`
	TotalCents     decimal.Decimal     `db:"total_cents" json:"total_cents"`
	AmountPaid     decimal.Decimal     `db:"amount_paid_cents" json:"amount_paid_cents"`
	PeriodStart    time.Time           `db:"period_start" json:"period_start"`
	PeriodEnd      time.Time           `db:"period_end" json:"period_end"`
	// ProviderInvoiceID is the gateway-side reference, captured after the
	// remote finalize succeeds. Nil means the remote call is still pending.
	ProviderInvoiceID *string        `db:"provider_invoice_id" json:"provider_invoice_id,omitempty"`
	IdempotencyKey    *string        `db:"idempotency_key" json:"idempotency_key,omitempty"`
	FinalizedAt       *time.Time     `db:"finalized_at" json:"finalized_at,omitempty"`
	PaidAt            *time.Time     `db:"paid_at" json:"paid_at,omitempty"`
	VoidedAt          *time.Time     `db:"voided_at" json:"voided_at,omitempty"`
	Metadata          types.Metadata `db:"metadata" json:"metadata,omitempty"`
	LineItems         []*LineItem    `db:"-" json:"line_items,omitempty"`
	Version           int            `db:"version" json:"version"`
	types.BaseModel
}

func (i *Invoice) Validate() error {
	if err := i.InvoiceStatus.Validate(); err != nil {
		return err
	}

	if i.TotalCents.IsNegative() {
		return ierr.NewError("total_cents must be non-negative").
			WithHint("Invoice total cannot be negative").
			Mark(ierr.ErrValidation)
	}

	if i.AmountPaid.IsNegative() {
		return ierr.NewError("amount_paid_cents must be non-negative").
			Mark(ierr.ErrValidation)
	}

	if !i.PeriodEnd.After(i.PeriodStart) {
		return ierr.NewError("period_end must be after period_start").
			WithHint("Invoice period must span a non-empty window").
			WithReportableDetails(map[string]any{
				"period_start": i.PeriodStart,
				"period_end":   i.PeriodEnd,
			}).
			Mark(ierr.ErrValidation)
	}

	if i.LineItems != nil {
		sum := decimal.Zero
		for _, item := range i.LineItems {
			if item.Currency != i.Currency {
				return ierr.NewError("line item currency must match invoice currency").
					Mark(ierr.ErrValidation)
			}
			if err := item.Validate(); err != nil {
				return err
			}
			sum = sum.Add(item.AmountCents)
		}
		if !sum.Equal(i.TotalCents) {
			return ierr.NewError("total_cents must equal the sum of line items").
				WithReportableDetails(map[string]any{
					"total_cents":   i.TotalCents.String(),
					"line_item_sum": sum.String(),
				}).
				Mark(ierr.ErrValidation)
		}
	}

	return nil
}

// IsFinalized reports whether the invoice has left draft state
func (i *Invoice) IsFinalized() bool {
	return i.InvoiceStatus != types.InvoiceStatusDraft
}

// RemainingAmount returns the unpaid remainder
func (i *Invoice) RemainingAmount() decimal.Decimal {
	return i.TotalCents.Sub(i.AmountPaid)
}

// UsageSubtotal sums the usage line items
func (i *Invoice) UsageSubtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range i.LineItems {
		if item.Type == types.LineItemTypeUsage {
			subtotal = subtotal.Add(item.AmountCents)
		}
	}
	return subtotal
}
