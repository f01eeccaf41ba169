package dto

import (
	"time"

	"github.com/meterline/meterline/internal/domain/invoice"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
	"github.com/meterline/meterline/internal/validator"
	"github.com/shopspring/decimal"
)

type FinalizeInvoiceRequest struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
	// PeriodStart and PeriodEnd default to the subscription's current period
	// when omitted
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
}

type IssueRefundRequest struct {
	InvoiceID   string          `json:"invoice_id" validate:"required"`
	AmountCents decimal.Decimal `json:"amount_cents" validate:"required"`
	Reason      string          `json:"reason"`
}

type InvoiceResponse struct {
	*invoice.Invoice
}

// ListInvoicesResponse represents the response for listing invoices
type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]

func (r *FinalizeInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.PeriodStart != nil && r.PeriodEnd != nil && !r.PeriodEnd.After(*r.PeriodStart) {
		return ierr.NewError("period_end must be after period_start").
			WithHint("Billing period must span a non-empty window").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *IssueRefundRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if !r.AmountCents.IsPositive() {
		return ierr.NewError("amount_cents must be positive").
			WithHint("Refund amount must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	return nil
}
