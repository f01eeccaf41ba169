package types

import (
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus represents the current state of an invoice in its lifecycle.
// Transitions: draft -> open -> {paid, void, uncollectible}.
type InvoiceStatus string

const (
	// InvoiceStatusDraft indicates the invoice is being assembled and has not
	// been booked against the ledger yet
	InvoiceStatusDraft InvoiceStatus = "draft"
	// InvoiceStatusOpen indicates the invoice is finalized locally, a ledger
	// debit exists, and payment is awaited
	InvoiceStatusOpen InvoiceStatus = "open"
	// InvoiceStatusPaid indicates payment was matched against the invoice
	InvoiceStatusPaid InvoiceStatus = "paid"
	// InvoiceStatusVoid indicates the invoice was voided and is no longer collectible
	InvoiceStatusVoid InvoiceStatus = "void"
	// InvoiceStatusUncollectible indicates the invoice was written off, e.g. after a chargeback
	InvoiceStatusUncollectible InvoiceStatus = "uncollectible"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusOpen,
		InvoiceStatusPaid,
		InvoiceStatusVoid,
		InvoiceStatusUncollectible,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CanTransitionTo reports whether the state machine allows moving to target.
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	switch s {
	case InvoiceStatusDraft:
		return target == InvoiceStatusOpen || target == InvoiceStatusVoid
	case InvoiceStatusOpen:
		return target == InvoiceStatusPaid ||
			target == InvoiceStatusVoid ||
			target == InvoiceStatusUncollectible
	case InvoiceStatusPaid:
		// a paid invoice may be charged back or fully refunded
		return target == InvoiceStatusUncollectible || target == InvoiceStatusVoid
	case InvoiceStatusUncollectible:
		// dispute won restores the invoice
		return target == InvoiceStatusPaid
	default:
		return false
	}
}

// LineItemType categorizes an invoice line item
type LineItemType string

const (
	LineItemTypeSubscription LineItemType = "subscription"
	LineItemTypeUsage        LineItemType = "usage"
	LineItemTypeCredit       LineItemType = "credit"
	LineItemTypeRefund       LineItemType = "refund"
	LineItemTypeAdjustment   LineItemType = "adjustment"
)

func (t LineItemType) String() string {
	return string(t)
}

func (t LineItemType) Validate() error {
	allowed := []LineItemType{
		LineItemTypeSubscription,
		LineItemTypeUsage,
		LineItemTypeCredit,
		LineItemTypeRefund,
		LineItemTypeAdjustment,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid line item type").
			WithHint("Please provide a valid line item type").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// AllowsNegativeAmount reports whether the line item type may carry a
// negative amount. Usage and subscription items must be positive.
func (t LineItemType) AllowsNegativeAmount() bool {
	return t == LineItemTypeCredit || t == LineItemTypeRefund || t == LineItemTypeAdjustment
}
