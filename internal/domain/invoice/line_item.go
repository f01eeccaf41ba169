package invoice

import (
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
)

// LineItem is a single priced line on an invoice. Usage and subscription
// items require positive quantity and amount; credit, refund and adjustment
// items may be negative.
type LineItem struct {
	ID          string          `db:"id" json:"id"`
	InvoiceID   string          `db:"invoice_id" json:"invoice_id"`
	Type        types.LineItemType `db:"type" json:"type"`
	Description string          `db:"description" json:"description"`
	Metric      string          `db:"metric" json:"metric,omitempty"`
	Currency    string          `db:"currency" json:"currency"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	// UnitPriceCents is display-only for tiered pricing; AmountCents is
	// always authoritative
	UnitPriceCents decimal.Decimal `db:"unit_price_cents" json:"unit_price_cents"`
	AmountCents    decimal.Decimal `db:"amount_cents" json:"amount_cents"`
	// Capped marks a usage line scaled down by the plan's max usage cap;
	// the pre-cap amount is preserved in OriginalAmountCents
	Capped              bool             `db:"capped" json:"capped"`
	OriginalAmountCents *decimal.Decimal `db:"original_amount_cents" json:"original_amount_cents,omitempty"`
	Metadata            types.Metadata   `db:"metadata" json:"metadata,omitempty"`
	types.BaseModel
}

func (li *LineItem) Validate() error {
	if err := li.Type.Validate(); err != nil {
		return err
	}

	if !li.Type.AllowsNegativeAmount() {
		if !li.Quantity.IsPositive() {
			return ierr.NewError("quantity must be positive").
				WithHintf("%s line items require a positive quantity", li.Type).
				WithReportableDetails(map[string]any{
					"type":     li.Type,
					"quantity": li.Quantity.String(),
				}).
				Mark(ierr.ErrValidation)
		}
		if li.AmountCents.IsNegative() {
			return ierr.NewError("amount_cents must be non-negative").
				WithHintf("%s line items cannot be negative", li.Type).
				Mark(ierr.ErrValidation)
		}
	}

	return nil
}
