package dto

import (
	"github.com/meterline/meterline/internal/domain/ledger"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
)

type LedgerEntryResponse struct {
	*ledger.Entry
}

// ListLedgerResponse represents the response for listing ledger entries
type ListLedgerResponse = types.ListResponse[*LedgerEntryResponse]

// BalanceResponse is sum(debit) - sum(credit) over the customer's ledger
type BalanceResponse struct {
	CustomerID   string          `json:"customer_id"`
	BalanceCents decimal.Decimal `json:"balance_cents"`
}
