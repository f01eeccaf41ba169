package service

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/alert"
	"github.com/shopspring/decimal"
)

// ReconciliationService is the scheduled batch cross-check over a time
// window: every invoice finalized in the window should have been paid or
// deliberately closed, and every touched customer's ledger balance should
// match their outstanding invoices. Findings are reported, never corrected.
type ReconciliationService interface {
	// Run reconciles the window ending now and returns a summary
	Run(ctx context.Context, window time.Duration) (*ReconciliationReport, error)
}

// ReconciliationReport summarizes one batch run
type ReconciliationReport struct {
	WindowStart       time.Time `json:"window_start"`
	WindowEnd         time.Time `json:"window_end"`
	InvoicesChecked   int       `json:"invoices_checked"`
	UnpaidInvoices    int       `json:"unpaid_invoices"`
	BalanceMismatches int       `json:"balance_mismatches"`
}

type reconciliationService struct {
	ServiceParams
}

func NewReconciliationService(params ServiceParams) ReconciliationService {
	return &reconciliationService{
		ServiceParams: params,
	}
}

func (s *reconciliationService) Run(ctx context.Context, window time.Duration) (*ReconciliationReport, error) {
	end := time.Now().UTC()
	start := end.Add(-window)

	invoices, err := s.InvoiceRepo.ListFinalizedInWindow(ctx, start, end)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		WindowStart:     start,
		WindowEnd:       end,
		InvoicesChecked: len(invoices),
	}

	customers := make(map[string]struct{})
	for _, inv := range invoices {
		customers[inv.CustomerID] = struct{}{}

		if inv.RemainingAmount().IsPositive() {
			report.UnpaidInvoices++
			s.Alerts.Raise(ctx, alert.Alert{
				Type:    alert.TypeReconciliation,
				Message: "finalized invoice has no matching payment",
				Details: map[string]any{
					"invoice_id":      inv.ID,
					"invoice_number":  inv.InvoiceNumber,
					"customer_id":     inv.CustomerID,
					"invoice_status":  inv.InvoiceStatus,
					"remaining_cents": inv.RemainingAmount().String(),
					"finalized_at":    inv.FinalizedAt,
				},
			})
		}
	}

	for customerID := range customers {
		balance, err := s.LedgerRepo.GetBalance(ctx, customerID)
		if err != nil {
			return nil, err
		}

		outstanding, err := s.InvoiceRepo.ListOutstandingByCustomer(ctx, customerID)
		if err != nil {
			return nil, err
		}
		expected := decimal.Zero
		for _, inv := range outstanding {
			expected = expected.Add(inv.RemainingAmount())
		}

		if !balance.Equal(expected) {
			report.BalanceMismatches++
			s.Alerts.Raise(ctx, alert.Alert{
				Type:    alert.TypeLedgerDiscrepancy,
				Message: "ledger balance does not match outstanding invoices",
				Details: map[string]any{
					"customer_id":   customerID,
					"balance_cents": balance.String(),
					"open_total":    expected.String(),
				},
			})
		}
	}

	s.Logger.Infow("reconciliation run complete",
		"window_start", start,
		"window_end", end,
		"invoices_checked", report.InvoicesChecked,
		"unpaid_invoices", report.UnpaidInvoices,
		"balance_mismatches", report.BalanceMismatches,
	)

	return report, nil
}
