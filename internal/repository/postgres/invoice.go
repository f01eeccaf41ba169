package postgres

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/domain/invoice"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/types"
)

type invoiceRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewInvoiceRepository(client postgres.IClient, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{client: client, logger: logger}
}

const invoiceColumns = `id, invoice_number, customer_id, subscription_id, invoice_status,
	currency, total_cents, amount_paid_cents, period_start, period_end,
	provider_invoice_id, idempotency_key, finalized_at, paid_at, voided_at,
	metadata, version,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

const lineItemColumns = `id, invoice_id, type, description, metric, currency,
	quantity, unit_price_cents, amount_cents, capped, original_amount_cents, metadata,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *invoiceRepository) CreateWithLineItems(ctx context.Context, inv *invoice.Invoice) error {
	return r.client.WithTx(ctx, func(txCtx context.Context) error {
		query := `
			INSERT INTO invoices (` + invoiceColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, $23)`

		_, err := r.client.Querier(txCtx).ExecContext(txCtx, query,
			inv.ID, inv.InvoiceNumber, inv.CustomerID, inv.SubscriptionID, inv.InvoiceStatus,
			inv.Currency, inv.TotalCents, inv.AmountPaid, inv.PeriodStart, inv.PeriodEnd,
			inv.ProviderInvoiceID, inv.IdempotencyKey, inv.FinalizedAt, inv.PaidAt, inv.VoidedAt,
			inv.Metadata, inv.Version,
			inv.TenantID, inv.Status, inv.CreatedAt, inv.UpdatedAt, inv.CreatedBy, inv.UpdatedBy,
		)
		if err != nil {
			return wrapWrite(err, "invoice")
		}

		for _, item := range inv.LineItems {
			if err := r.AddLineItem(txCtx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *invoiceRepository) AddLineItem(ctx context.Context, item *invoice.LineItem) error {
	query := `
		INSERT INTO invoice_line_items (` + lineItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18)`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		item.ID, item.InvoiceID, item.Type, item.Description, item.Metric, item.Currency,
		item.Quantity, item.UnitPriceCents, item.AmountCents, item.Capped, item.OriginalAmountCents, item.Metadata,
		item.TenantID, item.Status, item.CreatedAt, item.UpdatedAt, item.CreatedBy, item.UpdatedBy,
	)
	if err != nil {
		return wrapWrite(err, "invoice line item")
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	var inv invoice.Invoice
	if err := r.client.Querier(ctx).GetContext(ctx, &inv, query, id); err != nil {
		return nil, wrapNotFound(err, "invoice", id)
	}
	if err := r.loadLineItems(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) GetByPeriod(ctx context.Context, subscriptionID string, periodStart time.Time) (*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE subscription_id = $1 AND period_start = $2 AND invoice_status != $3
		ORDER BY created_at DESC
		LIMIT 1`

	var inv invoice.Invoice
	if err := r.client.Querier(ctx).GetContext(ctx, &inv, query,
		subscriptionID, periodStart, types.InvoiceStatusVoid); err != nil {
		return nil, wrapNotFound(err, "invoice", subscriptionID)
	}
	if err := r.loadLineItems(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) GetByProviderInvoiceID(ctx context.Context, providerInvoiceID string) (*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices WHERE provider_invoice_id = $1`

	var inv invoice.Invoice
	if err := r.client.Querier(ctx).GetContext(ctx, &inv, query, providerInvoiceID); err != nil {
		return nil, wrapNotFound(err, "invoice", providerInvoiceID)
	}
	if err := r.loadLineItems(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices WHERE metadata->>'provider_payment_id' = $1`

	var inv invoice.Invoice
	if err := r.client.Querier(ctx).GetContext(ctx, &inv, query, providerPaymentID); err != nil {
		return nil, wrapNotFound(err, "invoice", providerPaymentID)
	}
	if err := r.loadLineItems(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Update persists invoice mutations with optimistic concurrency on version
func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	inv.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE invoices
		SET invoice_status = $2, total_cents = $3, amount_paid_cents = $4,
			provider_invoice_id = $5, finalized_at = $6, paid_at = $7, voided_at = $8,
			metadata = $9, version = version + 1, updated_at = $10, updated_by = $11
		WHERE id = $1 AND version = $12`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		inv.ID, inv.InvoiceStatus, inv.TotalCents, inv.AmountPaid,
		inv.ProviderInvoiceID, inv.FinalizedAt, inv.PaidAt, inv.VoidedAt,
		inv.Metadata, inv.UpdatedAt, inv.UpdatedBy, inv.Version,
	)
	if err != nil {
		return wrapWrite(err, "invoice")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return wrapNotFound(errNoRows, "invoice", inv.ID)
	}
	inv.Version++
	return nil
}

func (r *invoiceRepository) List(ctx context.Context, filter *invoice.InvoiceFilter) ([]*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE ($1 = '' OR customer_id = $1)
			AND ($2 = '' OR subscription_id = $2)
			AND ($3 = '' OR invoice_status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`

	invoices := []*invoice.Invoice{}
	if err := r.client.Querier(ctx).SelectContext(ctx, &invoices, query,
		filter.CustomerID, filter.SubscriptionID, string(filter.InvoiceStatus),
		filter.GetLimit(), filter.GetOffset()); err != nil {
		return nil, wrapWrite(err, "invoice")
	}
	return invoices, nil
}

func (r *invoiceRepository) ListFinalizedInWindow(ctx context.Context, start, end time.Time) ([]*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE finalized_at IS NOT NULL AND finalized_at >= $1 AND finalized_at < $2
		ORDER BY finalized_at ASC`

	invoices := []*invoice.Invoice{}
	if err := r.client.Querier(ctx).SelectContext(ctx, &invoices, query, start, end); err != nil {
		return nil, wrapWrite(err, "invoice")
	}
	return invoices, nil
}

func (r *invoiceRepository) ListOutstandingByCustomer(ctx context.Context, customerID string) ([]*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE customer_id = $1 AND invoice_status IN ($2, $3)
		ORDER BY created_at ASC`

	invoices := []*invoice.Invoice{}
	if err := r.client.Querier(ctx).SelectContext(ctx, &invoices, query,
		customerID, types.InvoiceStatusOpen, types.InvoiceStatusUncollectible); err != nil {
		return nil, wrapWrite(err, "invoice")
	}
	return invoices, nil
}

func (r *invoiceRepository) loadLineItems(ctx context.Context, inv *invoice.Invoice) error {
	query := `SELECT ` + lineItemColumns + `
		FROM invoice_line_items WHERE invoice_id = $1
		ORDER BY created_at ASC, id ASC`

	items := []*invoice.LineItem{}
	if err := r.client.Querier(ctx).SelectContext(ctx, &items, query, inv.ID); err != nil {
		return wrapWrite(err, "invoice line item")
	}
	inv.LineItems = items
	return nil
}
