package postgres

import (
	"context"

	"github.com/meterline/meterline/internal/domain/ledger"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/types"
	"github.com/shopspring/decimal"
)

// ledgerRepository is insert-and-select only. There is no UPDATE or DELETE
// statement in this file and the migration installs a trigger rejecting both,
// so immutability holds even against direct SQL.
type ledgerRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewLedgerRepository(client postgres.IClient, logger *logger.Logger) ledger.Repository {
	return &ledgerRepository{client: client, logger: logger}
}

const ledgerColumns = `id, customer_id, invoice_id, entry_type, debit_cents, credit_cents,
	currency, ref_type, ref_id, description, metadata,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *ledgerRepository) Insert(ctx context.Context, e *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		e.ID, e.CustomerID, e.InvoiceID, e.EntryType, e.DebitCents, e.CreditCents,
		e.Currency, e.RefType, e.RefID, e.Description, e.Metadata,
		e.TenantID, e.Status, e.CreatedAt, e.UpdatedAt, e.CreatedBy, e.UpdatedBy,
	)
	if err != nil {
		return wrapWrite(err, "ledger entry")
	}
	return nil
}

func (r *ledgerRepository) Get(ctx context.Context, id string) (*ledger.Entry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE id = $1`

	var e ledger.Entry
	if err := r.client.Querier(ctx).GetContext(ctx, &e, query, id); err != nil {
		return nil, wrapNotFound(err, "ledger entry", id)
	}
	return &e, nil
}

func (r *ledgerRepository) GetBalance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(debit_cents) - SUM(credit_cents), 0)
		FROM ledger_entries WHERE customer_id = $1`

	var balance decimal.Decimal
	if err := r.client.Querier(ctx).GetContext(ctx, &balance, query, customerID); err != nil {
		return decimal.Zero, wrapWrite(err, "ledger entry")
	}
	return balance, nil
}

func (r *ledgerRepository) ExistsByRef(ctx context.Context, refType types.LedgerRefType, refID string, entryType types.LedgerEntryType) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM ledger_entries
			WHERE ref_type = $1 AND ref_id = $2 AND entry_type = $3
		)`

	var exists bool
	if err := r.client.Querier(ctx).GetContext(ctx, &exists, query, refType, refID, entryType); err != nil {
		return false, wrapWrite(err, "ledger entry")
	}
	return exists, nil
}

func (r *ledgerRepository) ListByCustomer(ctx context.Context, customerID string, filter *types.Filter) ([]*ledger.Entry, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE customer_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`

	entries := []*ledger.Entry{}
	if err := r.client.Querier(ctx).SelectContext(ctx, &entries, query,
		customerID, filter.GetLimit(), filter.GetOffset()); err != nil {
		return nil, wrapWrite(err, "ledger entry")
	}
	return entries, nil
}
