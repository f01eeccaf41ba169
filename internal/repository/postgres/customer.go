package postgres

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/domain/customer"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/postgres"
	"github.com/meterline/meterline/internal/types"
)

type customerRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewCustomerRepository(client postgres.IClient, logger *logger.Logger) customer.Repository {
	return &customerRepository{client: client, logger: logger}
}

const customerColumns = `id, external_id, name, email, provider, provider_customer_id, metadata,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func (r *customerRepository) Create(ctx context.Context, c *customer.Customer) error {
	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		c.ID, c.ExternalID, c.Name, c.Email, c.Provider, c.ProviderCustomerID, c.Metadata,
		c.TenantID, c.Status, c.CreatedAt, c.UpdatedAt, c.CreatedBy, c.UpdatedBy,
	)
	if err != nil {
		return wrapWrite(err, "customer")
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id string) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 AND status != $2`

	var c customer.Customer
	if err := r.client.Querier(ctx).GetContext(ctx, &c, query, id, types.StatusDeleted); err != nil {
		return nil, wrapNotFound(err, "customer", id)
	}
	return &c, nil
}

func (r *customerRepository) GetByExternalID(ctx context.Context, externalID string, provider types.PaymentProvider) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + `
		FROM customers WHERE external_id = $1 AND provider = $2 AND status != $3`

	var c customer.Customer
	if err := r.client.Querier(ctx).GetContext(ctx, &c, query, externalID, provider, types.StatusDeleted); err != nil {
		return nil, wrapNotFound(err, "customer", externalID)
	}
	return &c, nil
}

func (r *customerRepository) GetByProviderCustomerID(ctx context.Context, providerCustomerID string) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + `
		FROM customers WHERE provider_customer_id = $1 AND status != $2`

	var c customer.Customer
	if err := r.client.Querier(ctx).GetContext(ctx, &c, query, providerCustomerID, types.StatusDeleted); err != nil {
		return nil, wrapNotFound(err, "customer", providerCustomerID)
	}
	return &c, nil
}

func (r *customerRepository) List(ctx context.Context, filter *types.Filter) ([]*customer.Customer, error) {
	query := `SELECT ` + customerColumns + `
		FROM customers WHERE status != $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	customers := []*customer.Customer{}
	if err := r.client.Querier(ctx).SelectContext(ctx, &customers, query,
		types.StatusDeleted, filter.GetLimit(), filter.GetOffset()); err != nil {
		return nil, wrapWrite(err, "customer")
	}
	return customers, nil
}

func (r *customerRepository) Update(ctx context.Context, c *customer.Customer) error {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE customers
		SET name = $2, email = $3, provider_customer_id = $4, metadata = $5,
			status = $6, updated_at = $7, updated_by = $8
		WHERE id = $1`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		c.ID, c.Name, c.Email, c.ProviderCustomerID, c.Metadata,
		c.Status, c.UpdatedAt, c.UpdatedBy,
	)
	if err != nil {
		return wrapWrite(err, "customer")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return wrapNotFound(errNoRows, "customer", c.ID)
	}
	return nil
}
