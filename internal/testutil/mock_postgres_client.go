package testutil

import (
	"context"

	"github.com/meterline/meterline/internal/postgres"
)

// MockPostgresClient satisfies postgres.IClient for service tests backed by
// in-memory stores. Transactions degrade to plain function calls; the fakes
// have no rollback, so tests asserting partial-failure behavior must arrange
// failures before any write.
type MockPostgresClient struct{}

func NewMockPostgresClient() *MockPostgresClient {
	return &MockPostgresClient{}
}

func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (c *MockPostgresClient) Querier(ctx context.Context) postgres.Querier {
	panic("in-memory tests must not touch the sql querier")
}
