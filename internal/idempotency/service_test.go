package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/logger"
)

func newTestService(t *testing.T) *Service {
	cfg := config.GetDefaultConfig()
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)
	return NewService(NewCacheStore(time.Minute), cfg, log)
}

func TestCheckAndReserveFresh(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	check, err := svc.CheckAndReserve(ctx, "scope:key_1")
	require.NoError(t, err)
	assert.True(t, check.Fresh)
	assert.Nil(t, check.Cached)
	assert.False(t, check.InFlight)
}

func TestCheckAndReserveInFlight(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.CheckAndReserve(ctx, "scope:key_1")
	require.NoError(t, err)
	require.True(t, first.Fresh)

	// the winner has not stored a result yet
	second, err := svc.CheckAndReserve(ctx, "scope:key_1")
	require.NoError(t, err)
	assert.False(t, second.Fresh)
	assert.True(t, second.InFlight)
}

func TestCheckAndReserveCached(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.CheckAndReserve(ctx, "scope:key_1")
	require.NoError(t, err)
	require.True(t, first.Fresh)

	require.NoError(t, svc.StoreResult(ctx, "scope:key_1", 201, []byte(`{"id":"inv_1"}`)))

	second, err := svc.CheckAndReserve(ctx, "scope:key_1")
	require.NoError(t, err)
	assert.False(t, second.Fresh)
	require.NotNil(t, second.Cached)
	assert.Equal(t, 201, second.Cached.StatusCode)
	assert.Equal(t, []byte(`{"id":"inv_1"}`), second.Cached.Result)
}

func TestReleaseAllowsRetry(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.CheckAndReserve(ctx, "scope:key_1")
	require.NoError(t, err)
	require.True(t, first.Fresh)

	// the operation failed, the reservation is freed
	svc.Release(ctx, "scope:key_1")

	retry, err := svc.CheckAndReserve(ctx, "scope:key_1")
	require.NoError(t, err)
	assert.True(t, retry.Fresh)
}

func TestReleaseKeepsCompletedRecord(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CheckAndReserve(ctx, "scope:key_1")
	require.NoError(t, err)
	require.NoError(t, svc.StoreResult(ctx, "scope:key_1", 200, []byte("done")))

	// a stray release must not drop the stored outcome
	svc.Release(ctx, "scope:key_1")

	check, err := svc.CheckAndReserve(ctx, "scope:key_1")
	require.NoError(t, err)
	require.NotNil(t, check.Cached)
	assert.Equal(t, []byte("done"), check.Cached.Result)
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			check, err := svc.CheckAndReserve(ctx, "scope:key_1")
			assert.NoError(t, err)
			if check.Fresh {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fresh.Load())
}

func TestGenerateKeyDeterministic(t *testing.T) {
	gen := NewGenerator()

	a := gen.GenerateKey(ScopeInvoiceFinalize, map[string]interface{}{
		"subscription_id": "subs_1",
		"period_start":    int64(1700000000),
	})
	b := gen.GenerateKey(ScopeInvoiceFinalize, map[string]interface{}{
		"period_start":    int64(1700000000),
		"subscription_id": "subs_1",
	})
	assert.Equal(t, a, b)

	c := gen.GenerateKey(ScopeInvoiceFinalize, map[string]interface{}{
		"subscription_id": "subs_2",
		"period_start":    int64(1700000000),
	})
	assert.NotEqual(t, a, c)
}

func TestScopedKeySeparatesScopes(t *testing.T) {
	assert.NotEqual(t,
		ScopedKey(ScopeWebhook, "evt_1"),
		ScopedKey(ScopeAPIRequest, "evt_1"),
	)
}
