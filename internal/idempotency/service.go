package idempotency

import (
	"context"
	"time"

	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/logger"
)

// CheckResult is the outcome of a check-and-reserve
type CheckResult struct {
	// Fresh is true when this caller won the reservation and must proceed
	// with the operation
	Fresh bool
	// Cached is the original outcome when the key was seen before and the
	// operation completed. Nil while a concurrent duplicate is in flight.
	Cached *Record
	// InFlight is true when the key is reserved but not yet completed by
	// another caller
	InFlight bool
}

// Service provides check-and-reserve idempotency over a Store.
//
// Expiry after processing is safe because the underlying operations are
// idempotent by natural key (subscription+period, provider event id); the
// TTL only bounds how long cached results are replayed verbatim.
type Service struct {
	store  Store
	ttl    time.Duration
	logger *logger.Logger
}

func NewService(store Store, cfg *config.Configuration, logger *logger.Logger) *Service {
	return &Service{
		store:  store,
		ttl:    cfg.Idempotency.TTL,
		logger: logger,
	}
}

// CheckAndReserve atomically claims the scope key. The first caller observes
// Fresh and proceeds; later callers get the cached result, or InFlight if
// the first attempt has not completed yet.
func (s *Service) CheckAndReserve(ctx context.Context, scopeKey string) (*CheckResult, error) {
	if record, found, err := s.store.Get(ctx, scopeKey); err != nil {
		return nil, err
	} else if found {
		return &CheckResult{Cached: record}, nil
	}

	reserved, err := s.store.Reserve(ctx, scopeKey, s.ttl)
	if err != nil {
		return nil, err
	}
	if reserved {
		return &CheckResult{Fresh: true}, nil
	}

	// lost the race; the winner may have completed in the meantime
	if record, found, err := s.store.Get(ctx, scopeKey); err != nil {
		return nil, err
	} else if found {
		return &CheckResult{Cached: record}, nil
	}

	return &CheckResult{InFlight: true}, nil
}

// StoreResult records the outcome for replay of later duplicates
func (s *Service) StoreResult(ctx context.Context, scopeKey string, statusCode int, result []byte) error {
	record := &Record{
		Key:         scopeKey,
		StatusCode:  statusCode,
		Result:      result,
		CompletedAt: time.Now().UTC(),
	}
	return s.store.Complete(ctx, scopeKey, record, s.ttl)
}

// Release frees the reservation after a failed operation so the caller's
// retry re-executes instead of being replayed a failure
func (s *Service) Release(ctx context.Context, scopeKey string) {
	if err := s.store.Release(ctx, scopeKey); err != nil {
		s.logger.Errorw("failed to release idempotency reservation",
			"error", err,
			"scope_key", scopeKey,
		)
	}
}
