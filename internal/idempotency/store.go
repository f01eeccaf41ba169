package idempotency

import (
	"context"
	"time"

	goCache "github.com/patrickmn/go-cache"
)

// Record is the stored outcome of a completed operation. A replayed request
// gets the original result back byte for byte.
type Record struct {
	Key         string    `json:"key"`
	StatusCode  int       `json:"status_code"`
	Result      []byte    `json:"result"`
	CompletedAt time.Time `json:"completed_at"`
}

// reservation marks a key as in flight before its result exists
type reservation struct{}

// Store is a key-value store abstraction with atomic check-and-set
// semantics and TTL expiry. Any store with compare-and-set support can back
// it; this implementation uses an in-process cache.
type Store interface {
	// Reserve atomically claims the key. Returns false if the key is
	// already reserved or completed.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Get returns the completed record for the key, if any
	Get(ctx context.Context, key string) (*Record, bool, error)

	// Complete stores the result under a previously reserved key
	Complete(ctx context.Context, key string, record *Record, ttl time.Duration) error

	// Release frees a reservation whose operation failed, so a retry can
	// run the operation again
	Release(ctx context.Context, key string) error
}

// CacheStore implements Store on github.com/patrickmn/go-cache. The cache's
// Add operation is the compare-and-set: it fails if the key exists, so two
// concurrent duplicate deliveries cannot both observe "fresh".
type CacheStore struct {
	cache *goCache.Cache
}

const cleanupInterval = 1 * time.Hour

// NewCacheStore creates a new in-process idempotency store
func NewCacheStore(defaultTTL time.Duration) *CacheStore {
	return &CacheStore{
		cache: goCache.New(defaultTTL, cleanupInterval),
	}
}

func (s *CacheStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if err := s.cache.Add(key, reservation{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *CacheStore) Get(_ context.Context, key string) (*Record, bool, error) {
	value, found := s.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	record, ok := value.(*Record)
	if !ok {
		// key is reserved but the operation has not completed yet
		return nil, false, nil
	}
	return record, true, nil
}

func (s *CacheStore) Complete(_ context.Context, key string, record *Record, ttl time.Duration) error {
	s.cache.Set(key, record, ttl)
	return nil
}

func (s *CacheStore) Release(_ context.Context, key string) error {
	// only release reservations, never completed records
	if value, found := s.cache.Get(key); found {
		if _, reserved := value.(reservation); reserved {
			s.cache.Delete(key)
		}
	}
	return nil
}
