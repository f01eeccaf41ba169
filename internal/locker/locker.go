package locker

import (
	"fmt"
	"sync"
)

// KeyedLocker serializes work per key while letting distinct keys proceed
// fully in parallel. Financial mutations for the same customer or the same
// subscription+period funnel through the same key; there is no global lock.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *KeyedLocker {
	return &KeyedLocker{
		locks: make(map[string]*entry),
	}
}

// Lock acquires the exclusive lock for the key, blocking until available.
// The returned function releases it.
func (l *KeyedLocker) Lock(key string) func() {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// CustomerKey is the serialization key for ledger writes
func CustomerKey(customerID string) string {
	return fmt.Sprintf("customer:%s", customerID)
}

// PeriodKey is the serialization key for invoice finalization
func PeriodKey(subscriptionID string, periodStartUnix int64) string {
	return fmt.Sprintf("period:%s:%d", subscriptionID, periodStartUnix)
}
