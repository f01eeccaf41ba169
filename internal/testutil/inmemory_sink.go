package testutil

import (
	"context"
	"sync"

	"github.com/meterline/meterline/internal/alert"
)

// InMemorySink captures alerts for assertions
type InMemorySink struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

func (s *InMemorySink) Raise(ctx context.Context, a alert.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
}

// Alerts returns all captured alerts
func (s *InMemorySink) Alerts() []alert.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]alert.Alert{}, s.alerts...)
}

// AlertsOfType returns captured alerts of the given type
func (s *InMemorySink) AlertsOfType(t alert.Type) []alert.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []alert.Alert
	for _, a := range s.alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// Clear drops captured alerts
func (s *InMemorySink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = nil
}
