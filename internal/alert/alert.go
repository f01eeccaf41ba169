package alert

import (
	"context"

	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/types"
)

// Type classifies an operational alert raised by the billing core
type Type string

const (
	// TypeReconciliation marks a provider payment that cannot be matched to
	// a local invoice, or a locally finalized invoice with no payment
	TypeReconciliation Type = "reconciliation"
	// TypeAmountDiscrepancy marks a payment whose amount does not match the
	// invoice total
	TypeAmountDiscrepancy Type = "amount_discrepancy"
	// TypeLedgerDiscrepancy marks a fatal ledger balance mismatch
	TypeLedgerDiscrepancy Type = "ledger_discrepancy"
	// TypeUnknownWebhookEvent marks an accepted but unprocessed provider
	// event type, recorded for triage
	TypeUnknownWebhookEvent Type = "unknown_webhook_event"
)

// Alert is a structured operational alert. Discrepancies are surfaced,
// never auto-corrected.
type Alert struct {
	ID      string         `json:"id"`
	Type    Type           `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Sink receives alerts. The production sink forwards to the notification
// collaborator; tests capture alerts in memory.
type Sink interface {
	Raise(ctx context.Context, a Alert)
}

// LogSink writes alerts to the structured log
type LogSink struct {
	logger *logger.Logger
}

func NewLogSink(logger *logger.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Raise(ctx context.Context, a Alert) {
	if a.ID == "" {
		a.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ALERT)
	}
	s.logger.WithContext(ctx).Errorw("billing alert raised",
		"alert_id", a.ID,
		"alert_type", a.Type,
		"message", a.Message,
		"details", a.Details,
	)
}
