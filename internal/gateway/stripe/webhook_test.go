package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meterline/meterline/internal/config"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/types"
)

const testWebhookSecret = "whsec_test_secret"

func newTestAdapter(t *testing.T) *Adapter {
	cfg := config.GetDefaultConfig()
	cfg.Gateway.WebhookSecret = testWebhookSecret
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)
	return NewAdapter(cfg, log)
}

// signPayload produces a Stripe-Signature header the way Stripe signs
// deliveries: v1 is an HMAC-SHA256 over "<timestamp>.<payload>"
func signPayload(payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(eventType string, created time.Time, object string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"evt_test_1","type":%q,"created":%d,"data":{"object":%s}}`,
		eventType, created.Unix(), object))
}

func TestVerifyWebhookPaymentSucceeded(t *testing.T) {
	adapter := newTestAdapter(t)
	now := time.Now()

	payload := eventPayload("invoice.payment_succeeded", now,
		`{"id":"in_1","customer":"cus_1","payment_intent":"pi_1","amount_paid":10400,"currency":"usd"}`)

	event, err := adapter.VerifyWebhook(context.Background(), payload, signPayload(payload, now))
	require.NoError(t, err)
	assert.Equal(t, types.PaymentEventTypePaymentSucceeded, event.Type)
	assert.Equal(t, "evt_test_1", event.ProviderEventID)
	require.NotNil(t, event.Payment)
	assert.Equal(t, "pi_1", event.Payment.ProviderPaymentID)
	assert.Equal(t, "in_1", event.Payment.ProviderInvoiceID)
	assert.Equal(t, "cus_1", event.Payment.ProviderCustomerID)
	assert.True(t, event.Payment.AmountCents.Equal(decimal.NewFromInt(10_400)))
}

func TestVerifyWebhookPaymentFailed(t *testing.T) {
	adapter := newTestAdapter(t)
	now := time.Now()

	payload := eventPayload("invoice.payment_failed", now,
		`{"id":"in_1","customer":"cus_1","payment_intent":"pi_1","amount_due":10400,"currency":"usd","last_finalization_error":{"message":"card_declined"}}`)

	event, err := adapter.VerifyWebhook(context.Background(), payload, signPayload(payload, now))
	require.NoError(t, err)
	assert.Equal(t, types.PaymentEventTypePaymentFailed, event.Type)
	assert.True(t, event.Payment.AmountCents.Equal(decimal.NewFromInt(10_400)))
	assert.Equal(t, "card_declined", event.Payment.FailureReason)
}

func TestVerifyWebhookChargeRefunded(t *testing.T) {
	adapter := newTestAdapter(t)
	now := time.Now()

	payload := eventPayload("charge.refunded", now,
		`{"id":"ch_1","payment_intent":"pi_1","invoice":"in_1","amount_refunded":2000,"currency":"usd","refunds":{"data":[{"id":"re_1","amount":2000}]}}`)

	event, err := adapter.VerifyWebhook(context.Background(), payload, signPayload(payload, now))
	require.NoError(t, err)
	assert.Equal(t, types.PaymentEventTypeRefundSucceeded, event.Type)
	require.NotNil(t, event.Refund)
	assert.Equal(t, "re_1", event.Refund.ProviderRefundID)
	assert.Equal(t, "pi_1", event.Refund.ProviderPaymentID)
	assert.True(t, event.Refund.AmountCents.Equal(decimal.NewFromInt(2_000)))
}

func TestVerifyWebhookDisputeCreated(t *testing.T) {
	adapter := newTestAdapter(t)
	now := time.Now()

	payload := eventPayload("charge.dispute.created", now,
		`{"id":"dp_1","charge":"ch_1","payment_intent":"pi_1","amount":10400,"currency":"usd","status":"needs_response"}`)

	event, err := adapter.VerifyWebhook(context.Background(), payload, signPayload(payload, now))
	require.NoError(t, err)
	assert.Equal(t, types.PaymentEventTypeChargebackOpened, event.Type)
	require.NotNil(t, event.Dispute)
	assert.Equal(t, "dp_1", event.Dispute.ProviderDisputeID)
	assert.Equal(t, "pi_1", event.Dispute.ProviderPaymentID)
}

func TestVerifyWebhookDisputeClosedWon(t *testing.T) {
	adapter := newTestAdapter(t)
	now := time.Now()

	payload := eventPayload("charge.dispute.closed", now,
		`{"id":"dp_1","charge":"ch_1","payment_intent":"pi_1","amount":10400,"currency":"usd","status":"won"}`)

	event, err := adapter.VerifyWebhook(context.Background(), payload, signPayload(payload, now))
	require.NoError(t, err)
	assert.Equal(t, types.PaymentEventTypeDisputeClosed, event.Type)
	assert.Equal(t, types.DisputeOutcomeWon, event.Dispute.Outcome)
}

func TestVerifyWebhookUnknownEventType(t *testing.T) {
	adapter := newTestAdapter(t)
	now := time.Now()

	payload := eventPayload("customer.created", now, `{"id":"cus_1"}`)

	event, err := adapter.VerifyWebhook(context.Background(), payload, signPayload(payload, now))
	require.NoError(t, err)
	assert.Equal(t, types.PaymentEventTypeUnknown, event.Type)
}

func TestVerifyWebhookBadSignature(t *testing.T) {
	adapter := newTestAdapter(t)
	now := time.Now()

	payload := eventPayload("invoice.payment_succeeded", now, `{"id":"in_1"}`)

	_, err := adapter.VerifyWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	require.Error(t, err)
	assert.True(t, ierr.IsSignatureInvalid(err))
}

func TestVerifyWebhookTamperedPayload(t *testing.T) {
	adapter := newTestAdapter(t)
	now := time.Now()

	payload := eventPayload("invoice.payment_succeeded", now,
		`{"id":"in_1","amount_paid":10400}`)
	signature := signPayload(payload, now)

	tampered := eventPayload("invoice.payment_succeeded", now,
		`{"id":"in_1","amount_paid":1}`)

	_, err := adapter.VerifyWebhook(context.Background(), tampered, signature)
	require.Error(t, err)
	assert.True(t, ierr.IsSignatureInvalid(err))
}

func TestVerifyWebhookOutsideReplayWindow(t *testing.T) {
	adapter := newTestAdapter(t)
	now := time.Now()

	// the signature is fresh but the event itself is stale
	payload := eventPayload("invoice.payment_succeeded", now.Add(-time.Hour),
		`{"id":"in_1","customer":"cus_1","payment_intent":"pi_1","amount_paid":10400,"currency":"usd"}`)

	_, err := adapter.VerifyWebhook(context.Background(), payload, signPayload(payload, now))
	require.Error(t, err)
	assert.True(t, ierr.IsSignatureInvalid(err))
}
