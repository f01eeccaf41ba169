package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/types"
	"github.com/meterline/meterline/internal/webhook"
)

// signatureHeaders maps each provider to the header carrying its webhook
// signature.
var signatureHeaders = map[types.PaymentProvider]string{
	types.PaymentProviderStripe: "Stripe-Signature",
}

type WebhookHandler struct {
	ingress webhook.IngressService
	log     *logger.Logger
}

func NewWebhookHandler(ingress webhook.IngressService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{ingress: ingress, log: log}
}

// @Summary Receive a provider webhook
// @Description Verify, deduplicate and enqueue a payment provider webhook.
// Processing is asynchronous; the provider gets an immediate acknowledgement.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param provider path string true "Payment provider"
// @Success 200 {object} webhook.IngressResult
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /webhooks/{provider} [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	provider := types.PaymentProvider(c.Param("provider"))
	if err := provider.Validate(); err != nil {
		c.Error(err)
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read webhook payload").
			Mark(ierr.ErrValidation))
		return
	}

	signature := c.GetHeader(signatureHeaders[provider])

	result, err := h.ingress.HandleInbound(c.Request.Context(), provider, payload, signature)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
