package middleware

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/idempotency"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/types"
)

type bodyCapture struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays mutating requests carrying an X-Idempotency-Key header.
// The first request with a given key executes and its response is cached;
// duplicates get the cached response back with the same status code. Keys are
// scoped per tenant so different tenants can never collide.
func Idempotency(svc *idempotency.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(types.HeaderIdempotencyKey)
		if key == "" || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		scopeKey := idempotency.ScopedKey(idempotency.ScopeAPIRequest,
			fmt.Sprintf("%s:%s %s:%s", types.GetTenantID(ctx), c.Request.Method, c.FullPath(), key))

		check, err := svc.CheckAndReserve(ctx, scopeKey)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		if check.Cached != nil {
			c.Data(check.Cached.StatusCode, "application/json", check.Cached.Result)
			c.Abort()
			return
		}

		if check.InFlight {
			c.Error(ierr.NewError("duplicate request in flight").
				WithHint("A request with this idempotency key is still being processed").
				Mark(ierr.ErrInvalidOperation))
			c.Abort()
			return
		}

		capture := &bodyCapture{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = capture

		c.Next()

		status := c.Writer.Status()
		if len(c.Errors) > 0 || status >= http.StatusInternalServerError {
			// server-side failures must re-execute on retry
			svc.Release(ctx, scopeKey)
			return
		}

		if err := svc.StoreResult(ctx, scopeKey, status, capture.body.Bytes()); err != nil {
			log.Errorw("failed to cache idempotent response",
				"error", err,
				"scope_key", scopeKey,
			)
		}
	}
}
