package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/lettercast/lettercast/internal/billing/domain"
	"github.com/lettercast/lettercast/internal/billing/webhook"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 1 << 20

// HandleStripeWebhook verifies, decodes, and reconciles one provider
// delivery. The signature runs over the raw bytes, so the body is read
// before any parsing. Ignored outcomes still answer 200: the provider must
// not redeliver events this system chooses to skip.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	if s.verifier == nil || s.reconciler == nil {
		AbortWithError(c, billingdomain.ErrNotConfigured)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, billingdomain.ErrInvalidPayload)
		return
	}

	if err := s.verifier.Verify(payload, c.GetHeader(webhook.SignatureHeader)); err != nil {
		s.log.Warn("webhook signature rejected", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	event, err := webhook.Decode(payload)
	if err != nil {
		if errors.Is(err, billingdomain.ErrEventIgnored) {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		AbortWithError(c, err)
		return
	}

	outcome, err := s.reconciler.Reconcile(c.Request.Context(), event, payload)
	if err != nil {
		s.log.Error("webhook reconciliation failed",
			zap.String("event_id", event.EventID()),
			zap.String("event_type", string(event.Kind())),
			zap.String("reason", outcome.Reason),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"received": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
