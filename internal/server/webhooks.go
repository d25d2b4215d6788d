package server

import (
	"io"
	"net/http"

	obsctx "github.com/1rokoko/stripe-deposit-sub000/internal/observability/context"
	"github.com/1rokoko/stripe-deposit-sub000/internal/retryqueue"
	webhookdomain "github.com/1rokoko/stripe-deposit-sub000/internal/webhook/domain"
	webhookservice "github.com/1rokoko/stripe-deposit-sub000/internal/webhook/service"
	"github.com/1rokoko/stripe-deposit-sub000/internal/webhook/signature"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// StripeWebhook verifies and applies one delivery. Interpretation failures
// are queued for retry and still acknowledged.
func (s *Server) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil || len(payload) > maxWebhookBody {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := obsctx.WithActor(c.Request.Context(), obsctx.Actor{Type: obsctx.ActorWebhook, ID: webhookservice.Provider})
	c.Request = c.Request.WithContext(ctx)

	result, err := s.webhookSvc.Ingest(ctx, payload, c.GetHeader(signature.HeaderName))
	if err != nil {
		s.log.Warn("webhook delivery failed", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	resp := gin.H{"received": true}
	switch result {
	case webhookdomain.ResultQueued:
		resp["queued"] = true
	case webhookdomain.ResultDuplicate:
		resp["duplicate"] = true
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListDeadLetters(c *gin.Context) {
	var query listQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	resp, err := s.deadLetters.ListDeadLetters(c.Request.Context(), query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp == nil {
		resp = []retryqueue.DeadLetter{}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
