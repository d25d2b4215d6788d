package server

import (
	"errors"
	"net/http"

	depositdomain "github.com/1rokoko/stripe-deposit-sub000/internal/deposit/domain"
	gatewaydomain "github.com/1rokoko/stripe-deposit-sub000/internal/gateway/domain"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/logger"
	webhookdomain "github.com/1rokoko/stripe-deposit-sub000/internal/webhook/domain"
	"github.com/1rokoko/stripe-deposit-sub000/internal/webhook/signature"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not_found")
	ErrRateLimited  = errors.New("rate_limited")
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type validationError struct {
	field   string
	code    string
	message string
}

func (e *validationError) Error() string { return e.message }

func newValidationError(field, code, message string) error {
	return &validationError{field: field, code: code, message: message}
}

func invalidRequestError() error {
	return newValidationError("", "invalid_request", "invalid request body")
}

var signatureErrors = []error{
	signature.ErrMissingHeader,
	signature.ErrInvalidHeader,
	signature.ErrNoValidSignature,
	signature.ErrTimestampOutsideTolerance,
	signature.ErrInvalidPayload,
	webhookdomain.ErrMissingEventID,
	webhookdomain.ErrInvalidPayload,
}

// AbortWithError writes the JSON error envelope for err and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func errorResponse(err error) (int, errorBody) {
	var verr *validationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, errorBody{Code: verr.code, Message: verr.message, Field: verr.field}
	}

	var gwErr *gatewaydomain.Error
	if errors.As(err, &gwErr) {
		return http.StatusPaymentRequired, errorBody{Code: gwErr.Code, Message: gwErr.Message}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorBody{Code: ErrUnauthorized.Error(), Message: "missing or invalid api key"}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorBody{Code: ErrRateLimited.Error(), Message: "too many requests"}
	case errors.Is(err, ErrNotFound), errors.Is(err, depositdomain.ErrNotFound):
		return http.StatusNotFound, errorBody{Code: "not_found", Message: err.Error()}
	case depositdomain.IsValidation(err):
		return http.StatusBadRequest, errorBody{Code: rootCode(err), Message: err.Error()}
	case errors.Is(err, depositdomain.ErrInvalidState), errors.Is(err, depositdomain.ErrAlreadyExists):
		return http.StatusConflict, errorBody{Code: rootCode(err), Message: err.Error()}
	}
	for _, target := range signatureErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, errorBody{Code: target.Error(), Message: err.Error()}
		}
	}
	return http.StatusInternalServerError, errorBody{Code: "internal_error", Message: "internal server error"}
}

// rootCode returns the innermost wrapped sentinel's text.
func rootCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
