package domain

import (
	"errors"
	"fmt"
)

const (
	ErrorCodeAuthorizationFailed = "authorization_failed"
	ErrorCodeVerificationFailed  = "verification_failed"
)

var ErrGatewayUnavailable = errors.New("gateway_unavailable")

// Error is a processor-level decline or unexpected intent outcome.
type Error struct {
	Code            string
	Message         string
	PaymentIntentID string
	Status          IntentStatus
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsError reports whether err carries a gateway Error.
func AsError(err error) (*Error, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}
