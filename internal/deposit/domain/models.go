package domain

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusRequiresAction      Status = "requires_action"
	StatusAuthorized          Status = "authorized"
	StatusProcessing          Status = "processing"
	StatusCaptured            Status = "captured"
	StatusAuthorizationFailed Status = "authorization_failed"
	StatusReleased            Status = "released"
	StatusCanceled            Status = "canceled"
)

// Settled reports whether the hold has been converted or returned.
func (s Status) Settled() bool {
	switch s {
	case StatusCaptured, StatusReleased, StatusCanceled:
		return true
	}
	return false
}

type Deposit struct {
	ID              string `json:"id"`
	CustomerID      string `json:"customer_id"`
	PaymentMethodID string `json:"payment_method_id"`
	HoldAmount      int64  `json:"hold_amount"`
	Currency        string `json:"currency"`
	Status          Status `json:"status"`

	VerificationPaymentIntentID string `json:"verification_payment_intent_id,omitempty"`
	ActivePaymentIntentID       string `json:"active_payment_intent_id,omitempty"`
	CapturePaymentIntentID      string `json:"capture_payment_intent_id,omitempty"`

	AuthorizationHistory []AuthorizationRecord `json:"authorization_history"`
	CaptureHistory       []CaptureRecord       `json:"capture_history"`

	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	InitialAuthorizationAt *time.Time `json:"initial_authorization_at,omitempty"`
	LastAuthorizationAt    *time.Time `json:"last_authorization_at,omitempty"`
	CapturedAt             *time.Time `json:"captured_at,omitempty"`
	ReleasedAt             *time.Time `json:"released_at,omitempty"`
	CanceledAt             *time.Time `json:"canceled_at,omitempty"`

	CapturedAmount *int64 `json:"captured_amount,omitempty"`
	ReleasedAmount *int64 `json:"released_amount,omitempty"`

	ActionRequired *ActionRequired   `json:"action_required,omitempty"`
	LastError      *DepositError     `json:"last_error,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type AuthorizationRecord struct {
	PaymentIntentID string     `json:"payment_intent_id"`
	Amount          int64      `json:"amount"`
	AuthorizedAt    *time.Time `json:"authorized_at,omitempty"`
	Status          Status     `json:"status"`
}

type CaptureRecord struct {
	PaymentIntentID string    `json:"payment_intent_id"`
	Amount          int64     `json:"amount"`
	CapturedAt      time.Time `json:"captured_at"`
}

// ActionRequired is what a caller needs to finish customer authentication.
type ActionRequired struct {
	Type            string          `json:"type,omitempty"`
	PaymentIntentID string          `json:"payment_intent_id"`
	ClientSecret    string          `json:"client_secret,omitempty"`
	NextAction      json.RawMessage `json:"next_action,omitempty"`
}

type DepositError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
