package domain

import (
	"context"
	"errors"

	gatewaydomain "github.com/1rokoko/stripe-deposit-sub000/internal/gateway/domain"
)

type Service interface {
	InitializeDeposit(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	CaptureDeposit(ctx context.Context, id string, amount *int64) (*CaptureResult, error)
	ReleaseDeposit(ctx context.Context, id string) (*Deposit, error)
	ReauthorizeDeposit(ctx context.Context, id string, metadata map[string]string) (*ReauthorizeResult, error)
	ResolveDepositRequiresAction(ctx context.Context, id string, metadata map[string]string) (*Deposit, error)
	GetDeposit(ctx context.Context, id string) (*Deposit, error)
	ListDeposits(ctx context.Context) ([]Deposit, error)
}

type InitializeRequest struct {
	CustomerID      string            `json:"customer_id"`
	PaymentMethodID string            `json:"payment_method_id"`
	HoldAmount      int64             `json:"hold_amount"`
	Currency        string            `json:"currency"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type InitializeResult struct {
	Deposit             Deposit                      `json:"deposit"`
	AuthorizationIntent *gatewaydomain.PaymentIntent `json:"authorization_intent"`
	VerificationIntent  *gatewaydomain.PaymentIntent `json:"verification_intent"`
}

type CaptureResult struct {
	Deposit         Deposit                      `json:"deposit"`
	CaptureResponse *gatewaydomain.PaymentIntent `json:"capture_response"`
}

type ReauthorizeResult struct {
	Deposit             Deposit                      `json:"deposit"`
	AuthorizationIntent *gatewaydomain.PaymentIntent `json:"authorization_intent"`
}

var (
	ErrInvalidID            = errors.New("invalid_deposit_id")
	ErrInvalidCustomer      = errors.New("invalid_customer")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidCaptureAmount = errors.New("invalid_capture_amount")
	ErrInvalidState         = errors.New("invalid_deposit_state")
	ErrNotFound             = errors.New("deposit_not_found")
	ErrAlreadyExists        = errors.New("deposit_already_exists")
)

// IsValidation reports errors raised before any gateway or repository call.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidID,
		ErrInvalidCustomer,
		ErrInvalidPaymentMethod,
		ErrInvalidAmount,
		ErrInvalidCurrency,
		ErrInvalidCaptureAmount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
