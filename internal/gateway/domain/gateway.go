package domain

import "context"

// Gateway is the payment processor boundary used by the lifecycle engine.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*PaymentIntent, error)
	CapturePaymentIntent(ctx context.Context, id string, params CaptureParams) (*PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
	CreateRefund(ctx context.Context, params RefundParams) (*Refund, error)
}

type CaptureMethod string

const (
	CaptureMethodAutomatic CaptureMethod = "automatic"
	CaptureMethodManual    CaptureMethod = "manual"
)

type CreateIntentParams struct {
	Amount          int64
	Currency        string
	CustomerID      string
	PaymentMethodID string
	CaptureMethod   CaptureMethod
	Confirm         bool
	OffSession      bool
	Description     string
	Metadata        map[string]string
}

type CaptureParams struct {
	// AmountToCapture is nil for a full capture.
	AmountToCapture *int64
}

type RefundParams struct {
	PaymentIntentID string
	Reason          string
	Metadata        map[string]string
}

type Refund struct {
	ID              string
	PaymentIntentID string
	Amount          int64
	Status          string
}
