package domain

import (
	"encoding/json"
	"errors"
	"strings"

	gatewaydomain "github.com/1rokoko/stripe-deposit-sub000/internal/gateway/domain"
)

const (
	TypeAmountCapturableUpdated = "payment_intent.amount_capturable_updated"
	TypeRequiresAction          = "payment_intent.requires_action"
	TypePaymentFailed           = "payment_intent.payment_failed"
	TypeRequiresPaymentMethod   = "payment_intent.requires_payment_method"
	TypeCanceled                = "payment_intent.canceled"
	TypeSucceeded               = "payment_intent.succeeded"
)

// Event is the processor's webhook envelope.
type Event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Created  int64     `json:"created"`
	Livemode bool      `json:"livemode"`
	Data     EventData `json:"data"`
}

type EventData struct {
	Object json.RawMessage `json:"object"`
}

var ErrMissingObject = errors.New("missing_event_object")

// PaymentIntent decodes data.object.
func (e Event) PaymentIntent() (*gatewaydomain.PaymentIntent, error) {
	if len(e.Data.Object) == 0 {
		return nil, ErrMissingObject
	}
	var pi gatewaydomain.PaymentIntent
	if err := json.Unmarshal(e.Data.Object, &pi); err != nil {
		return nil, err
	}
	return &pi, nil
}

func IsPaymentIntentEvent(eventType string) bool {
	return strings.HasPrefix(eventType, "payment_intent.")
}
