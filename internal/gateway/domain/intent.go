package domain

import "encoding/json"

type IntentStatus string

const (
	IntentStatusRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentStatusRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentStatusRequiresAction        IntentStatus = "requires_action"
	IntentStatusProcessing            IntentStatus = "processing"
	IntentStatusRequiresCapture       IntentStatus = "requires_capture"
	IntentStatusCanceled              IntentStatus = "canceled"
	IntentStatusSucceeded             IntentStatus = "succeeded"
)

// PaymentIntent is the subset of the processor's intent object the service reads.
// Field tags follow the processor's JSON so webhook payloads decode directly.
type PaymentIntent struct {
	ID               string            `json:"id"`
	Status           IntentStatus      `json:"status"`
	Amount           int64             `json:"amount"`
	AmountCapturable int64             `json:"amount_capturable"`
	AmountReceived   int64             `json:"amount_received"`
	Currency         string            `json:"currency"`
	ClientSecret     string            `json:"client_secret,omitempty"`
	NextAction       json.RawMessage   `json:"next_action,omitempty"`
	LastPaymentError *PaymentError     `json:"last_payment_error,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type PaymentError struct {
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code,omitempty"`
	Message     string `json:"message"`
	Type        string `json:"type,omitempty"`
}

// NextActionType reads the "type" field of the next action descriptor.
func (pi *PaymentIntent) NextActionType() string {
	if pi == nil || len(pi.NextAction) == 0 {
		return ""
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(pi.NextAction, &head); err != nil {
		return ""
	}
	return head.Type
}
