package domain

import "fmt"

// Outcome is the engine-side state an intent status maps to.
type Outcome string

const (
	OutcomeAuthorized     Outcome = "authorized"
	OutcomeRequiresAction Outcome = "requires_action"
	OutcomeProcessing     Outcome = "processing"
	OutcomeCaptured       Outcome = "captured"
)

type Interpretation struct {
	Outcome        Outcome
	Intent         *PaymentIntent
	CapturedAmount int64
	ClientSecret   string
	NextActionType string
}

// Interpret maps an intent status onto the engine's states. Any status that
// does not leave a usable authorization returns an *Error.
func Interpret(intent *PaymentIntent) (Interpretation, error) {
	if intent == nil {
		return Interpretation{}, &Error{
			Code:    ErrorCodeAuthorizationFailed,
			Message: "payment intent missing",
		}
	}

	result := Interpretation{Intent: intent}
	switch intent.Status {
	case IntentStatusRequiresCapture:
		result.Outcome = OutcomeAuthorized
	case IntentStatusRequiresAction:
		result.Outcome = OutcomeRequiresAction
		result.ClientSecret = intent.ClientSecret
		result.NextActionType = intent.NextActionType()
	case IntentStatusProcessing:
		result.Outcome = OutcomeProcessing
	case IntentStatusSucceeded:
		result.Outcome = OutcomeCaptured
		result.CapturedAmount = intent.AmountReceived
		if result.CapturedAmount == 0 {
			result.CapturedAmount = intent.Amount
		}
	default:
		return Interpretation{}, intentError(intent)
	}
	return result, nil
}

func intentError(intent *PaymentIntent) *Error {
	gwErr := &Error{
		Code:            ErrorCodeAuthorizationFailed,
		Message:         fmt.Sprintf("payment intent %s returned status %q", intent.ID, intent.Status),
		PaymentIntentID: intent.ID,
		Status:          intent.Status,
	}
	if last := intent.LastPaymentError; last != nil {
		if last.Code != "" {
			gwErr.Code = last.Code
		}
		if last.Message != "" {
			gwErr.Message = last.Message
		}
	}
	return gwErr
}
