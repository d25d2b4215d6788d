package domain

import (
	"fmt"

	notificationdomain "github.com/1rokoko/stripe-deposit-sub000/internal/notification/domain"
)

// NotificationType maps a deposit status onto its notification type.
func NotificationType(status Status) string {
	switch status {
	case StatusAuthorized:
		return notificationdomain.TypeDepositAuthorized
	case StatusRequiresAction:
		return notificationdomain.TypeDepositRequiresAction
	case StatusProcessing:
		return notificationdomain.TypeDepositProcessing
	case StatusCaptured:
		return notificationdomain.TypeDepositCaptured
	case StatusReleased:
		return notificationdomain.TypeDepositReleased
	case StatusCanceled:
		return notificationdomain.TypeDepositCanceled
	default:
		return notificationdomain.TypeDepositAuthorizationFailed
	}
}

// NewNotification describes the deposit's current state for the sink.
func NewNotification(d Deposit, notificationType string) notificationdomain.Notification {
	payload := map[string]any{
		"hold_amount": d.HoldAmount,
		"currency":    d.Currency,
		"customer_id": d.CustomerID,
	}
	if d.ActivePaymentIntentID != "" {
		payload["payment_intent_id"] = d.ActivePaymentIntentID
	}
	if d.CapturedAmount != nil {
		payload["captured_amount"] = *d.CapturedAmount
	}
	if d.ReleasedAmount != nil {
		payload["released_amount"] = *d.ReleasedAmount
	}
	if d.ActionRequired != nil {
		payload["next_action_type"] = d.ActionRequired.Type
	}
	if d.LastError != nil {
		payload["error_code"] = d.LastError.Code
		payload["error_message"] = d.LastError.Message
	}

	return notificationdomain.Notification{
		Type:      notificationType,
		DepositID: d.ID,
		Status:    string(d.Status),
		Message:   message(d, notificationType),
		Payload:   payload,
	}
}

func message(d Deposit, notificationType string) string {
	hold := notificationdomain.FormatAmount(d.HoldAmount, d.Currency)
	switch notificationType {
	case notificationdomain.TypeDepositAuthorized:
		return fmt.Sprintf("Deposit hold of %s authorized", hold)
	case notificationdomain.TypeDepositRequiresAction:
		return fmt.Sprintf("Deposit hold of %s requires customer action", hold)
	case notificationdomain.TypeDepositProcessing:
		return fmt.Sprintf("Deposit hold of %s is processing", hold)
	case notificationdomain.TypeDepositCaptured:
		var captured int64
		if d.CapturedAmount != nil {
			captured = *d.CapturedAmount
		}
		return fmt.Sprintf("Captured %s of %s deposit", notificationdomain.FormatAmount(captured, d.Currency), hold)
	case notificationdomain.TypeDepositReleased:
		return fmt.Sprintf("Released deposit hold of %s", hold)
	case notificationdomain.TypeDepositCanceled:
		return fmt.Sprintf("Deposit hold of %s canceled", hold)
	case notificationdomain.TypeDepositAuthorizationFailed:
		if d.LastError != nil && d.LastError.Message != "" {
			return fmt.Sprintf("Authorization failed: %s", d.LastError.Message)
		}
		return "Authorization failed"
	}
	return notificationType
}
