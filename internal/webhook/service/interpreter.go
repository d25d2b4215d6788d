package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/1rokoko/stripe-deposit-sub000/internal/clock"
	depositdomain "github.com/1rokoko/stripe-deposit-sub000/internal/deposit/domain"
	gatewaydomain "github.com/1rokoko/stripe-deposit-sub000/internal/gateway/domain"
	notificationdomain "github.com/1rokoko/stripe-deposit-sub000/internal/notification/domain"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/metrics"
	webhookdomain "github.com/1rokoko/stripe-deposit-sub000/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	metadataDepositID = "deposit_id"

	defaultFailureCode    = "payment_failed"
	defaultFailureMessage = "Payment failed"

	transitionSource = "webhook"
)

// skipError aborts a repository update without writing.
type skipError struct {
	reason string
}

func (e *skipError) Error() string { return "skip: " + e.reason }

type InterpreterParams struct {
	fx.In

	Log      *zap.Logger
	Repo     depositdomain.Repository
	Notifier notificationdomain.Notifier
	Clock    clock.Clock
	Metrics  *metrics.JobMetrics `optional:"true"`
}

// Interpreter folds payment intent events into deposit state.
type Interpreter struct {
	log      *zap.Logger
	repo     depositdomain.Repository
	notifier notificationdomain.Notifier
	clock    clock.Clock
	metrics  *metrics.JobMetrics
}

func NewInterpreter(p InterpreterParams) *Interpreter {
	return &Interpreter{
		log:      p.Log.Named("webhook.interpreter"),
		repo:     p.Repo,
		notifier: p.Notifier,
		clock:    p.Clock,
		metrics:  p.Metrics,
	}
}

func handled(eventType string) bool {
	switch eventType {
	case webhookdomain.TypeAmountCapturableUpdated,
		webhookdomain.TypeRequiresAction,
		webhookdomain.TypePaymentFailed,
		webhookdomain.TypeRequiresPaymentMethod,
		webhookdomain.TypeCanceled,
		webhookdomain.TypeSucceeded:
		return true
	}
	return false
}

// Handle applies one event. Only repository failures are returned; anything
// that retrying cannot fix is logged and reported as ignored.
func (i *Interpreter) Handle(ctx context.Context, event webhookdomain.Event) (webhookdomain.Result, error) {
	log := i.log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))

	if !handled(event.Type) {
		log.Debug("ignoring unhandled webhook event")
		return webhookdomain.ResultIgnored, nil
	}

	intent, err := event.PaymentIntent()
	if err != nil {
		log.Warn("webhook event has no readable payment intent", zap.Error(err))
		return webhookdomain.ResultIgnored, nil
	}
	log = log.With(zap.String("payment_intent_id", intent.ID))

	depositID := strings.TrimSpace(intent.Metadata[metadataDepositID])
	if depositID == "" {
		log.Warn("webhook payment intent missing deposit_id metadata")
		return webhookdomain.ResultIgnored, nil
	}
	log = log.With(zap.String("deposit_id", depositID))

	now := i.clock.Now()
	updated, err := i.repo.Update(ctx, depositID, func(current depositdomain.Deposit) (depositdomain.Deposit, error) {
		if reason := staleReason(current, event.Type, intent.ID); reason != "" {
			return current, &skipError{reason: reason}
		}
		next := current.Clone()
		applyEvent(&next, event.Type, intent, now)
		next.UpdatedAt = current.UpdatedAt
		if reflect.DeepEqual(next, current) {
			return current, &skipError{reason: "unchanged"}
		}
		next.UpdatedAt = now
		return next, nil
	})

	var skip *skipError
	switch {
	case errors.As(err, &skip):
		if skip.reason == "unchanged" {
			log.Debug("webhook event already reflected in deposit")
		} else {
			log.Warn("ignoring stale webhook event", zap.String("reason", skip.reason))
		}
		return webhookdomain.ResultIgnored, nil
	case errors.Is(err, depositdomain.ErrNotFound):
		log.Warn("webhook event references unknown deposit")
		return webhookdomain.ResultIgnored, nil
	case err != nil:
		return "", err
	}

	log.Info("deposit updated from webhook", zap.String("status", string(updated.Status)))
	i.metrics.IncDepositTransition(string(updated.Status), transitionSource)
	if i.notifier != nil {
		i.notifier.Notify(ctx, depositdomain.NewNotification(*updated, depositdomain.NotificationType(updated.Status)))
	}
	return webhookdomain.ResultApplied, nil
}

// staleReason reports why an event must not be applied to d. Events for a
// superseded intent are dropped, and a settled deposit only accepts a repeat
// of its own capture.
func staleReason(d depositdomain.Deposit, eventType, intentID string) string {
	if d.ActivePaymentIntentID != "" && intentID != d.ActivePaymentIntentID {
		return "superseded_intent"
	}
	if d.Status.Settled() {
		if eventType == webhookdomain.TypeSucceeded && d.Status == depositdomain.StatusCaptured {
			return ""
		}
		return "deposit_settled"
	}
	return ""
}

func applyEvent(d *depositdomain.Deposit, eventType string, intent *gatewaydomain.PaymentIntent, now time.Time) {
	switch eventType {
	case webhookdomain.TypeAmountCapturableUpdated:
		hold := intent.AmountCapturable
		if hold <= 0 {
			hold = intent.Amount
		}
		alreadyAuthorized := d.Status == depositdomain.StatusAuthorized && d.ActivePaymentIntentID == intent.ID
		d.Status = depositdomain.StatusAuthorized
		d.ActivePaymentIntentID = intent.ID
		if hold > 0 {
			d.HoldAmount = hold
		}
		d.MarkAuthorizationAuthorized(intent.ID, d.HoldAmount, now)
		if !alreadyAuthorized {
			d.MarkAuthorized(now)
		}
		d.ClearTransient()

	case webhookdomain.TypeRequiresAction:
		d.Status = depositdomain.StatusRequiresAction
		d.ActivePaymentIntentID = intent.ID
		d.LastError = nil
		d.ActionRequired = &depositdomain.ActionRequired{
			Type:            intent.NextActionType(),
			PaymentIntentID: intent.ID,
			ClientSecret:    intent.ClientSecret,
			NextAction:      intent.NextAction,
		}
		d.AppendAuthorization(depositdomain.AuthorizationRecord{
			PaymentIntentID: intent.ID,
			Amount:          d.HoldAmount,
			Status:          depositdomain.StatusRequiresAction,
		})

	case webhookdomain.TypePaymentFailed, webhookdomain.TypeRequiresPaymentMethod:
		d.Status = depositdomain.StatusAuthorizationFailed
		d.ActivePaymentIntentID = intent.ID
		d.ActionRequired = nil
		d.LastError = failureFrom(intent)
		d.SetAuthorizationStatus(intent.ID, depositdomain.StatusAuthorizationFailed)

	case webhookdomain.TypeCanceled:
		d.Status = depositdomain.StatusCanceled
		d.ActionRequired = nil
		if d.CanceledAt == nil {
			canceledAt := now
			d.CanceledAt = &canceledAt
		}
		d.Settle(0)

	case webhookdomain.TypeSucceeded:
		captured := intent.AmountReceived
		if captured <= 0 {
			captured = intent.Amount
		}
		d.Status = depositdomain.StatusCaptured
		d.CapturePaymentIntentID = intent.ID
		d.ClearTransient()
		if d.CapturedAt == nil {
			capturedAt := now
			d.CapturedAt = &capturedAt
		}
		d.AppendCapture(depositdomain.CaptureRecord{
			PaymentIntentID: intent.ID,
			Amount:          captured,
			CapturedAt:      *d.CapturedAt,
		})
		d.Settle(captured)
	}
}

func failureFrom(intent *gatewaydomain.PaymentIntent) *depositdomain.DepositError {
	out := &depositdomain.DepositError{
		Code:    defaultFailureCode,
		Message: defaultFailureMessage,
	}
	if pe := intent.LastPaymentError; pe != nil {
		if code := strings.TrimSpace(pe.Code); code != "" {
			out.Code = code
		}
		if msg := strings.TrimSpace(pe.Message); msg != "" {
			out.Message = msg
		}
	}
	return out
}
