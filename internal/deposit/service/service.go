package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/1rokoko/stripe-deposit-sub000/internal/clock"
	depositdomain "github.com/1rokoko/stripe-deposit-sub000/internal/deposit/domain"
	gatewaydomain "github.com/1rokoko/stripe-deposit-sub000/internal/gateway/domain"
	notificationdomain "github.com/1rokoko/stripe-deposit-sub000/internal/notification/domain"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/metrics"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/tracing"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	verificationAmount = 100
	defaultCurrency    = "usd"
	metadataDepositID  = "deposit_id"
	metadataPurpose    = "purpose"
	refundReason       = "requested_by_customer"
)

var currencyPattern = regexp.MustCompile(`^[a-z]{3}$`)

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     depositdomain.Repository
	Gateway  gatewaydomain.Gateway
	Notifier notificationdomain.Notifier
	Clock    clock.Clock
	Metrics  *metrics.JobMetrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	repo     depositdomain.Repository
	gateway  gatewaydomain.Gateway
	notifier notificationdomain.Notifier
	clock    clock.Clock
	metrics  *metrics.JobMetrics
}

func NewService(p Params) depositdomain.Service {
	return &Service{
		log:      p.Log.Named("deposit.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		gateway:  p.Gateway,
		notifier: p.Notifier,
		clock:    p.Clock,
		metrics:  p.Metrics,
	}
}

func (s *Service) InitializeDeposit(ctx context.Context, req depositdomain.InitializeRequest) (*depositdomain.InitializeResult, error) {
	ctx, span := tracing.Start(ctx, "deposit.initialize")
	res, err := s.initialize(ctx, req)
	if res != nil {
		span.SetAttributes(tracing.DepositID(res.Deposit.ID), tracing.PaymentIntentID(res.Deposit.ActivePaymentIntentID))
	}
	tracing.End(span, err)
	return res, err
}

func (s *Service) initialize(ctx context.Context, req depositdomain.InitializeRequest) (*depositdomain.InitializeResult, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return nil, depositdomain.ErrInvalidCustomer
	}
	paymentMethodID := strings.TrimSpace(req.PaymentMethodID)
	if paymentMethodID == "" {
		return nil, depositdomain.ErrInvalidPaymentMethod
	}
	if req.HoldAmount <= 0 {
		return nil, depositdomain.ErrInvalidAmount
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	verification, err := s.verifyCard(ctx, customerID, paymentMethodID, currency)
	if err != nil {
		return nil, err
	}

	depositID := "dep_" + s.genID.Generate().String()
	holdMetadata := depositdomain.MergeMetadata(req.Metadata, map[string]string{
		metadataDepositID: depositID,
	})
	hold, err := s.gateway.CreatePaymentIntent(ctx, gatewaydomain.CreateIntentParams{
		Amount:          req.HoldAmount,
		Currency:        currency,
		CustomerID:      customerID,
		PaymentMethodID: paymentMethodID,
		CaptureMethod:   gatewaydomain.CaptureMethodManual,
		Confirm:         true,
		OffSession:      true,
		Description:     "Security deposit hold",
		Metadata:        holdMetadata,
	})
	if err != nil {
		if gwErr, ok := gatewaydomain.AsError(err); ok {
			s.cancelQuietly(ctx, gwErr.PaymentIntentID, "hold authorization failed")
		}
		return nil, err
	}

	interp, err := gatewaydomain.Interpret(hold)
	if err != nil {
		s.cancelQuietly(ctx, hold.ID, "hold authorization failed")
		return nil, err
	}

	now := s.clock.Now()
	deposit := depositdomain.Deposit{
		ID:                          depositID,
		CustomerID:                  customerID,
		PaymentMethodID:             paymentMethodID,
		HoldAmount:                  req.HoldAmount,
		Currency:                    currency,
		VerificationPaymentIntentID: verification.ID,
		AuthorizationHistory:        []depositdomain.AuthorizationRecord{},
		CaptureHistory:              []depositdomain.CaptureRecord{},
		CreatedAt:                   now,
		Metadata:                    depositdomain.MergeMetadata(nil, req.Metadata),
	}
	applyAuthorization(&deposit, interp, now)

	if err := s.repo.Create(ctx, deposit); err != nil {
		s.cancelQuietly(ctx, hold.ID, "deposit could not be stored")
		return nil, fmt.Errorf("store deposit: %w", err)
	}

	s.emit(ctx, deposit)
	s.log.Info("deposit initialized",
		zap.String("deposit_id", deposit.ID),
		zap.String("status", string(deposit.Status)),
		zap.String("payment_intent_id", hold.ID),
	)

	return &depositdomain.InitializeResult{
		Deposit:             deposit,
		AuthorizationIntent: hold,
		VerificationIntent:  verification,
	}, nil
}

// verifyCard runs the automatic-capture verification charge and refunds it.
func (s *Service) verifyCard(ctx context.Context, customerID, paymentMethodID, currency string) (*gatewaydomain.PaymentIntent, error) {
	verification, err := s.gateway.CreatePaymentIntent(ctx, gatewaydomain.CreateIntentParams{
		Amount:          verificationAmount,
		Currency:        currency,
		CustomerID:      customerID,
		PaymentMethodID: paymentMethodID,
		CaptureMethod:   gatewaydomain.CaptureMethodAutomatic,
		Confirm:         true,
		OffSession:      true,
		Description:     "Card verification",
		Metadata:        map[string]string{metadataPurpose: "verification"},
	})
	if err != nil {
		if gwErr, ok := gatewaydomain.AsError(err); ok {
			s.cancelQuietly(ctx, gwErr.PaymentIntentID, "verification failed")
		}
		return nil, err
	}

	if verification.Status != gatewaydomain.IntentStatusSucceeded {
		s.cancelQuietly(ctx, verification.ID, "verification failed")
		gwErr := &gatewaydomain.Error{
			Code:            gatewaydomain.ErrorCodeVerificationFailed,
			Message:         fmt.Sprintf("verification charge returned status %q", verification.Status),
			PaymentIntentID: verification.ID,
			Status:          verification.Status,
		}
		if last := verification.LastPaymentError; last != nil {
			if last.Code != "" {
				gwErr.Code = last.Code
			}
			if last.Message != "" {
				gwErr.Message = last.Message
			}
		}
		return nil, gwErr
	}

	if _, err := s.gateway.CreateRefund(ctx, gatewaydomain.RefundParams{
		PaymentIntentID: verification.ID,
		Reason:          refundReason,
		Metadata:        map[string]string{metadataPurpose: "verification"},
	}); err != nil {
		return nil, fmt.Errorf("refund verification charge: %w", err)
	}
	return verification, nil
}

func (s *Service) CaptureDeposit(ctx context.Context, id string, amount *int64) (*depositdomain.CaptureResult, error) {
	ctx, span := tracing.Start(ctx, "deposit.capture", tracing.DepositID(id))
	res, err := s.capture(ctx, id, amount)
	tracing.End(span, err)
	return res, err
}

func (s *Service) capture(ctx context.Context, id string, amount *int64) (*depositdomain.CaptureResult, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != depositdomain.StatusAuthorized {
		return nil, invalidState(current, "capture")
	}

	toCapture := current.HoldAmount
	if amount != nil {
		if *amount < 0 || *amount > current.HoldAmount {
			return nil, depositdomain.ErrInvalidCaptureAmount
		}
		toCapture = *amount
	}

	params := gatewaydomain.CaptureParams{}
	if toCapture != current.HoldAmount {
		params.AmountToCapture = &toCapture
	}
	intentID := current.ActivePaymentIntentID
	resp, err := s.gateway.CapturePaymentIntent(ctx, intentID, params)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	updated, err := s.repo.Update(ctx, current.ID, func(d depositdomain.Deposit) (depositdomain.Deposit, error) {
		if d.Status != depositdomain.StatusAuthorized || d.ActivePaymentIntentID != intentID {
			return d, invalidState(&d, "capture")
		}
		d.Status = depositdomain.StatusCaptured
		d.CapturePaymentIntentID = intentID
		d.CapturedAt = &now
		d.Settle(toCapture)
		d.AppendCapture(depositdomain.CaptureRecord{
			PaymentIntentID: intentID,
			Amount:          toCapture,
			CapturedAt:      now,
		})
		d.ClearTransient()
		d.UpdatedAt = now
		return d, nil
	})
	if err != nil {
		s.warnIfRaced(current.ID, "capture", err)
		return nil, err
	}

	s.emit(ctx, *updated)
	return &depositdomain.CaptureResult{Deposit: *updated, CaptureResponse: resp}, nil
}

func (s *Service) ReleaseDeposit(ctx context.Context, id string) (*depositdomain.Deposit, error) {
	ctx, span := tracing.Start(ctx, "deposit.release", tracing.DepositID(id))
	d, err := s.release(ctx, id)
	tracing.End(span, err)
	return d, err
}

func (s *Service) release(ctx context.Context, id string) (*depositdomain.Deposit, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != depositdomain.StatusAuthorized {
		return nil, invalidState(current, "release")
	}

	if _, err := s.gateway.CancelPaymentIntent(ctx, current.ActivePaymentIntentID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	updated, err := s.repo.Update(ctx, current.ID, func(d depositdomain.Deposit) (depositdomain.Deposit, error) {
		if d.Status != depositdomain.StatusAuthorized {
			return d, invalidState(&d, "release")
		}
		d.Status = depositdomain.StatusReleased
		d.ReleasedAt = &now
		d.Settle(0)
		d.ClearTransient()
		d.UpdatedAt = now
		return d, nil
	})
	if err != nil {
		s.warnIfRaced(current.ID, "release", err)
		return nil, err
	}

	s.emit(ctx, *updated)
	return updated, nil
}

func (s *Service) ReauthorizeDeposit(ctx context.Context, id string, metadata map[string]string) (*depositdomain.ReauthorizeResult, error) {
	ctx, span := tracing.Start(ctx, "deposit.reauthorize", tracing.DepositID(id))
	res, err := s.reauthorize(ctx, id, metadata)
	if res != nil && res.AuthorizationIntent != nil {
		span.SetAttributes(tracing.PaymentIntentID(res.AuthorizationIntent.ID))
	}
	tracing.End(span, err)
	return res, err
}

func (s *Service) reauthorize(ctx context.Context, id string, metadata map[string]string) (*depositdomain.ReauthorizeResult, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case depositdomain.StatusAuthorized, depositdomain.StatusProcessing:
	default:
		return nil, invalidState(current, "reauthorize")
	}

	previousIntentID := current.ActivePaymentIntentID
	intent, err := s.gateway.CreatePaymentIntent(ctx, gatewaydomain.CreateIntentParams{
		Amount:          current.HoldAmount,
		Currency:        current.Currency,
		CustomerID:      current.CustomerID,
		PaymentMethodID: current.PaymentMethodID,
		CaptureMethod:   gatewaydomain.CaptureMethodManual,
		Confirm:         true,
		OffSession:      true,
		Description:     "Security deposit reauthorization",
		Metadata: depositdomain.MergeMetadata(
			depositdomain.MergeMetadata(current.Metadata, metadata),
			map[string]string{
				metadataDepositID:    current.ID,
				"reauthorization_of": previousIntentID,
			},
		),
	})
	if err != nil {
		gwErr, ok := gatewaydomain.AsError(err)
		if !ok {
			return nil, err
		}
		return nil, s.failReauthorization(ctx, current.ID, metadata, gwErr)
	}

	interp, err := gatewaydomain.Interpret(intent)
	if err != nil {
		gwErr, _ := gatewaydomain.AsError(err)
		return nil, s.failReauthorization(ctx, current.ID, metadata, gwErr)
	}

	now := s.clock.Now()
	updated, err := s.repo.Update(ctx, current.ID, func(d depositdomain.Deposit) (depositdomain.Deposit, error) {
		switch d.Status {
		case depositdomain.StatusAuthorized, depositdomain.StatusProcessing:
		default:
			return d, invalidState(&d, "reauthorize")
		}
		if d.ActivePaymentIntentID != previousIntentID {
			return d, invalidState(&d, "reauthorize")
		}
		d.Metadata = depositdomain.MergeMetadata(d.Metadata, metadata)
		applyAuthorization(&d, interp, now)
		if d.InitialAuthorizationAt == nil {
			initial := now
			d.InitialAuthorizationAt = &initial
		}
		return d, nil
	})
	if err != nil {
		s.cancelQuietly(ctx, intent.ID, "reauthorized deposit could not be stored")
		return nil, err
	}

	// The new hold is recorded first so the cancel event for the old one is
	// recognised as superseded.
	if previousIntentID != "" && previousIntentID != intent.ID {
		s.cancelQuietly(ctx, previousIntentID, "superseded by reauthorization")
	}

	s.emit(ctx, *updated)
	s.log.Info("deposit reauthorized",
		zap.String("deposit_id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.String("payment_intent_id", intent.ID),
		zap.String("previous_payment_intent_id", previousIntentID),
	)
	return &depositdomain.ReauthorizeResult{Deposit: *updated, AuthorizationIntent: intent}, nil
}

// failReauthorization records the decline on the existing deposit without
// changing its status, then returns the gateway error.
func (s *Service) failReauthorization(ctx context.Context, id string, metadata map[string]string, gwErr *gatewaydomain.Error) error {
	now := s.clock.Now()
	updated, err := s.repo.Update(ctx, id, func(d depositdomain.Deposit) (depositdomain.Deposit, error) {
		d.LastError = &depositdomain.DepositError{Code: gwErr.Code, Message: gwErr.Message}
		d.Metadata = depositdomain.MergeMetadata(d.Metadata, metadata)
		d.UpdatedAt = now
		return d, nil
	})
	if err != nil {
		s.log.Warn("failed to record reauthorization failure",
			zap.String("deposit_id", id),
			zap.Error(err),
		)
	} else {
		s.notify(ctx, *updated, notificationdomain.TypeDepositAuthorizationFailed)
	}

	s.cancelQuietly(ctx, gwErr.PaymentIntentID, "reauthorization failed")
	return fmt.Errorf("reauthorize deposit %s: %w", id, gwErr)
}

func (s *Service) ResolveDepositRequiresAction(ctx context.Context, id string, metadata map[string]string) (*depositdomain.Deposit, error) {
	ctx, span := tracing.Start(ctx, "deposit.resolve", tracing.DepositID(id))
	d, err := s.resolve(ctx, id, metadata)
	tracing.End(span, err)
	return d, err
}

func (s *Service) resolve(ctx context.Context, id string, metadata map[string]string) (*depositdomain.Deposit, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != depositdomain.StatusRequiresAction {
		return nil, invalidState(current, "resolve")
	}

	now := s.clock.Now()
	updated, err := s.repo.Update(ctx, current.ID, func(d depositdomain.Deposit) (depositdomain.Deposit, error) {
		if d.Status != depositdomain.StatusRequiresAction {
			return d, invalidState(&d, "resolve")
		}
		intentID := d.ActivePaymentIntentID
		if d.ActionRequired != nil && d.ActionRequired.PaymentIntentID != "" {
			intentID = d.ActionRequired.PaymentIntentID
		}
		d.Status = depositdomain.StatusAuthorized
		d.ActivePaymentIntentID = intentID
		d.MarkAuthorizationAuthorized(intentID, d.HoldAmount, now)
		d.MarkAuthorized(now)
		d.ClearTransient()
		d.Metadata = depositdomain.MergeMetadata(d.Metadata, metadata)
		d.UpdatedAt = now
		return d, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, *updated)
	return updated, nil
}

func (s *Service) GetDeposit(ctx context.Context, id string) (*depositdomain.Deposit, error) {
	return s.load(ctx, id)
}

func (s *Service) ListDeposits(ctx context.Context) ([]depositdomain.Deposit, error) {
	return s.repo.List(ctx)
}

func (s *Service) load(ctx context.Context, id string) (*depositdomain.Deposit, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, depositdomain.ErrInvalidID
	}
	deposit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if deposit == nil {
		return nil, depositdomain.ErrNotFound
	}
	return deposit, nil
}

// emit sends the notification matching the deposit's status.
func (s *Service) emit(ctx context.Context, d depositdomain.Deposit) {
	s.notify(ctx, d, depositdomain.NotificationType(d.Status))
}

func (s *Service) notify(ctx context.Context, d depositdomain.Deposit, notificationType string) {
	s.metrics.IncDepositTransition(string(d.Status), "engine")
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, depositdomain.NewNotification(d, notificationType))
}

// warnIfRaced flags a gateway call whose result could not be stored because
// the deposit moved on in the meantime.
func (s *Service) warnIfRaced(id, op string, err error) {
	if !errors.Is(err, depositdomain.ErrInvalidState) {
		return
	}
	s.log.Warn("deposit changed while gateway call was in flight",
		zap.String("deposit_id", id),
		zap.String("operation", op),
		zap.Error(err),
	)
}

// cancelQuietly is best-effort cleanup; its failure never masks the caller's result.
func (s *Service) cancelQuietly(ctx context.Context, intentID, reason string) {
	if intentID == "" {
		return
	}
	if _, err := s.gateway.CancelPaymentIntent(ctx, intentID); err != nil {
		s.log.Warn("failed to cancel payment intent",
			zap.String("payment_intent_id", intentID),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

// applyAuthorization folds an interpreted authorization attempt into d.
func applyAuthorization(d *depositdomain.Deposit, interp gatewaydomain.Interpretation, now time.Time) {
	intent := interp.Intent
	d.ActivePaymentIntentID = intent.ID
	last := now
	d.LastAuthorizationAt = &last
	d.UpdatedAt = now

	record := depositdomain.AuthorizationRecord{
		PaymentIntentID: intent.ID,
		Amount:          d.HoldAmount,
	}

	switch interp.Outcome {
	case gatewaydomain.OutcomeAuthorized:
		d.Status = depositdomain.StatusAuthorized
		d.MarkAuthorized(now)
		d.ClearTransient()
		authorizedAt := now
		record.AuthorizedAt = &authorizedAt
	case gatewaydomain.OutcomeRequiresAction:
		d.Status = depositdomain.StatusRequiresAction
		d.LastError = nil
		d.ActionRequired = &depositdomain.ActionRequired{
			Type:            interp.NextActionType,
			PaymentIntentID: intent.ID,
			ClientSecret:    interp.ClientSecret,
			NextAction:      intent.NextAction,
		}
	case gatewaydomain.OutcomeProcessing:
		d.Status = depositdomain.StatusProcessing
		d.ClearTransient()
	case gatewaydomain.OutcomeCaptured:
		d.Status = depositdomain.StatusCaptured
		d.MarkAuthorized(now)
		d.ClearTransient()
		d.CapturePaymentIntentID = intent.ID
		capturedAt := now
		d.CapturedAt = &capturedAt
		d.Settle(interp.CapturedAmount)
		d.AppendCapture(depositdomain.CaptureRecord{
			PaymentIntentID: intent.ID,
			Amount:          interp.CapturedAmount,
			CapturedAt:      now,
		})
		authorizedAt := now
		record.AuthorizedAt = &authorizedAt
	}
	record.Status = d.Status
	d.AppendAuthorization(record)
}

func invalidState(d *depositdomain.Deposit, op string) error {
	return fmt.Errorf("%w: cannot %s deposit in status %s", depositdomain.ErrInvalidState, op, d.Status)
}

func normalizeCurrency(currency string) (string, error) {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return defaultCurrency, nil
	}
	if !currencyPattern.MatchString(currency) {
		return "", depositdomain.ErrInvalidCurrency
	}
	return currency, nil
}
