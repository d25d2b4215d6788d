package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/1rokoko/stripe-deposit-sub000/internal/clock"
	depositdomain "github.com/1rokoko/stripe-deposit-sub000/internal/deposit/domain"
	"github.com/1rokoko/stripe-deposit-sub000/internal/deposit/repository"
	gatewaydomain "github.com/1rokoko/stripe-deposit-sub000/internal/gateway/domain"
	notificationdomain "github.com/1rokoko/stripe-deposit-sub000/internal/notification/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

type createResult struct {
	intent *gatewaydomain.PaymentIntent
	err    error
}

type fakeGateway struct {
	mu        sync.Mutex
	creates   []createResult
	created   []gatewaydomain.CreateIntentParams
	captured  []gatewaydomain.CaptureParams
	canceled  []string
	refunded  []string
	captureFn func(id string, params gatewaydomain.CaptureParams) (*gatewaydomain.PaymentIntent, error)
	cancelErr error

	// onCreate and onCancel run before the call returns, standing in for a
	// webhook that commits while the request is in flight.
	onCreate func()
	onCancel func(id string)
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, params gatewaydomain.CreateIntentParams) (*gatewaydomain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, params)
	if len(g.creates) == 0 {
		return nil, errors.New("unexpected create")
	}
	next := g.creates[0]
	g.creates = g.creates[1:]
	if g.onCreate != nil {
		g.onCreate()
	}
	if next.intent != nil {
		next.intent.Metadata = params.Metadata
		next.intent.Amount = params.Amount
	}
	return next.intent, next.err
}

func (g *fakeGateway) CapturePaymentIntent(_ context.Context, id string, params gatewaydomain.CaptureParams) (*gatewaydomain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captured = append(g.captured, params)
	if g.captureFn != nil {
		return g.captureFn(id, params)
	}
	return &gatewaydomain.PaymentIntent{ID: id, Status: gatewaydomain.IntentStatusSucceeded}, nil
}

func (g *fakeGateway) CancelPaymentIntent(_ context.Context, id string) (*gatewaydomain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.canceled = append(g.canceled, id)
	if g.onCancel != nil {
		g.onCancel(id)
	}
	if g.cancelErr != nil {
		return nil, g.cancelErr
	}
	return &gatewaydomain.PaymentIntent{ID: id, Status: gatewaydomain.IntentStatusCanceled}, nil
}

func (g *fakeGateway) CreateRefund(_ context.Context, params gatewaydomain.RefundParams) (*gatewaydomain.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunded = append(g.refunded, params.PaymentIntentID)
	return &gatewaydomain.Refund{ID: "re_" + params.PaymentIntentID, PaymentIntentID: params.PaymentIntentID, Status: "succeeded"}, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notificationdomain.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification notificationdomain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, sent := range n.sent {
		out = append(out, sent.Type)
	}
	return out
}

type countingRepo struct {
	depositdomain.Repository
	mu      sync.Mutex
	creates int
	updates int
}

func (r *countingRepo) Create(ctx context.Context, d depositdomain.Deposit) error {
	r.mu.Lock()
	r.creates++
	r.mu.Unlock()
	return r.Repository.Create(ctx, d)
}

func (r *countingRepo) Update(ctx context.Context, id string, fn depositdomain.UpdateFunc) (*depositdomain.Deposit, error) {
	r.mu.Lock()
	r.updates++
	r.mu.Unlock()
	return r.Repository.Update(ctx, id, fn)
}

type harness struct {
	svc      depositdomain.Service
	gateway  *fakeGateway
	notifier *recordingNotifier
	repo     *countingRepo
	clock    *clock.FixedClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bolt, err := repository.OpenBolt(filepath.Join(t.TempDir(), "deposits.bolt"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = bolt.Close() })

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	h := &harness{
		gateway:  &fakeGateway{},
		notifier: &recordingNotifier{},
		repo:     &countingRepo{Repository: bolt},
		clock:    clock.NewFixed(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
	}
	h.svc = NewService(Params{
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     h.repo,
		Gateway:  h.gateway,
		Notifier: h.notifier,
		Clock:    h.clock,
	})
	return h
}

func verificationOK() createResult {
	return createResult{intent: &gatewaydomain.PaymentIntent{ID: "pi_verify", Status: gatewaydomain.IntentStatusSucceeded}}
}

func holdWithStatus(id string, status gatewaydomain.IntentStatus) createResult {
	return createResult{intent: &gatewaydomain.PaymentIntent{ID: id, Status: status}}
}

func (h *harness) initialize(t *testing.T, holdAmount int64) depositdomain.Deposit {
	t.Helper()
	h.gateway.creates = append(h.gateway.creates, verificationOK(), holdWithStatus("pi_hold", gatewaydomain.IntentStatusRequiresCapture))
	res, err := h.svc.InitializeDeposit(context.Background(), depositdomain.InitializeRequest{
		CustomerID:      "cus_1",
		PaymentMethodID: "pm_1",
		HoldAmount:      holdAmount,
		Currency:        "usd",
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return res.Deposit
}

// commitBehind writes a status change straight to storage, bypassing the engine.
func (h *harness) commitBehind(t *testing.T, id string, status depositdomain.Status, captured int64) {
	t.Helper()
	_, err := h.repo.Repository.Update(context.Background(), id, func(d depositdomain.Deposit) (depositdomain.Deposit, error) {
		d.Status = status
		d.Settle(captured)
		return d, nil
	})
	if err != nil {
		t.Fatalf("concurrent update: %v", err)
	}
}

func (h *harness) stored(t *testing.T, id string) depositdomain.Deposit {
	t.Helper()
	d, err := h.repo.FindByID(context.Background(), id)
	if err != nil || d == nil {
		t.Fatalf("load deposit %s: %v", id, err)
	}
	return *d
}

func TestInitializeDepositAuthorized(t *testing.T) {
	h := newHarness(t)
	h.gateway.creates = []createResult{verificationOK(), holdWithStatus("pi_hold", gatewaydomain.IntentStatusRequiresCapture)}

	res, err := h.svc.InitializeDeposit(context.Background(), depositdomain.InitializeRequest{
		CustomerID:      "cus_1",
		PaymentMethodID: "pm_1",
		HoldAmount:      10000,
		Currency:        "usd",
		Metadata:        map[string]string{"unit": "4A"},
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	d := res.Deposit
	if d.Status != depositdomain.StatusAuthorized || d.HoldAmount != 10000 {
		t.Fatalf("unexpected deposit: %+v", d)
	}
	if len(d.AuthorizationHistory) != 1 || d.AuthorizationHistory[0].PaymentIntentID != "pi_hold" {
		t.Fatalf("expected one authorization entry, got %+v", d.AuthorizationHistory)
	}
	if d.VerificationPaymentIntentID != "pi_verify" || d.ActivePaymentIntentID != "pi_hold" {
		t.Fatalf("unexpected intent linkage: %+v", d)
	}
	if d.InitialAuthorizationAt == nil || d.LastAuthorizationAt == nil {
		t.Fatal("expected authorization timestamps")
	}
	if got := h.notifier.types(); len(got) != 1 || got[0] != notificationdomain.TypeDepositAuthorized {
		t.Fatalf("expected exactly one authorized notification, got %v", got)
	}

	if len(h.gateway.refunded) != 1 || h.gateway.refunded[0] != "pi_verify" {
		t.Fatalf("expected verification refund, got %v", h.gateway.refunded)
	}
	verifyParams, holdParams := h.gateway.created[0], h.gateway.created[1]
	if verifyParams.Amount != 100 || verifyParams.CaptureMethod != gatewaydomain.CaptureMethodAutomatic {
		t.Fatalf("unexpected verification params: %+v", verifyParams)
	}
	if _, ok := verifyParams.Metadata["deposit_id"]; ok {
		t.Fatal("verification intent must not carry deposit_id")
	}
	if holdParams.CaptureMethod != gatewaydomain.CaptureMethodManual || !holdParams.OffSession || !holdParams.Confirm {
		t.Fatalf("unexpected hold params: %+v", holdParams)
	}
	if holdParams.Metadata["deposit_id"] != d.ID || holdParams.Metadata["unit"] != "4A" {
		t.Fatalf("expected hold metadata to carry deposit id, got %v", holdParams.Metadata)
	}

	stored, err := h.repo.FindByID(context.Background(), d.ID)
	if err != nil || stored == nil {
		t.Fatalf("expected stored deposit, got %v, %v", stored, err)
	}
}

func TestInitializeDepositOutcomes(t *testing.T) {
	tests := []struct {
		name         string
		hold         *gatewaydomain.PaymentIntent
		wantStatus   depositdomain.Status
		wantNotified string
	}{
		{
			name: "requires action",
			hold: &gatewaydomain.PaymentIntent{
				ID:           "pi_hold",
				Status:       gatewaydomain.IntentStatusRequiresAction,
				ClientSecret: "pi_hold_secret",
				NextAction:   []byte(`{"type":"use_stripe_sdk"}`),
			},
			wantStatus:   depositdomain.StatusRequiresAction,
			wantNotified: notificationdomain.TypeDepositRequiresAction,
		},
		{
			name:         "processing",
			hold:         &gatewaydomain.PaymentIntent{ID: "pi_hold", Status: gatewaydomain.IntentStatusProcessing},
			wantStatus:   depositdomain.StatusProcessing,
			wantNotified: notificationdomain.TypeDepositProcessing,
		},
		{
			name:         "captured immediately",
			hold:         &gatewaydomain.PaymentIntent{ID: "pi_hold", Status: gatewaydomain.IntentStatusSucceeded, AmountReceived: 5000},
			wantStatus:   depositdomain.StatusCaptured,
			wantNotified: notificationdomain.TypeDepositCaptured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.gateway.creates = []createResult{verificationOK(), {intent: tt.hold}}

			res, err := h.svc.InitializeDeposit(context.Background(), depositdomain.InitializeRequest{
				CustomerID: "cus_1", PaymentMethodID: "pm_1", HoldAmount: 5000, Currency: "usd",
			})
			if err != nil {
				t.Fatalf("initialize: %v", err)
			}
			if res.Deposit.Status != tt.wantStatus {
				t.Fatalf("expected %s, got %s", tt.wantStatus, res.Deposit.Status)
			}
			if got := h.notifier.types(); len(got) != 1 || got[0] != tt.wantNotified {
				t.Fatalf("expected one %s notification, got %v", tt.wantNotified, got)
			}
			switch tt.wantStatus {
			case depositdomain.StatusRequiresAction:
				action := res.Deposit.ActionRequired
				if action == nil || action.ClientSecret != "pi_hold_secret" || action.Type != "use_stripe_sdk" {
					t.Fatalf("unexpected action: %+v", action)
				}
			case depositdomain.StatusCaptured:
				d := res.Deposit
				if *d.CapturedAmount != 5000 || *d.ReleasedAmount != 0 || len(d.CaptureHistory) != 1 {
					t.Fatalf("unexpected settlement: %+v", d)
				}
			}
		})
	}
}

func TestInitializeDepositFailsAtomically(t *testing.T) {
	tests := []struct {
		name       string
		creates    []createResult
		wantCancel string
		wantCode   string
	}{
		{
			name:       "verification not succeeded",
			creates:    []createResult{holdWithStatus("pi_verify", gatewaydomain.IntentStatusRequiresAction)},
			wantCancel: "pi_verify",
			wantCode:   gatewaydomain.ErrorCodeVerificationFailed,
		},
		{
			name: "hold declined",
			creates: []createResult{verificationOK(), {intent: &gatewaydomain.PaymentIntent{
				ID:               "pi_hold",
				Status:           gatewaydomain.IntentStatusRequiresPaymentMethod,
				LastPaymentError: &gatewaydomain.PaymentError{Code: "card_declined", Message: "Card was declined"},
			}}},
			wantCancel: "pi_hold",
			wantCode:   "card_declined",
		},
		{
			name: "hold rejected by gateway",
			creates: []createResult{verificationOK(), {err: &gatewaydomain.Error{
				Code:            "insufficient_funds",
				PaymentIntentID: "pi_hold",
			}}},
			wantCancel: "pi_hold",
			wantCode:   "insufficient_funds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.gateway.creates = tt.creates

			_, err := h.svc.InitializeDeposit(context.Background(), depositdomain.InitializeRequest{
				CustomerID: "cus_1", PaymentMethodID: "pm_1", HoldAmount: 10000, Currency: "usd",
			})
			gwErr, ok := gatewaydomain.AsError(err)
			if !ok || gwErr.Code != tt.wantCode {
				t.Fatalf("expected gateway error %s, got %v", tt.wantCode, err)
			}
			if h.repo.creates != 0 {
				t.Fatalf("expected nothing persisted, got %d creates", h.repo.creates)
			}
			items, _ := h.repo.List(context.Background())
			if len(items) != 0 {
				t.Fatalf("expected no deposits, got %d", len(items))
			}
			if len(h.notifier.types()) != 0 {
				t.Fatalf("expected no notifications, got %v", h.notifier.types())
			}
			if len(h.gateway.canceled) == 0 || h.gateway.canceled[0] != tt.wantCancel {
				t.Fatalf("expected cancel of %s, got %v", tt.wantCancel, h.gateway.canceled)
			}
		})
	}
}

func TestInitializeDepositValidation(t *testing.T) {
	tests := []struct {
		name string
		req  depositdomain.InitializeRequest
		want error
	}{
		{"missing customer", depositdomain.InitializeRequest{PaymentMethodID: "pm_1", HoldAmount: 1}, depositdomain.ErrInvalidCustomer},
		{"missing payment method", depositdomain.InitializeRequest{CustomerID: "cus_1", HoldAmount: 1}, depositdomain.ErrInvalidPaymentMethod},
		{"zero amount", depositdomain.InitializeRequest{CustomerID: "cus_1", PaymentMethodID: "pm_1"}, depositdomain.ErrInvalidAmount},
		{"bad currency", depositdomain.InitializeRequest{CustomerID: "cus_1", PaymentMethodID: "pm_1", HoldAmount: 1, Currency: "dollars"}, depositdomain.ErrInvalidCurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.svc.InitializeDeposit(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if !depositdomain.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(h.gateway.created) != 0 {
				t.Fatal("validation must not reach the gateway")
			}
		})
	}
}

func TestCaptureDepositPartial(t *testing.T) {
	h := newHarness(t)
	d := h.initialize(t, 20000)

	amount := int64(7500)
	res, err := h.svc.CaptureDeposit(context.Background(), d.ID, &amount)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	got := res.Deposit
	if got.Status != depositdomain.StatusCaptured || *got.CapturedAmount != 7500 || *got.ReleasedAmount != 12500 {
		t.Fatalf("unexpected capture result: %+v", got)
	}
	if len(got.CaptureHistory) != 1 || got.CapturePaymentIntentID != "pi_hold" {
		t.Fatalf("unexpected capture history: %+v", got.CaptureHistory)
	}
	if p := h.gateway.captured[0]; p.AmountToCapture == nil || *p.AmountToCapture != 7500 {
		t.Fatalf("expected partial capture param, got %+v", p)
	}
	types := h.notifier.types()
	if types[len(types)-1] != notificationdomain.TypeDepositCaptured {
		t.Fatalf("expected captured notification, got %v", types)
	}
}

func TestCaptureDepositFullOmitsAmount(t *testing.T) {
	h := newHarness(t)
	d := h.initialize(t, 20000)

	res, err := h.svc.CaptureDeposit(context.Background(), d.ID, nil)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if h.gateway.captured[0].AmountToCapture != nil {
		t.Fatal("full capture must not send a partial amount")
	}
	if *res.Deposit.CapturedAmount+*res.Deposit.ReleasedAmount != res.Deposit.HoldAmount {
		t.Fatalf("settlement does not balance: %+v", res.Deposit)
	}
}

func TestCaptureDepositRejects(t *testing.T) {
	h := newHarness(t)
	d := h.initialize(t, 20000)

	tooMuch := int64(20001)
	if _, err := h.svc.CaptureDeposit(context.Background(), d.ID, &tooMuch); !errors.Is(err, depositdomain.ErrInvalidCaptureAmount) {
		t.Fatalf("expected invalid capture amount, got %v", err)
	}
	negative := int64(-1)
	if _, err := h.svc.CaptureDeposit(context.Background(), d.ID, &negative); !errors.Is(err, depositdomain.ErrInvalidCaptureAmount) {
		t.Fatalf("expected invalid capture amount, got %v", err)
	}
	if _, err := h.svc.CaptureDeposit(context.Background(), "dep_missing", nil); !errors.Is(err, depositdomain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := h.svc.ReleaseDeposit(context.Background(), d.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := h.svc.CaptureDeposit(context.Background(), d.ID, nil); !errors.Is(err, depositdomain.ErrInvalidState) {
		t.Fatalf("expected invalid state after release, got %v", err)
	}
}

func TestCaptureDepositGatewayFailureLeavesDepositUntouched(t *testing.T) {
	h := newHarness(t)
	d := h.initialize(t, 20000)
	updatesBefore := h.repo.updates
	h.gateway.captureFn = func(string, gatewaydomain.CaptureParams) (*gatewaydomain.PaymentIntent, error) {
		return nil, gatewaydomain.ErrGatewayUnavailable
	}

	if _, err := h.svc.CaptureDeposit(context.Background(), d.ID, nil); !errors.Is(err, gatewaydomain.ErrGatewayUnavailable) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if h.repo.updates != updatesBefore {
		t.Fatal("failed capture must not write")
	}
	stored, _ := h.svc.GetDeposit(context.Background(), d.ID)
	if stored.Status != depositdomain.StatusAuthorized {
		t.Fatalf("expected authorized, got %s", stored.Status)
	}
}

func TestReleaseDeposit(t *testing.T) {
	h := newHarness(t)
	d := h.initialize(t, 10000)

	released, err := h.svc.ReleaseDeposit(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.Status != depositdomain.StatusReleased || *released.ReleasedAmount != 10000 || *released.CapturedAmount != 0 {
		t.Fatalf("unexpected release result: %+v", released)
	}
	if released.ReleasedAt == nil {
		t.Fatal("expected released_at")
	}
	if h.gateway.canceled[len(h.gateway.canceled)-1] != "pi_hold" {
		t.Fatalf("expected active intent canceled, got %v", h.gateway.canceled)
	}
	types := h.notifier.types()
	if types[len(types)-1] != notificationdomain.TypeDepositReleased {
		t.Fatalf("expected released notification, got %v", types)
	}
	if _, err := h.svc.ReleaseDeposit(context.Background(), d.ID); !errors.Is(err, depositdomain.ErrInvalidState) {
		t.Fatalf("expected invalid state on second release, got %v", err)
	}
}

func TestReauthorizeDepositSuccess(t *testing.T) {
	h := newHarness(t)
	d := h.initialize(t, 10000)
	initial := *d.InitialAuthorizationAt

	h.clock.Advance(6 * 24 * time.Hour)
	h.gateway.creates = []createResult{holdWithStatus("pi_hold_2", gatewaydomain.IntentStatusRequiresCapture)}
	updatesBefore := h.repo.updates

	res, err := h.svc.ReauthorizeDeposit(context.Background(), d.ID, map[string]string{"reason": "sweep"})
	if err != nil {
		t.Fatalf("reauthorize: %v", err)
	}
	got := res.Deposit
	if got.ActivePaymentIntentID != "pi_hold_2" || got.Status != depositdomain.StatusAuthorized {
		t.Fatalf("unexpected deposit: %+v", got)
	}
	if len(got.AuthorizationHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(got.AuthorizationHistory))
	}
	if !got.InitialAuthorizationAt.Equal(initial) {
		t.Fatal("initial authorization time must not move")
	}
	if !got.LastAuthorizationAt.Equal(h.clock.Now()) {
		t.Fatalf("expected last authorization at %v, got %v", h.clock.Now(), got.LastAuthorizationAt)
	}
	if got.Metadata["reason"] != "sweep" {
		t.Fatalf("expected merged metadata, got %v", got.Metadata)
	}
	if h.repo.updates-updatesBefore != 1 {
		t.Fatalf("expected exactly one update, got %d", h.repo.updates-updatesBefore)
	}
	if h.gateway.canceled[len(h.gateway.canceled)-1] != "pi_hold" {
		t.Fatalf("expected previous intent canceled, got %v", h.gateway.canceled)
	}
	if h.gateway.created[len(h.gateway.created)-1].Metadata["deposit_id"] != d.ID {
		t.Fatal("reauthorization intent must carry deposit_id")
	}
}

func TestReauthorizeDepositCancelFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	d := h.initialize(t, 10000)
	h.gateway.cancelErr = errors.New("network down")
	h.gateway.creates = []createResult{holdWithStatus("pi_hold_2", gatewaydomain.IntentStatusRequiresCapture)}

	if _, err := h.svc.ReauthorizeDeposit(context.Background(), d.ID, nil); err != nil {
		t.Fatalf("expected success despite cancel failure, got %v", err)
	}
}

func TestReauthorizeDepositFailureKeepsStatus(t *testing.T) {
	h := newHarness(t)
	d := h.initialize(t, 10000)
	h.gateway.creates = []createResult{{intent: &gatewaydomain.PaymentIntent{
		ID:               "pi_hold_2",
		Status:           gatewaydomain.IntentStatusRequiresPaymentMethod,
		LastPaymentError: &gatewaydomain.PaymentError{Code: "expired_card", Message: "Card expired"},
	}}}

	_, err := h.svc.ReauthorizeDeposit(context.Background(), d.ID, nil)
	gwErr, ok := gatewaydomain.AsError(err)
	if !ok || gwErr.Code != "expired_card" {
		t.Fatalf("expected expired_card gateway error, got %v", err)
	}

	stored, _ := h.svc.GetDeposit(context.Background(), d.ID)
	if stored.Status != depositdomain.StatusAuthorized || stored.ActivePaymentIntentID != "pi_hold" {
		t.Fatalf("deposit must keep prior state: %+v", stored)
	}
	if stored.LastError == nil || stored.LastError.Code != "expired_card" {
		t.Fatalf("expected last error recorded, got %+v", stored.LastError)
	}
	if len(stored.AuthorizationHistory) != 1 {
		t.Fatalf("failed attempt must not be appended as live, got %d entries", len(stored.AuthorizationHistory))
	}
	types := h.notifier.types()
	if types[len(types)-1] != notificationdomain.TypeDepositAuthorizationFailed {
		t.Fatalf("expected authorization_failed notification, got %v", types)
	}
	if h.gateway.canceled[len(h.gateway.canceled)-1] != "pi_hold_2" {
		t.Fatalf("expected failed intent canceled, got %v", h.gateway.canceled)
	}
}

func TestReauthorizeDepositTransientFailurePropagates(t *testing.T) {
	h := newHarness(t)
	d := h.initialize(t, 10000)
	h.gateway.creates = []createResult{{err: gatewaydomain.ErrGatewayUnavailable}}
	updatesBefore := h.repo.updates

	if _, err := h.svc.ReauthorizeDeposit(context.Background(), d.ID, nil); !errors.Is(err, gatewaydomain.ErrGatewayUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if h.repo.updates != updatesBefore {
		t.Fatal("transient failures must not write")
	}
}

func TestReauthorizeDepositRejectsRequiresAction(t *testing.T) {
	h := newHarness(t)
	h.gateway.creates = []createResult{verificationOK(), holdWithStatus("pi_hold", gatewaydomain.IntentStatusRequiresAction)}
	res, err := h.svc.InitializeDeposit(context.Background(), depositdomain.InitializeRequest{
		CustomerID: "cus_1", PaymentMethodID: "pm_1", HoldAmount: 10000,
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if _, err := h.svc.ReauthorizeDeposit(context.Background(), res.Deposit.ID, nil); !errors.Is(err, depositdomain.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestResolveDepositRequiresAction(t *testing.T) {
	h := newHarness(t)
	h.gateway.creates = []createResult{verificationOK(), {intent: &gatewaydomain.PaymentIntent{
		ID:           "pi_hold",
		Status:       gatewaydomain.IntentStatusRequiresAction,
		ClientSecret: "secret",
	}}}
	res, err := h.svc.InitializeDeposit(context.Background(), depositdomain.InitializeRequest{
		CustomerID: "cus_1", PaymentMethodID: "pm_1", HoldAmount: 10000,
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if res.Deposit.AuthorizationHistory[0].AuthorizedAt != nil {
		t.Fatal("requires_action entry must not be marked authorized")
	}

	resolved, err := h.svc.ResolveDepositRequiresAction(context.Background(), res.Deposit.ID, map[string]string{"operator": "ops"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != depositdomain.StatusAuthorized || resolved.ActionRequired != nil {
		t.Fatalf("unexpected resolved deposit: %+v", resolved)
	}
	if len(resolved.AuthorizationHistory) != 1 || resolved.AuthorizationHistory[0].AuthorizedAt == nil {
		t.Fatalf("expected backfilled history, got %+v", resolved.AuthorizationHistory)
	}
	if resolved.Metadata["operator"] != "ops" {
		t.Fatalf("expected merged metadata, got %v", resolved.Metadata)
	}
	types := h.notifier.types()
	if types[len(types)-1] != notificationdomain.TypeDepositAuthorized {
		t.Fatalf("expected authorized notification, got %v", types)
	}

	if _, err := h.svc.ResolveDepositRequiresAction(context.Background(), res.Deposit.ID, nil); !errors.Is(err, depositdomain.ErrInvalidState) {
		t.Fatalf("expected invalid state on second resolve, got %v", err)
	}
}

func TestStateMachineClosureFromAuthorized(t *testing.T) {
	allowed := map[depositdomain.Status]bool{
		depositdomain.StatusAuthorized:     true,
		depositdomain.StatusCaptured:       true,
		depositdomain.StatusReleased:       true,
		depositdomain.StatusRequiresAction: true,
		depositdomain.StatusProcessing:     true,
	}
	outcomes := []gatewaydomain.IntentStatus{
		gatewaydomain.IntentStatusRequiresCapture,
		gatewaydomain.IntentStatusRequiresAction,
		gatewaydomain.IntentStatusProcessing,
		gatewaydomain.IntentStatusRequiresPaymentMethod,
	}
	for _, status := range outcomes {
		h := newHarness(t)
		d := h.initialize(t, 10000)
		h.gateway.creates = []createResult{holdWithStatus("pi_next", status)}
		_, _ = h.svc.ReauthorizeDeposit(context.Background(), d.ID, nil)
		stored, _ := h.svc.GetDeposit(context.Background(), d.ID)
		if !allowed[stored.Status] {
			t.Fatalf("reauthorize with %s reached %s", status, stored.Status)
		}
	}
}

func TestReauthorizeDepositDoesNotOverwriteConcurrentCapture(t *testing.T) {
	h := newHarness(t)
	d := h.initialize(t, 20000)
	sent := len(h.notifier.types())

	h.gateway.creates = []createResult{holdWithStatus("pi_hold_2", gatewaydomain.IntentStatusRequiresCapture)}
	h.gateway.onCreate = func() { h.commitBehind(t, d.ID, depositdomain.StatusCaptured, 20000) }

	_, err := h.svc.ReauthorizeDeposit(context.Background(), d.ID, nil)
	if !errors.Is(err, depositdomain.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	got := h.stored(t, d.ID)
	if got.Status != depositdomain.StatusCaptured || got.ActivePaymentIntentID != "pi_hold" {
		t.Fatalf("captured deposit was overwritten: %+v", got)
	}
	if *got.CapturedAmount != 20000 || *got.ReleasedAmount != 0 {
		t.Fatalf("unexpected amounts captured=%d released=%d", *got.CapturedAmount, *got.ReleasedAmount)
	}
	if len(h.gateway.canceled) != 1 || h.gateway.canceled[0] != "pi_hold_2" {
		t.Fatalf("expected only the new hold canceled, got %v", h.gateway.canceled)
	}
	if len(h.notifier.types()) != sent {
		t.Fatalf("expected no notification, got %v", h.notifier.types()[sent:])
	}
}

func TestCaptureDepositDoesNotOverwriteConcurrentCancel(t *testing.T) {
	h := newHarness(t)
	d := h.initialize(t, 20000)
	h.gateway.captureFn = func(id string, _ gatewaydomain.CaptureParams) (*gatewaydomain.PaymentIntent, error) {
		h.commitBehind(t, d.ID, depositdomain.StatusCanceled, 0)
		return &gatewaydomain.PaymentIntent{ID: id, Status: gatewaydomain.IntentStatusSucceeded}, nil
	}

	if _, err := h.svc.CaptureDeposit(context.Background(), d.ID, nil); !errors.Is(err, depositdomain.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	got := h.stored(t, d.ID)
	if got.Status != depositdomain.StatusCanceled || len(got.CaptureHistory) != 0 {
		t.Fatalf("canceled deposit was overwritten: %+v", got)
	}
}

func TestReleaseDepositDoesNotOverwriteConcurrentCapture(t *testing.T) {
	h := newHarness(t)
	d := h.initialize(t, 20000)
	h.gateway.onCancel = func(string) { h.commitBehind(t, d.ID, depositdomain.StatusCaptured, 5000) }

	if _, err := h.svc.ReleaseDeposit(context.Background(), d.ID); !errors.Is(err, depositdomain.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	got := h.stored(t, d.ID)
	if got.Status != depositdomain.StatusCaptured || *got.CapturedAmount != 5000 || *got.ReleasedAmount != 15000 {
		t.Fatalf("captured deposit was overwritten: %+v", got)
	}
}
