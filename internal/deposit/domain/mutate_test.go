package domain

import (
	"testing"
	"time"
)

func TestAppendAuthorizationIsIdempotent(t *testing.T) {
	var d Deposit
	if !d.AppendAuthorization(AuthorizationRecord{PaymentIntentID: "pi_1", Amount: 100}) {
		t.Fatal("expected first append to succeed")
	}
	if d.AppendAuthorization(AuthorizationRecord{PaymentIntentID: "pi_1", Amount: 100}) {
		t.Fatal("expected duplicate append to be skipped")
	}
	if len(d.AuthorizationHistory) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(d.AuthorizationHistory))
	}
}

func TestAppendCaptureIsIdempotent(t *testing.T) {
	var d Deposit
	now := time.Now()
	d.AppendCapture(CaptureRecord{PaymentIntentID: "pi_1", Amount: 10, CapturedAt: now})
	d.AppendCapture(CaptureRecord{PaymentIntentID: "pi_1", Amount: 10, CapturedAt: now})
	if len(d.CaptureHistory) != 1 {
		t.Fatalf("expected 1 capture, got %d", len(d.CaptureHistory))
	}
}

func TestSettleBalancesHold(t *testing.T) {
	d := Deposit{HoldAmount: 20000}
	d.Settle(7500)
	if *d.CapturedAmount+*d.ReleasedAmount != d.HoldAmount {
		t.Fatalf("captured %d + released %d != hold %d", *d.CapturedAmount, *d.ReleasedAmount, d.HoldAmount)
	}
	if *d.ReleasedAmount != 12500 {
		t.Fatalf("expected 12500 released, got %d", *d.ReleasedAmount)
	}
}

func TestSettleClampsToHold(t *testing.T) {
	cases := []struct {
		name     string
		captured int64
		want     int64
	}{
		{name: "over hold", captured: 25000, want: 20000},
		{name: "negative", captured: -5, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Deposit{HoldAmount: 20000}
			d.Settle(tc.captured)
			if *d.CapturedAmount != tc.want {
				t.Fatalf("expected captured %d, got %d", tc.want, *d.CapturedAmount)
			}
			if *d.CapturedAmount+*d.ReleasedAmount != d.HoldAmount {
				t.Fatalf("captured %d + released %d != hold %d", *d.CapturedAmount, *d.ReleasedAmount, d.HoldAmount)
			}
		})
	}
}

func TestMarkAuthorizationAuthorizedBackfills(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	d := Deposit{AuthorizationHistory: []AuthorizationRecord{{PaymentIntentID: "pi_1", Amount: 100, Status: StatusRequiresAction}}}

	d.MarkAuthorizationAuthorized("pi_1", 100, at)
	if len(d.AuthorizationHistory) != 1 {
		t.Fatalf("expected backfill not append, got %d entries", len(d.AuthorizationHistory))
	}
	rec := d.AuthorizationHistory[0]
	if rec.Status != StatusAuthorized || rec.AuthorizedAt == nil || !rec.AuthorizedAt.Equal(at) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	d.MarkAuthorizationAuthorized("pi_2", 100, at)
	if len(d.AuthorizationHistory) != 2 {
		t.Fatalf("expected append for unknown intent, got %d entries", len(d.AuthorizationHistory))
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	at := time.Now()
	orig := Deposit{
		Metadata:             map[string]string{"a": "1"},
		AuthorizationHistory: []AuthorizationRecord{{PaymentIntentID: "pi_1", AuthorizedAt: &at}},
		LastError:            &DepositError{Code: "x"},
	}
	cp := orig.Clone()
	cp.Metadata["a"] = "2"
	cp.AuthorizationHistory[0].PaymentIntentID = "pi_2"
	cp.LastError.Code = "y"

	if orig.Metadata["a"] != "1" || orig.AuthorizationHistory[0].PaymentIntentID != "pi_1" || orig.LastError.Code != "x" {
		t.Fatalf("clone aliased original: %+v", orig)
	}
}

func TestMarkAuthorizedKeepsInitial(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)
	var d Deposit
	d.MarkAuthorized(first)
	d.MarkAuthorized(second)
	if !d.InitialAuthorizationAt.Equal(first) || !d.LastAuthorizationAt.Equal(second) {
		t.Fatalf("unexpected timestamps: initial=%v last=%v", d.InitialAuthorizationAt, d.LastAuthorizationAt)
	}
}
