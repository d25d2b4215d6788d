package domain

import "time"

// Clone returns a deep copy so updater functions never alias stored state.
func (d Deposit) Clone() Deposit {
	out := d
	if d.AuthorizationHistory != nil {
		out.AuthorizationHistory = make([]AuthorizationRecord, len(d.AuthorizationHistory))
		for i, rec := range d.AuthorizationHistory {
			rec.AuthorizedAt = cloneTime(rec.AuthorizedAt)
			out.AuthorizationHistory[i] = rec
		}
	}
	if d.CaptureHistory != nil {
		out.CaptureHistory = append([]CaptureRecord(nil), d.CaptureHistory...)
	}
	out.InitialAuthorizationAt = cloneTime(d.InitialAuthorizationAt)
	out.LastAuthorizationAt = cloneTime(d.LastAuthorizationAt)
	out.CapturedAt = cloneTime(d.CapturedAt)
	out.ReleasedAt = cloneTime(d.ReleasedAt)
	out.CanceledAt = cloneTime(d.CanceledAt)
	out.CapturedAmount = cloneInt(d.CapturedAmount)
	out.ReleasedAmount = cloneInt(d.ReleasedAmount)
	if d.ActionRequired != nil {
		action := *d.ActionRequired
		action.NextAction = append([]byte(nil), d.ActionRequired.NextAction...)
		out.ActionRequired = &action
	}
	if d.LastError != nil {
		lastErr := *d.LastError
		out.LastError = &lastErr
	}
	out.Metadata = MergeMetadata(nil, d.Metadata)
	return out
}

// MergeMetadata overlays extra onto base without mutating either.
func MergeMetadata(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (d Deposit) HasAuthorization(paymentIntentID string) bool {
	return d.authorizationIndex(paymentIntentID) >= 0
}

func (d Deposit) HasCapture(paymentIntentID string) bool {
	for _, rec := range d.CaptureHistory {
		if rec.PaymentIntentID == paymentIntentID {
			return true
		}
	}
	return false
}

// AppendAuthorization adds a history entry unless one exists for the intent.
func (d *Deposit) AppendAuthorization(rec AuthorizationRecord) bool {
	if rec.PaymentIntentID == "" || d.HasAuthorization(rec.PaymentIntentID) {
		return false
	}
	d.AuthorizationHistory = append(d.AuthorizationHistory, rec)
	return true
}

// MarkAuthorizationAuthorized backfills the entry for the intent, appending
// one when absent.
func (d *Deposit) MarkAuthorizationAuthorized(paymentIntentID string, amount int64, at time.Time) {
	authorizedAt := at
	if idx := d.authorizationIndex(paymentIntentID); idx >= 0 {
		rec := d.AuthorizationHistory[idx]
		if rec.AuthorizedAt == nil {
			rec.AuthorizedAt = &authorizedAt
		}
		rec.Status = StatusAuthorized
		d.AuthorizationHistory[idx] = rec
		return
	}
	d.AuthorizationHistory = append(d.AuthorizationHistory, AuthorizationRecord{
		PaymentIntentID: paymentIntentID,
		Amount:          amount,
		AuthorizedAt:    &authorizedAt,
		Status:          StatusAuthorized,
	})
}

// SetAuthorizationStatus updates the history entry for the intent, if any.
func (d *Deposit) SetAuthorizationStatus(paymentIntentID string, status Status) {
	if idx := d.authorizationIndex(paymentIntentID); idx >= 0 {
		d.AuthorizationHistory[idx].Status = status
	}
}

// AppendCapture adds a capture entry unless one exists for the intent.
func (d *Deposit) AppendCapture(rec CaptureRecord) bool {
	if rec.PaymentIntentID == "" || d.HasCapture(rec.PaymentIntentID) {
		return false
	}
	d.CaptureHistory = append(d.CaptureHistory, rec)
	return true
}

// Settle records captured and released amounts that always sum to the hold.
// Captured is clamped to [0, HoldAmount].
func (d *Deposit) Settle(captured int64) {
	if captured < 0 {
		captured = 0
	}
	if captured > d.HoldAmount {
		captured = d.HoldAmount
	}
	released := d.HoldAmount - captured
	d.CapturedAmount = &captured
	d.ReleasedAmount = &released
}

// MarkAuthorized stamps authorization times, keeping the initial one.
func (d *Deposit) MarkAuthorized(at time.Time) {
	last := at
	d.LastAuthorizationAt = &last
	if d.InitialAuthorizationAt == nil {
		initial := at
		d.InitialAuthorizationAt = &initial
	}
}

func (d *Deposit) ClearTransient() {
	d.ActionRequired = nil
	d.LastError = nil
}

func (d Deposit) authorizationIndex(paymentIntentID string) int {
	for i, rec := range d.AuthorizationHistory {
		if rec.PaymentIntentID == paymentIntentID {
			return i
		}
	}
	return -1
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func Int64(v int64) *int64 { return &v }
