package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/1rokoko/stripe-deposit-sub000/internal/clock"
	webhookdomain "github.com/1rokoko/stripe-deposit-sub000/internal/webhook/domain"
)

const (
	HeaderName       = "Stripe-Signature"
	DefaultTolerance = 300 * time.Second
	schemeV1         = "v1"
)

var (
	ErrMissingSecret             = errors.New("missing_webhook_secret")
	ErrMissingHeader             = errors.New("missing_signature_header")
	ErrInvalidHeader             = errors.New("invalid_signature_header")
	ErrNoValidSignature          = errors.New("no_valid_signature")
	ErrTimestampOutsideTolerance = errors.New("timestamp_outside_tolerance")
	ErrInvalidPayload            = errors.New("invalid_payload")
)

// Verifier checks `t=<unix>,v1=<hex>` signatures over "{t}.{body}".
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	clock     clock.Clock
}

func NewVerifier(secret string, tolerance time.Duration, clk clock.Clock) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Verifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		clock:     clk,
	}
}

func (v *Verifier) Verify(payload []byte, header string) (*webhookdomain.Event, error) {
	if len(v.secret) == 0 {
		return nil, ErrMissingSecret
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrMissingHeader
	}

	timestamp, signatures, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	expected := computeSignature(v.secret, timestamp, payload)
	matched := false
	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrNoValidSignature
	}

	age := v.clock.Now().Sub(time.Unix(timestamp, 0))
	if age < 0 {
		age = -age
	}
	if age > v.tolerance {
		return nil, ErrTimestampOutsideTolerance
	}

	var event webhookdomain.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &event, nil
}

// Sign builds a header value for payload; used by tests and local tooling.
func Sign(payload []byte, secret string, at time.Time) string {
	sig := computeSignature([]byte(secret), at.Unix(), payload)
	return fmt.Sprintf("t=%d,%s=%s", at.Unix(), schemeV1, hex.EncodeToString(sig))
}

func parseHeader(header string) (int64, [][]byte, error) {
	var (
		timestamp  int64
		hasTS      bool
		signatures [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return 0, nil, ErrInvalidHeader
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrInvalidHeader
			}
			timestamp = ts
			hasTS = true
		case schemeV1:
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}
	if !hasTS || len(signatures) == 0 {
		return 0, nil, ErrInvalidHeader
	}
	return timestamp, signatures, nil
}

func computeSignature(secret []byte, timestamp int64, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
