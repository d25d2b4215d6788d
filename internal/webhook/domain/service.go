package domain

import (
	"context"
	"encoding/json"
	"errors"
)

type Result string

const (
	ResultApplied   Result = "applied"
	ResultIgnored   Result = "ignored"
	ResultQueued    Result = "queued"
	ResultDuplicate Result = "duplicate"
)

// Service accepts signed webhook deliveries.
type Service interface {
	Ingest(ctx context.Context, payload []byte, signatureHeader string) (Result, error)
	// Replay re-applies an already verified event body, used by the retry queue.
	Replay(ctx context.Context, payload json.RawMessage) error
}

var (
	ErrInvalidPayload = errors.New("invalid_payload")
	ErrMissingEventID = errors.New("missing_event_id")
)
