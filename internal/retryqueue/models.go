package retryqueue

import (
	"encoding/json"
	"time"
)

// Record is one webhook event awaiting replay.
type Record struct {
	ID            string            `json:"id"`
	Event         json.RawMessage   `json:"event"`
	Attempts      int               `json:"attempts"`
	EnqueuedAt    time.Time         `json:"enqueued_at"`
	LastAttemptAt *time.Time        `json:"last_attempt_at,omitempty"`
	LastError     string            `json:"last_error,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// DeadLetter is a record that exhausted its attempts.
type DeadLetter struct {
	ID             string            `json:"id"`
	RecordID       string            `json:"record_id"`
	Event          json.RawMessage   `json:"event"`
	Attempts       int               `json:"attempts"`
	Reason         string            `json:"reason"`
	LastError      string            `json:"last_error,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	EnqueuedAt     time.Time         `json:"enqueued_at"`
	DeadLetteredAt time.Time         `json:"dead_lettered_at"`
}

type queueRow struct {
	ID            string
	Seq           int64
	Event         string
	Attempts      int
	EnqueuedAt    time.Time
	LastAttemptAt *time.Time
	LastError     string
	Metadata      string
}

func (queueRow) TableName() string { return "webhook_retry_queue" }

type deadLetterRow struct {
	ID             string
	RecordID       string
	Event          string
	Attempts       int
	Reason         string
	LastError      string
	Metadata       string
	EnqueuedAt     time.Time
	DeadLetteredAt time.Time
}

func (deadLetterRow) TableName() string { return "webhook_dead_letters" }

func (r queueRow) toRecord() Record {
	return Record{
		ID:            r.ID,
		Event:         json.RawMessage(r.Event),
		Attempts:      r.Attempts,
		EnqueuedAt:    r.EnqueuedAt,
		LastAttemptAt: r.LastAttemptAt,
		LastError:     r.LastError,
		Metadata:      decodeMetadata(r.Metadata),
	}
}

func (r deadLetterRow) toDeadLetter() DeadLetter {
	return DeadLetter{
		ID:             r.ID,
		RecordID:       r.RecordID,
		Event:          json.RawMessage(r.Event),
		Attempts:       r.Attempts,
		Reason:         r.Reason,
		LastError:      r.LastError,
		Metadata:       decodeMetadata(r.Metadata),
		EnqueuedAt:     r.EnqueuedAt,
		DeadLetteredAt: r.DeadLetteredAt,
	}
}

func encodeMetadata(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeMetadata(s string) map[string]string {
	if s == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
