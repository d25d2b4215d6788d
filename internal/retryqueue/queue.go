package retryqueue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/1rokoko/stripe-deposit-sub000/internal/clock"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrEmptyEvent       = errors.New("empty_retry_event")
	ErrQueueUnavailable = errors.New("retry_queue_unavailable")
)

// Store is a durable FIFO ordered by a snowflake sequence; requeueing takes a
// fresh sequence so the record moves to the back.
type Store struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewStore(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) *Store {
	return &Store{db: db, genID: genID, clock: clk}
}

func (s *Store) Enqueue(ctx context.Context, event json.RawMessage, metadata map[string]string) (*Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrQueueUnavailable
	}
	if len(strings.TrimSpace(string(event))) == 0 {
		return nil, ErrEmptyEvent
	}
	seq := s.genID.Generate()
	record := Record{
		ID:         "whr_" + seq.String(),
		Event:      event,
		EnqueuedAt: s.clock.Now(),
		Metadata:   metadata,
	}
	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO webhook_retry_queue (id, seq, event, attempts, enqueued_at, last_error, metadata)
		 VALUES (?, ?, ?, 0, ?, '', ?)`,
		record.ID,
		seq.Int64(),
		string(event),
		record.EnqueuedAt,
		encodeMetadata(metadata),
	).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Drain removes and returns up to limit of the oldest records.
func (s *Store) Drain(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrQueueUnavailable
	}
	if limit <= 0 {
		return nil, nil
	}
	var records []Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []queueRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Order("seq ASC").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]string, 0, len(rows))
		records = make([]Record, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
			records = append(records, row.toRecord())
		}
		return tx.Exec(`DELETE FROM webhook_retry_queue WHERE id IN ?`, ids).Error
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Requeue counts a failed attempt and appends the record to the back.
func (s *Store) Requeue(ctx context.Context, record Record, cause error) (*Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrQueueUnavailable
	}
	now := s.clock.Now()
	record.Attempts++
	record.LastAttemptAt = &now
	if cause != nil {
		record.LastError = cause.Error()
	}
	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO webhook_retry_queue (id, seq, event, attempts, enqueued_at, last_attempt_at, last_error, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		s.genID.Generate().Int64(),
		string(record.Event),
		record.Attempts,
		record.EnqueuedAt,
		record.LastAttemptAt,
		record.LastError,
		encodeMetadata(record.Metadata),
	).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// DeadLetter moves the record to terminal storage and out of the active queue.
func (s *Store) DeadLetter(ctx context.Context, record Record, reason string) (*DeadLetter, error) {
	if s == nil || s.db == nil {
		return nil, ErrQueueUnavailable
	}
	dl := DeadLetter{
		ID:             "whd_" + s.genID.Generate().String(),
		RecordID:       record.ID,
		Event:          record.Event,
		Attempts:       record.Attempts,
		Reason:         reason,
		LastError:      record.LastError,
		Metadata:       record.Metadata,
		EnqueuedAt:     record.EnqueuedAt,
		DeadLetteredAt: s.clock.Now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM webhook_retry_queue WHERE id = ?`, record.ID).Error; err != nil {
			return err
		}
		return tx.Exec(
			`INSERT INTO webhook_dead_letters (id, record_id, event, attempts, reason, last_error, metadata, enqueued_at, dead_lettered_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			dl.ID,
			dl.RecordID,
			string(dl.Event),
			dl.Attempts,
			dl.Reason,
			dl.LastError,
			encodeMetadata(dl.Metadata),
			dl.EnqueuedAt,
			dl.DeadLetteredAt,
		).Error
	})
	if err != nil {
		return nil, err
	}
	return &dl, nil
}

func (s *Store) Size(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM webhook_retry_queue`).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Peek lists queued records in drain order without removing them.
func (s *Store) Peek(ctx context.Context, limit int) ([]Record, error) {
	var rows []queueRow
	if err := s.db.WithContext(ctx).Order("seq ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

func (s *Store) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []deadLetterRow
	if err := s.db.WithContext(ctx).Order("dead_lettered_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]DeadLetter, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDeadLetter())
	}
	return out, nil
}
