package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the received-event log used for dedupe.
type EventRecord struct {
	ID              snowflake.ID
	Provider        string
	ProviderEventID string
	EventType       string
	DepositID       string
	Payload         datatypes.JSON
	ReceivedAt      time.Time
	ProcessedAt     *time.Time
}

type Repository interface {
	FindEvent(ctx context.Context, provider string, providerEventID string) (*EventRecord, error)
	// InsertEvent reports false when the event id was already recorded.
	InsertEvent(ctx context.Context, event *EventRecord) (bool, error)
	MarkProcessed(ctx context.Context, id snowflake.ID, processedAt time.Time) error
}
