package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	TypeDepositAuthorized          = "deposit.authorized"
	TypeDepositRequiresAction      = "deposit.requires_action"
	TypeDepositProcessing          = "deposit.processing"
	TypeDepositCaptured            = "deposit.captured"
	TypeDepositReleased            = "deposit.released"
	TypeDepositCanceled            = "deposit.canceled"
	TypeDepositAuthorizationFailed = "deposit.authorization_failed"
)

// Notification is what callers hand to the sink.
type Notification struct {
	Type      string
	DepositID string
	Status    string
	Message   string
	Payload   map[string]any
}

// Record is the stored, immutable form of a notification.
type Record struct {
	ID        snowflake.ID      `json:"id"`
	Type      string            `json:"type"`
	DepositID string            `json:"deposit_id"`
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Payload   datatypes.JSONMap `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"timestamp"`
}

// Notifier must never fail the caller; errors are logged by the implementation.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type ListFilter struct {
	DepositID string
	Limit     int
}

type Repository interface {
	Insert(ctx context.Context, record *Record) error
	List(ctx context.Context, filter ListFilter) ([]Record, error)
}

type Service interface {
	Notifier
	List(ctx context.Context, filter ListFilter) ([]Record, error)
}
