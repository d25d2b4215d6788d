package repository

import (
	"context"
	"time"

	webhookdomain "github.com/1rokoko/stripe-deposit-sub000/internal/webhook/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) webhookdomain.Repository {
	return &repo{db: db}
}

func (r *repo) FindEvent(ctx context.Context, provider string, providerEventID string) (*webhookdomain.EventRecord, error) {
	var records []webhookdomain.EventRecord
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, provider, provider_event_id, event_type, deposit_id, payload, received_at, processed_at
		 FROM webhook_events
		 WHERE provider = ? AND provider_event_id = ?
		 LIMIT 1`,
		provider,
		providerEventID,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (r *repo) InsertEvent(ctx context.Context, event *webhookdomain.EventRecord) (bool, error) {
	result := r.db.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (id, provider, provider_event_id, event_type, deposit_id, payload, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		event.ID,
		event.Provider,
		event.ProviderEventID,
		event.EventType,
		event.DepositID,
		event.Payload,
		event.ReceivedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkProcessed(ctx context.Context, id snowflake.ID, processedAt time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE webhook_events SET processed_at = ? WHERE id = ?`,
		processedAt,
		id,
	).Error
}
