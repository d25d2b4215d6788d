package repository

import (
	"context"
	"errors"

	notificationdomain "github.com/1rokoko/stripe-deposit-sub000/internal/notification/domain"
	"gorm.io/gorm"
)

const defaultListLimit = 100

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) notificationdomain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, record *notificationdomain.Record) error {
	if record == nil {
		return errors.New("missing_notification")
	}
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO notifications (id, type, deposit_id, status, message, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Type,
		record.DepositID,
		record.Status,
		record.Message,
		record.Payload,
		record.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, filter notificationdomain.ListFilter) ([]notificationdomain.Record, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultListLimit
	}

	query := r.db.WithContext(ctx).Table("notifications")
	if filter.DepositID != "" {
		query = query.Where("deposit_id = ?", filter.DepositID)
	}

	var records []notificationdomain.Record
	err := query.
		Select("id, type, deposit_id, status, message, payload, created_at").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
