package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	depositdomain "github.com/1rokoko/stripe-deposit-sub000/internal/deposit/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// depositRow keeps the queryable fields in columns and the full record in data.
type depositRow struct {
	ID                    string `gorm:"primaryKey"`
	Status                string
	CustomerID            string
	ActivePaymentIntentID string
	LastAuthorizationAt   *time.Time
	Data                  datatypes.JSON
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (depositRow) TableName() string { return "deposits" }

type gormRepo struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) depositdomain.Repository {
	return &gormRepo{db: db}
}

func (r *gormRepo) Create(ctx context.Context, deposit depositdomain.Deposit) error {
	row, err := toRow(deposit)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Raw(`SELECT COUNT(1) FROM deposits WHERE id = ?`, deposit.ID).Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return depositdomain.ErrAlreadyExists
		}
		return tx.Exec(
			`INSERT INTO deposits (id, status, customer_id, active_payment_intent_id, last_authorization_at, data, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			row.ID,
			row.Status,
			row.CustomerID,
			row.ActivePaymentIntentID,
			row.LastAuthorizationAt,
			row.Data,
			row.CreatedAt,
			row.UpdatedAt,
		).Error
	})
}

func (r *gormRepo) FindByID(ctx context.Context, id string) (*depositdomain.Deposit, error) {
	var row depositRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	deposit, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	return &deposit, nil
}

func (r *gormRepo) Update(ctx context.Context, id string, fn depositdomain.UpdateFunc) (*depositdomain.Deposit, error) {
	var updated depositdomain.Deposit
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row depositRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return depositdomain.ErrNotFound
		}
		if err != nil {
			return err
		}

		current, err := fromRow(row)
		if err != nil {
			return err
		}
		next, err := fn(current.Clone())
		if err != nil {
			return err
		}
		next.ID = current.ID
		next.CreatedAt = current.CreatedAt

		nextRow, err := toRow(next)
		if err != nil {
			return err
		}
		if err := tx.Exec(
			`UPDATE deposits
			 SET status = ?, customer_id = ?, active_payment_intent_id = ?, last_authorization_at = ?, data = ?, updated_at = ?
			 WHERE id = ?`,
			nextRow.Status,
			nextRow.CustomerID,
			nextRow.ActivePaymentIntentID,
			nextRow.LastAuthorizationAt,
			nextRow.Data,
			nextRow.UpdatedAt,
			id,
		).Error; err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *gormRepo) List(ctx context.Context) ([]depositdomain.Deposit, error) {
	var rows []depositRow
	if err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]depositdomain.Deposit, 0, len(rows))
	for _, row := range rows {
		deposit, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		items = append(items, deposit)
	}
	return items, nil
}

func toRow(d depositdomain.Deposit) (depositRow, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return depositRow{}, err
	}
	updatedAt := d.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = d.CreatedAt
	}
	return depositRow{
		ID:                    d.ID,
		Status:                string(d.Status),
		CustomerID:            d.CustomerID,
		ActivePaymentIntentID: d.ActivePaymentIntentID,
		LastAuthorizationAt:   d.LastAuthorizationAt,
		Data:                  datatypes.JSON(data),
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             updatedAt,
	}, nil
}

func fromRow(row depositRow) (depositdomain.Deposit, error) {
	var d depositdomain.Deposit
	if err := json.Unmarshal(row.Data, &d); err != nil {
		return depositdomain.Deposit{}, err
	}
	return d, nil
}
