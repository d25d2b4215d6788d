package repository

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	depositdomain "github.com/1rokoko/stripe-deposit-sub000/internal/deposit/domain"
	"github.com/boltdb/bolt"
)

const depositsBucket = "deposits"

// BoltRepository stores deposits as JSON documents in a single bolt file.
type BoltRepository struct {
	db *bolt.DB
}

func OpenBolt(path string) (*BoltRepository, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(depositsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltRepository{db: db}, nil
}

func (r *BoltRepository) Close() error {
	return r.db.Close()
}

func (r *BoltRepository) Create(ctx context.Context, deposit depositdomain.Deposit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(deposit)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(depositsBucket))
		if b.Get([]byte(deposit.ID)) != nil {
			return depositdomain.ErrAlreadyExists
		}
		return b.Put([]byte(deposit.ID), data)
	})
}

func (r *BoltRepository) FindByID(ctx context.Context, id string) (*depositdomain.Deposit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		deposit depositdomain.Deposit
		found   bool
	)
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(depositsBucket)).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &deposit)
	})
	if err != nil || !found {
		return nil, err
	}
	return &deposit, nil
}

// Update runs fn inside a bolt write transaction; bolt allows one writer at a time.
func (r *BoltRepository) Update(ctx context.Context, id string, fn depositdomain.UpdateFunc) (*depositdomain.Deposit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var updated depositdomain.Deposit
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(depositsBucket))
		v := b.Get([]byte(id))
		if v == nil {
			return depositdomain.ErrNotFound
		}
		var current depositdomain.Deposit
		if err := json.Unmarshal(v, &current); err != nil {
			return err
		}
		next, err := fn(current.Clone())
		if err != nil {
			return err
		}
		next.ID = current.ID
		next.CreatedAt = current.CreatedAt

		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(id), data); err != nil {
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

func (r *BoltRepository) List(ctx context.Context) ([]depositdomain.Deposit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items := []depositdomain.Deposit{}
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(depositsBucket)).ForEach(func(k, v []byte) error {
			var d depositdomain.Deposit
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			items = append(items, d)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}
