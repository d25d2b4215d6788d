package domain

import "context"

// UpdateFunc receives a private copy of the current deposit and returns the
// version to store. Returning an error aborts the write.
type UpdateFunc func(current Deposit) (Deposit, error)

type Repository interface {
	Create(ctx context.Context, deposit Deposit) error
	// FindByID returns nil, nil when the deposit does not exist.
	FindByID(ctx context.Context, id string) (*Deposit, error)
	// Update is an atomic read-modify-write for a single deposit.
	Update(ctx context.Context, id string, fn UpdateFunc) (*Deposit, error)
	List(ctx context.Context) ([]Deposit, error)
}
