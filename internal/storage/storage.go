// Package storage defines the backend contract shared by every storage
// generation of the ledger: the legacy flat file, the two-table sqlite
// schema, and the normalized relational schema.
package storage

import (
	"context"
	"time"

	"dayledger/internal/models"
)

// Item is one validated line of a submission batch.
type Item struct {
	Kind   models.TransactionKind
	Name   string
	Amount int64
}

// DateRange bounds a query. Nil endpoints are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls within the range.
func (r *DateRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// Update carries the editable transaction fields. Nil means unchanged.
// Kind is deliberately absent: it is immutable after creation.
type Update struct {
	Description *string
	Amount      *int64
}

// Backend is the storage contract implemented by every generation.
//
// Every mutation executes inside exactly one transaction scope: either
// through WithTransaction, or implicitly because the operation wraps
// itself. On any error inside a scope all mutations performed within it
// are rolled back before the error is returned; no partial write is ever
// observable outside the scope. Backend-native failures are translated
// into the errors package taxonomy at this boundary and never leak in
// their raw form. Operations respect the deadline on ctx; contention is
// surfaced as ErrStorageBusy, distinct from constraint violations.
type Backend interface {
	// WithTransaction runs fn inside one atomic unit of work. fn receives
	// a Backend view scoped to that unit; the unit commits only if fn
	// returns nil, otherwise everything it did is rolled back and the
	// error is propagated unchanged.
	WithTransaction(ctx context.Context, fn func(tx Backend) error) error

	// InsertTransactions inserts a non-empty ordered batch for one owner
	// as a single atomic unit, all items carrying the same date. It
	// returns the assigned ids in insertion order.
	InsertTransactions(ctx context.Context, ownerID uint, date time.Time, items []Item) ([]uint, error)

	// QueryByOwner returns the owner's transactions ordered by date
	// ascending then insertion order, ties broken by id.
	QueryByOwner(ctx context.Context, ownerID uint, rng *DateRange) ([]models.Transaction, error)

	// UpdateTransaction edits description and/or amount of a transaction
	// the owner holds. A miss, whether the id does not exist or belongs
	// to someone else, is ErrTransactionNotFound in both cases.
	UpdateTransaction(ctx context.Context, id, ownerID uint, upd Update) error

	// DeleteTransaction removes a transaction with the same
	// ownership-scoped miss semantics as UpdateTransaction.
	DeleteTransaction(ctx context.Context, id, ownerID uint) error

	// DeleteUser removes the user and cascades to all of their
	// transactions within one atomic unit.
	DeleteUser(ctx context.Context, ownerID uint) error

	// CountTransactions reports the total number of stored transactions
	// across all owners. The migration engine uses it as its
	// duplication guard.
	CountTransactions(ctx context.Context) (int64, error)

	// Close releases the underlying medium.
	Close() error
}

// UserDirectory is implemented by generations that store users natively
// (the normalized schema). The legacy single-owner generations do not.
type UserDirectory interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
}
