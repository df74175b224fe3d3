// Package store defines the persistence port consumed by the ledger,
// the category registry and the import pipeline.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/finledger/internal/id"
	"github.com/cleared-dev/finledger/internal/model"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// TransactionFields holds the caller-supplied columns of a new transaction.
type TransactionFields struct {
	Title      string
	Value      decimal.Decimal
	Type       model.TransactionType
	CategoryID string
}

// Store is the persistence port.
//
// SaveCategories is an upsert keyed on the exact title: for every input row
// it returns the stored row for that title, which is the input itself when
// the title was new and the pre-existing row otherwise. Adapters enforce
// this atomically, so there is never more than one category per title.
//
// Atomic runs fn as one unit of work against a transactional view of the
// store. Units of work are serialized against each other. If fn returns an
// error nothing it wrote is kept. Calling Atomic on the view passed to fn
// joins the enclosing unit.
type Store interface {
	FindAllTransactions(ctx context.Context) ([]model.Transaction, error)
	FindCategoryByTitle(ctx context.Context, title string) (model.Category, bool, error)
	FindAllCategories(ctx context.Context) ([]model.Category, error)
	NewCategory(title string) model.Category
	SaveCategories(ctx context.Context, categories []model.Category) ([]model.Category, error)
	NewTransaction(fields TransactionFields) model.Transaction
	SaveTransactions(ctx context.Context, transactions []model.Transaction) ([]model.Transaction, error)
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	Close() error
}

// NewCategory builds an unsaved category stamped with now.
func NewCategory(now time.Time, title string) model.Category {
	return model.Category{
		ID:        id.New(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTransaction builds an unsaved transaction stamped with now.
func NewTransaction(now time.Time, f TransactionFields) model.Transaction {
	return model.Transaction{
		ID:         id.New(),
		Title:      f.Title,
		Value:      f.Value,
		Type:       f.Type,
		CategoryID: f.CategoryID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// FillCategory assigns an ID and timestamps to c where they are missing.
func FillCategory(now time.Time, c model.Category) model.Category {
	if c.ID == "" {
		c.ID = id.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	return c
}

// FillTransaction assigns an ID and timestamps to t where they are missing.
func FillTransaction(now time.Time, t model.Transaction) model.Transaction {
	if t.ID == "" {
		t.ID = id.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	return t
}
