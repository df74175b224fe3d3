// Package ledger records single transactions and enforces the overdraft
// rule: an outcome may never exceed the current total.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/finledger/internal/categories"
	"github.com/cleared-dev/finledger/internal/logger"
	"github.com/cleared-dev/finledger/internal/model"
	"github.com/cleared-dev/finledger/internal/store"
)

var (
	// ErrInvalidTransactionType is returned when the type is not exactly income or outcome.
	ErrInvalidTransactionType = errors.New("transaction type not allowed")
	// ErrInsufficientFunds is returned when an outcome exceeds the current total.
	ErrInsufficientFunds = errors.New("transaction value greater than the available balance")
	// ErrEmptyTitle is returned for a blank title.
	ErrEmptyTitle = errors.New("transaction title is required")
	// ErrNonPositiveValue is returned for a zero or negative value.
	ErrNonPositiveValue = errors.New("transaction value must be positive")
)

// Service provides business logic for ledger transactions.
type Service struct {
	store      store.Store
	categories *categories.Registry
}

// NewService creates a ledger Service.
func NewService(s store.Store) *Service {
	return &Service{store: s, categories: categories.NewRegistry(s)}
}

// CreateParams holds parameters for recording a transaction.
type CreateParams struct {
	Title    string
	Value    decimal.Decimal
	Type     model.TransactionType
	Category string // category title, created if absent
}

// CreateTransaction validates params, resolves the category and records the
// transaction.
//
// The category is resolved and committed before the balance check, so a new
// category persists even when the transaction is then rejected with
// ErrInsufficientFunds. The balance read and the insert share one unit of
// work, so concurrent outcomes cannot jointly overdraw the ledger.
func (s *Service) CreateTransaction(ctx context.Context, params CreateParams) (model.Transaction, error) {
	if !params.Type.Valid() {
		return model.Transaction{}, fmt.Errorf("%w: %q", ErrInvalidTransactionType, params.Type)
	}
	if strings.TrimSpace(params.Title) == "" {
		return model.Transaction{}, ErrEmptyTitle
	}
	if !params.Value.IsPositive() {
		return model.Transaction{}, fmt.Errorf("%w: %s", ErrNonPositiveValue, params.Value)
	}

	category, err := s.categories.Resolve(ctx, params.Category)
	if err != nil {
		return model.Transaction{}, err
	}

	var created model.Transaction
	err = s.store.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		balance, err := NewCalculator(tx).GetBalance(ctx)
		if err != nil {
			return err
		}
		if params.Type == model.TypeOutcome && params.Value.GreaterThan(balance.Total) {
			return fmt.Errorf("%w: value %s, available %s",
				ErrInsufficientFunds, params.Value.StringFixed(2), balance.Total.StringFixed(2))
		}

		saved, err := tx.SaveTransactions(ctx, []model.Transaction{
			tx.NewTransaction(store.TransactionFields{
				Title:      params.Title,
				Value:      params.Value,
				Type:       params.Type,
				CategoryID: category.ID,
			}),
		})
		if err != nil {
			return fmt.Errorf("saving transaction: %w", err)
		}
		created = saved[0]
		return nil
	})
	if err != nil {
		return model.Transaction{}, err
	}

	logger.FromContext(ctx).Info().
		Str("transaction_id", created.ID).
		Str("type", string(created.Type)).
		Str("value", created.Value.String()).
		Str("category", category.Title).
		Msg("transaction created")
	return created, nil
}

// Balance returns the current balance.
func (s *Service) Balance(ctx context.Context) (model.Balance, error) {
	return NewCalculator(s.store).GetBalance(ctx)
}

// ListTransactions returns all transactions in insertion order.
func (s *Service) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	txns, err := s.store.FindAllTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return txns, nil
}
