package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/finledger/internal/model"
	"github.com/cleared-dev/finledger/internal/store"
)

// Calculator derives the balance from the full transaction set.
// Every call is a full re-scan; nothing is cached.
type Calculator struct {
	store store.Store
}

// NewCalculator creates a Calculator over s.
func NewCalculator(s store.Store) *Calculator {
	return &Calculator{store: s}
}

// GetBalance reads every transaction and returns the income/outcome totals.
func (c *Calculator) GetBalance(ctx context.Context) (model.Balance, error) {
	txns, err := c.store.FindAllTransactions(ctx)
	if err != nil {
		return model.Balance{}, fmt.Errorf("loading transactions: %w", err)
	}
	return Summarize(txns), nil
}

// Summarize folds txns into a Balance. Rows whose type is neither income
// nor outcome count towards neither side.
func Summarize(txns []model.Transaction) model.Balance {
	income := decimal.Zero
	outcome := decimal.Zero
	for _, t := range txns {
		switch t.Type {
		case model.TypeIncome:
			income = income.Add(t.Value)
		case model.TypeOutcome:
			outcome = outcome.Add(t.Value)
		}
	}
	return model.Balance{
		Income:  income,
		Outcome: outcome,
		Total:   income.Sub(outcome),
	}
}
