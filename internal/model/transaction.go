package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a transaction as money in or money out.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeOutcome TransactionType = "outcome"
)

// Valid reports whether t is exactly "income" or "outcome".
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeOutcome
}

// Transaction is a single ledger row.
type Transaction struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Value      decimal.Decimal `json:"value"`
	Type       TransactionType `json:"type"`
	CategoryID string          `json:"category_id"` // empty = unresolved
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Balance is the derived income/outcome summary over the ledger.
type Balance struct {
	Income  decimal.Decimal `json:"income"`
	Outcome decimal.Decimal `json:"outcome"`
	Total   decimal.Decimal `json:"total"`
}
