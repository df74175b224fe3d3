package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/finledger/internal/model"
	"github.com/cleared-dev/finledger/internal/store"
	"github.com/cleared-dev/finledger/internal/store/csvfile"
	"github.com/cleared-dev/finledger/internal/store/memory"
	"github.com/cleared-dev/finledger/internal/store/sqlite"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// adapters returns one fresh store per adapter so the ledger rules are
// checked against every persistence backend.
func adapters(t *testing.T) map[string]func(t *testing.T) store.Store {
	t.Helper()
	return map[string]func(t *testing.T) store.Store{
		"memory": func(t *testing.T) store.Store { return memory.New() },
		"csvfile": func(t *testing.T) store.Store {
			s, err := csvfile.Open(filepath.Join(t.TempDir(), "data"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) store.Store {
			s, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func countTransactions(t *testing.T, s store.Store) int {
	t.Helper()
	txns, err := s.FindAllTransactions(context.Background())
	require.NoError(t, err)
	return len(txns)
}

func countCategories(t *testing.T, s store.Store) int {
	t.Helper()
	cats, err := s.FindAllCategories(context.Background())
	require.NoError(t, err)
	return len(cats)
}

func TestScenarioA(t *testing.T) {
	for name, newStore := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			svc := NewService(s)

			_, err := svc.CreateTransaction(ctx, CreateParams{Title: "Salary", Value: dec("1000"), Type: model.TypeIncome, Category: "Salary"})
			require.NoError(t, err)
			bal, err := svc.Balance(ctx)
			require.NoError(t, err)
			assert.True(t, bal.Total.Equal(dec("1000")), "total: %s", bal.Total)

			_, err = svc.CreateTransaction(ctx, CreateParams{Title: "Rent", Value: dec("1200"), Type: model.TypeOutcome, Category: "Rent"})
			require.ErrorIs(t, err, ErrInsufficientFunds)
			bal, err = svc.Balance(ctx)
			require.NoError(t, err)
			assert.True(t, bal.Total.Equal(dec("1000")), "total: %s", bal.Total)

			_, err = svc.CreateTransaction(ctx, CreateParams{Title: "Rent", Value: dec("300"), Type: model.TypeOutcome, Category: "Rent"})
			require.NoError(t, err)
			bal, err = svc.Balance(ctx)
			require.NoError(t, err)
			assert.True(t, bal.Income.Equal(dec("1000")))
			assert.True(t, bal.Outcome.Equal(dec("300")))
			assert.True(t, bal.Total.Equal(dec("700")), "total: %s", bal.Total)

			assert.Equal(t, 2, countTransactions(t, s))
			assert.Equal(t, 2, countCategories(t, s))
		})
	}
}

func TestCreateTransaction_InvalidType(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := NewService(s)

	for _, typ := range []model.TransactionType{"", "Income", "transfer", "outcome "} {
		_, err := svc.CreateTransaction(ctx, CreateParams{Title: "x", Value: dec("1"), Type: typ, Category: "Misc"})
		require.ErrorIs(t, err, ErrInvalidTransactionType, "type %q", typ)
	}

	assert.Zero(t, countCategories(t, s), "no side effect before the type check")
	assert.Zero(t, countTransactions(t, s))
}

func TestCreateTransaction_InputValidation(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := NewService(s)

	_, err := svc.CreateTransaction(ctx, CreateParams{Title: "  ", Value: dec("1"), Type: model.TypeIncome, Category: "Misc"})
	assert.ErrorIs(t, err, ErrEmptyTitle)

	_, err = svc.CreateTransaction(ctx, CreateParams{Title: "Zero", Value: decimal.Zero, Type: model.TypeIncome, Category: "Misc"})
	assert.ErrorIs(t, err, ErrNonPositiveValue)

	_, err = svc.CreateTransaction(ctx, CreateParams{Title: "Negative", Value: dec("-5"), Type: model.TypeIncome, Category: "Misc"})
	assert.ErrorIs(t, err, ErrNonPositiveValue)

	assert.Zero(t, countCategories(t, s))
}

func TestCreateTransaction_InsufficientFundsKeepsNewCategory(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := NewService(s)

	_, err := svc.CreateTransaction(ctx, CreateParams{Title: "Laptop", Value: dec("900"), Type: model.TypeOutcome, Category: "Electronics"})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "value 900.00, available 0.00")

	assert.Zero(t, countTransactions(t, s))
	cats := s.Snapshot().Categories
	require.Len(t, cats, 1, "category resolution is committed before the balance check")
	assert.Equal(t, "Electronics", cats[0].Title)
}

func TestCreateTransaction_OutcomeEqualToTotal(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New())

	_, err := svc.CreateTransaction(ctx, CreateParams{Title: "Pay", Value: dec("250.75"), Type: model.TypeIncome, Category: "Salary"})
	require.NoError(t, err)
	_, err = svc.CreateTransaction(ctx, CreateParams{Title: "All of it", Value: dec("250.75"), Type: model.TypeOutcome, Category: "Misc"})
	require.NoError(t, err)

	bal, err := svc.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.Total.IsZero(), "total: %s", bal.Total)
}

func TestCreateTransaction_ReturnsStoredRow(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := NewService(s)

	txn, err := svc.CreateTransaction(ctx, CreateParams{Title: "Pay", Value: dec("10"), Type: model.TypeIncome, Category: "Salary"})
	require.NoError(t, err)
	assert.NotEmpty(t, txn.ID)
	assert.False(t, txn.CreatedAt.IsZero())

	cat, ok, err := s.FindCategoryByTitle(ctx, "Salary")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cat.ID, txn.CategoryID)

	all, err := svc.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, txn.ID, all[0].ID)
}

func TestCreateTransaction_ReusesCategory(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := NewService(s)

	a, err := svc.CreateTransaction(ctx, CreateParams{Title: "Jan", Value: dec("10"), Type: model.TypeIncome, Category: "Salary"})
	require.NoError(t, err)
	b, err := svc.CreateTransaction(ctx, CreateParams{Title: "Feb", Value: dec("10"), Type: model.TypeIncome, Category: "Salary"})
	require.NoError(t, err)

	assert.Equal(t, a.CategoryID, b.CategoryID)
	assert.Equal(t, 1, countCategories(t, s))
}

func TestBalanceMatchesSumOfTransactions(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New())

	steps := []CreateParams{
		{Title: "a", Value: dec("100.10"), Type: model.TypeIncome, Category: "Salary"},
		{Title: "b", Value: dec("0.10"), Type: model.TypeOutcome, Category: "Fees"},
		{Title: "c", Value: dec("0.20"), Type: model.TypeOutcome, Category: "Fees"},
		{Title: "d", Value: dec("500"), Type: model.TypeOutcome, Category: "Rent"}, // rejected
		{Title: "e", Value: dec("33.33"), Type: model.TypeIncome, Category: "Gift"},
		{Title: "f", Value: dec("133.13"), Type: model.TypeOutcome, Category: "Rent"},
	}
	income, outcome := decimal.Zero, decimal.Zero
	for _, p := range steps {
		pre, err := svc.Balance(ctx)
		require.NoError(t, err)

		_, err = svc.CreateTransaction(ctx, p)
		post, balErr := svc.Balance(ctx)
		require.NoError(t, balErr)

		if err != nil {
			require.ErrorIs(t, err, ErrInsufficientFunds)
			assert.True(t, p.Value.GreaterThan(pre.Total))
			assert.True(t, post.Total.Equal(pre.Total))
			continue
		}
		if p.Type == model.TypeIncome {
			income = income.Add(p.Value)
		} else {
			outcome = outcome.Add(p.Value)
			assert.True(t, post.Total.Equal(pre.Total.Sub(p.Value)))
		}
		assert.False(t, post.Total.IsNegative())
	}

	bal, err := svc.Balance(ctx)
	require.NoError(t, err)
	assert.True(t, bal.Total.Equal(income.Sub(outcome)), "total %s, want %s", bal.Total, income.Sub(outcome))
	assert.True(t, bal.Total.IsZero(), "total: %s", bal.Total)
}

func TestConcurrentOutcomesNeverOverdraw(t *testing.T) {
	for name, newStore := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			svc := NewService(s)

			_, err := svc.CreateTransaction(ctx, CreateParams{Title: "Pay", Value: dec("100"), Type: model.TypeIncome, Category: "Salary"})
			require.NoError(t, err)

			const workers = 10
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
			)
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := svc.CreateTransaction(ctx, CreateParams{Title: "Spend", Value: dec("30"), Type: model.TypeOutcome, Category: "Shopping"})
					if err == nil {
						mu.Lock()
						succeeded++
						mu.Unlock()
						return
					}
					assert.ErrorIs(t, err, ErrInsufficientFunds)
				}()
			}
			wg.Wait()

			assert.Equal(t, 3, succeeded)
			bal, err := svc.Balance(ctx)
			require.NoError(t, err)
			assert.True(t, bal.Total.Equal(dec("10")), "total: %s", bal.Total)
			assert.Equal(t, 2, countCategories(t, s))
		})
	}
}

// twoHandles opens the same on-disk ledger twice, the way two finledger
// processes would.
func twoHandles(t *testing.T) map[string]func(t *testing.T) (store.Store, store.Store) {
	t.Helper()
	return map[string]func(t *testing.T) (store.Store, store.Store){
		"csvfile": func(t *testing.T) (store.Store, store.Store) {
			dir := filepath.Join(t.TempDir(), "data")
			a, err := csvfile.Open(dir)
			require.NoError(t, err)
			b, err := csvfile.Open(dir)
			require.NoError(t, err)
			return a, b
		},
		"sqlite": func(t *testing.T) (store.Store, store.Store) {
			path := filepath.Join(t.TempDir(), "ledger.db")
			a, err := sqlite.Open(path)
			require.NoError(t, err)
			t.Cleanup(func() { _ = a.Close() })
			b, err := sqlite.Open(path)
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })
			return a, b
		},
	}
}

func TestConcurrentOutcomesAcrossHandlesNeverOverdraw(t *testing.T) {
	for name, open := range twoHandles(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, b := open(t)
			services := []*Service{NewService(a), NewService(b)}

			_, err := services[0].CreateTransaction(ctx, CreateParams{Title: "Pay", Value: dec("100"), Type: model.TypeIncome, Category: "Salary"})
			require.NoError(t, err)

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
			)
			for i := range 10 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := services[i%2].CreateTransaction(ctx, CreateParams{Title: "Spend", Value: dec("30"), Type: model.TypeOutcome, Category: "Shopping"})
					if err == nil {
						mu.Lock()
						succeeded++
						mu.Unlock()
						return
					}
					assert.ErrorIs(t, err, ErrInsufficientFunds)
				}()
			}
			wg.Wait()

			assert.Equal(t, 3, succeeded)
			// A write through each handle refreshes its view of the ledger.
			for _, svc := range services {
				_, err := svc.CreateTransaction(ctx, CreateParams{Title: "Top-up", Value: dec("0.01"), Type: model.TypeIncome, Category: "Salary"})
				require.NoError(t, err)
			}
			bal, err := services[1].Balance(ctx)
			require.NoError(t, err)
			assert.True(t, bal.Total.Equal(dec("10.02")), "total: %s", bal.Total)
			assert.Equal(t, 2, countCategories(t, b))
		})
	}
}
