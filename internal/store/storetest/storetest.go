// Package storetest holds the behavioural contract every store.Store
// adapter must satisfy. Adapter packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/finledger/internal/model"
	"github.com/cleared-dev/finledger/internal/store"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Store

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Empty", func(t *testing.T) { testEmpty(t, newStore(t)) })
	t.Run("SaveAndFindCategories", func(t *testing.T) { testSaveAndFindCategories(t, newStore(t)) })
	t.Run("CategoryUpsertByTitle", func(t *testing.T) { testCategoryUpsert(t, newStore(t)) })
	t.Run("CategoryTitleCaseSensitive", func(t *testing.T) { testCategoryCaseSensitive(t, newStore(t)) })
	t.Run("SaveTransactions", func(t *testing.T) { testSaveTransactions(t, newStore(t)) })
	t.Run("UnresolvedCategory", func(t *testing.T) { testUnresolvedCategory(t, newStore(t)) })
	t.Run("AtomicCommit", func(t *testing.T) { testAtomicCommit(t, newStore(t)) })
	t.Run("AtomicRollback", func(t *testing.T) { testAtomicRollback(t, newStore(t)) })
	t.Run("ConcurrentCategoryUpsert", func(t *testing.T) { testConcurrentUpsert(t, newStore(t)) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, newStore(t)) })
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testEmpty(t *testing.T, s store.Store) {
	ctx := context.Background()

	txns, err := s.FindAllTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txns)

	cats, err := s.FindAllCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)

	_, ok, err := s.FindCategoryByTitle(ctx, "Salary")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testSaveAndFindCategories(t *testing.T, s store.Store) {
	ctx := context.Background()

	unsaved := []model.Category{s.NewCategory("Salary"), s.NewCategory("Housing")}
	assert.NotEmpty(t, unsaved[0].ID)
	assert.False(t, unsaved[0].CreatedAt.IsZero())

	saved, err := s.SaveCategories(ctx, unsaved)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, unsaved[0].ID, saved[0].ID)
	assert.Equal(t, unsaved[1].ID, saved[1].ID)

	got, ok, err := s.FindCategoryByTitle(ctx, "Housing")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved[1].ID, got.ID)
	assert.Equal(t, "Housing", got.Title)

	all, err := s.FindAllCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testCategoryUpsert(t *testing.T, s store.Store) {
	ctx := context.Background()

	first, err := s.SaveCategories(ctx, []model.Category{s.NewCategory("Food")})
	require.NoError(t, err)

	second, err := s.SaveCategories(ctx, []model.Category{s.NewCategory("Food"), s.NewCategory("Fuel")})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].ID, second[0].ID, "existing title must return the stored row")

	all, err := s.FindAllCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testCategoryCaseSensitive(t *testing.T, s store.Store) {
	ctx := context.Background()

	saved, err := s.SaveCategories(ctx, []model.Category{s.NewCategory("food"), s.NewCategory("Food")})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.NotEqual(t, saved[0].ID, saved[1].ID)

	_, ok, err := s.FindCategoryByTitle(ctx, "FOOD")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testSaveTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()

	cats, err := s.SaveCategories(ctx, []model.Category{s.NewCategory("Salary")})
	require.NoError(t, err)

	in := []model.Transaction{
		s.NewTransaction(store.TransactionFields{Title: "January", Value: dec("1000.50"), Type: model.TypeIncome, CategoryID: cats[0].ID}),
		s.NewTransaction(store.TransactionFields{Title: "Bonus", Value: dec("0.10"), Type: model.TypeIncome, CategoryID: cats[0].ID}),
	}
	saved, err := s.SaveTransactions(ctx, in)
	require.NoError(t, err)
	require.Len(t, saved, 2)

	got, err := s.FindAllTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, in[0].ID, got[0].ID, "insertion order must be kept")
	assert.Equal(t, "January", got[0].Title)
	assert.True(t, got[0].Value.Equal(dec("1000.50")), "value: got %s", got[0].Value)
	assert.True(t, got[1].Value.Equal(dec("0.10")), "value: got %s", got[1].Value)
	assert.Equal(t, model.TypeIncome, got[0].Type)
	assert.Equal(t, cats[0].ID, got[0].CategoryID)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func testUnresolvedCategory(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.SaveTransactions(ctx, []model.Transaction{
		s.NewTransaction(store.TransactionFields{Title: "Orphan", Value: dec("5"), Type: "transfer"}),
	})
	require.NoError(t, err)

	got, err := s.FindAllTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].CategoryID)
	assert.Equal(t, model.TransactionType("transfer"), got[0].Type, "type is stored uninterpreted")
}

func testAtomicCommit(t *testing.T, s store.Store) {
	ctx := context.Background()

	err := s.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		cats, err := tx.SaveCategories(ctx, []model.Category{tx.NewCategory("Rent")})
		if err != nil {
			return err
		}
		// Writes are visible inside the unit.
		if _, ok, err := tx.FindCategoryByTitle(ctx, "Rent"); err != nil || !ok {
			return fmt.Errorf("category not visible in unit: ok=%v err=%v", ok, err)
		}
		_, err = tx.SaveTransactions(ctx, []model.Transaction{
			tx.NewTransaction(store.TransactionFields{Title: "May", Value: dec("300"), Type: model.TypeOutcome, CategoryID: cats[0].ID}),
		})
		return err
	})
	require.NoError(t, err)

	txns, err := s.FindAllTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func testAtomicRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.SaveCategories(ctx, []model.Category{tx.NewCategory("Rent")}); err != nil {
			return err
		}
		if _, err := tx.SaveTransactions(ctx, []model.Transaction{
			tx.NewTransaction(store.TransactionFields{Title: "May", Value: dec("300"), Type: model.TypeOutcome}),
		}); err != nil {
			return err
		}
		// Nested units join the enclosing one.
		return tx.Atomic(ctx, func(context.Context, store.Store) error { return boom })
	})
	require.ErrorIs(t, err, boom)

	txns, err := s.FindAllTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txns)

	cats, err := s.FindAllCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func testConcurrentUpsert(t *testing.T, s store.Store) {
	ctx := context.Background()
	const workers = 8

	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			saved, err := s.SaveCategories(ctx, []model.Category{s.NewCategory("Groceries")})
			errs[i] = err
			if err == nil {
				ids[i] = saved[0].ID
			}
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	all, err := s.FindAllCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testClosed(t *testing.T, s store.Store) {
	require.NoError(t, s.Close())

	_, err := s.FindAllTransactions(context.Background())
	assert.Error(t, err)
}
