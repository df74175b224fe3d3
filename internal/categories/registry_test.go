package categories

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/finledger/internal/model"
	"github.com/cleared-dev/finledger/internal/store/memory"
)

func TestResolve_CreatesOnce(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	reg := NewRegistry(s)

	first, err := reg.Resolve(ctx, "Salary")
	require.NoError(t, err)
	second, err := reg.Resolve(ctx, "Salary")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, s.Snapshot().Categories, 1)
}

func TestResolve_ReturnsExisting(t *testing.T) {
	ctx := context.Background()
	s := memory.New(memory.WithSnapshot(memory.Snapshot{
		Categories: []model.Category{{ID: "c-rent", Title: "Rent"}},
	}))
	reg := NewRegistry(s)

	got, err := reg.Resolve(ctx, "Rent")
	require.NoError(t, err)
	assert.Equal(t, "c-rent", got.ID)
	assert.Len(t, s.Snapshot().Categories, 1)
}

func TestResolve_CaseSensitive(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	reg := NewRegistry(s)

	a, err := reg.Resolve(ctx, "food")
	require.NoError(t, err)
	b, err := reg.Resolve(ctx, "Food")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, s.Snapshot().Categories, 2)
}

func TestResolve_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	reg := NewRegistry(s)

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := reg.Resolve(ctx, "Groceries")
			assert.NoError(t, err)
			ids[i] = c.ID
		}()
	}
	wg.Wait()

	for _, got := range ids {
		assert.Equal(t, ids[0], got)
	}
	assert.Len(t, s.Snapshot().Categories, 1)
}

func TestReconcile_CreatesOnlyMissing(t *testing.T) {
	ctx := context.Background()
	s := memory.New(memory.WithSnapshot(memory.Snapshot{
		Categories: []model.Category{{ID: "c-salary", Title: "Salary"}},
	}))
	reg := NewRegistry(s)

	lookup, err := reg.Reconcile(ctx, []string{"Salary", "Housing", "Food", "Housing"})
	require.NoError(t, err)

	assert.Len(t, lookup, 3)
	assert.Equal(t, "c-salary", lookup["Salary"])
	assert.NotEmpty(t, lookup["Housing"])
	assert.NotEmpty(t, lookup["Food"])

	cats := s.Snapshot().Categories
	require.Len(t, cats, 3)
	assert.Equal(t, "Housing", cats[1].Title, "new categories keep first-occurrence order")
	assert.Equal(t, "Food", cats[2].Title)
}

func TestReconcile_NothingNew(t *testing.T) {
	ctx := context.Background()
	var commits int
	s := memory.New(
		memory.WithSnapshot(memory.Snapshot{
			Categories: []model.Category{{ID: "c-salary", Title: "Salary"}},
		}),
		memory.WithCommitHook(func(memory.Snapshot) error {
			commits++
			return nil
		}),
	)
	reg := NewRegistry(s)

	lookup, err := reg.Reconcile(ctx, []string{"Salary"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Salary": "c-salary"}, lookup)
	assert.Len(t, s.Snapshot().Categories, 1)
	assert.Zero(t, commits, "no write when every title exists")
}

func TestReconcile_Empty(t *testing.T) {
	lookup, err := NewRegistry(memory.New()).Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, lookup)
}

func TestList_SortedByTitle(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(memory.New())
	for _, title := range []string{"Rent", "Food", "Salary"} {
		_, err := reg.Resolve(ctx, title)
		require.NoError(t, err)
	}

	cats, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, []string{"Food", "Rent", "Salary"}, []string{cats[0].Title, cats[1].Title, cats[2].Title})
}

func TestDistinct(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, []string{}},
		{[]string{"a"}, []string{"a"}},
		{[]string{"b", "a", "b", "c", "a"}, []string{"b", "a", "c"}},
		{[]string{"A", "a"}, []string{"A", "a"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Distinct(tt.in))
	}
}
