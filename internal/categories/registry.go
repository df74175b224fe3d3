// Package categories resolves category titles to stored categories,
// creating them on first use.
package categories

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/cleared-dev/finledger/internal/logger"
	"github.com/cleared-dev/finledger/internal/model"
	"github.com/cleared-dev/finledger/internal/store"
)

// Registry is the find-or-create front end over a store.
// At most one category exists per exact title; the store's upsert
// guarantees that even when two callers race on a new title.
type Registry struct {
	store store.Store
}

// NewRegistry creates a Registry over s.
func NewRegistry(s store.Store) *Registry {
	return &Registry{store: s}
}

// Resolve returns the category titled title, creating it if absent.
func (r *Registry) Resolve(ctx context.Context, title string) (model.Category, error) {
	existing, ok, err := r.store.FindCategoryByTitle(ctx, title)
	if err != nil {
		return model.Category{}, fmt.Errorf("finding category %q: %w", title, err)
	}
	if ok {
		return existing, nil
	}

	saved, err := r.store.SaveCategories(ctx, []model.Category{r.store.NewCategory(title)})
	if err != nil {
		return model.Category{}, fmt.Errorf("creating category %q: %w", title, err)
	}
	logger.FromContext(ctx).Debug().
		Str("category_id", saved[0].ID).
		Str("title", title).
		Msg("category resolved")
	return saved[0], nil
}

// Reconcile is the bulk form of Resolve. Given candidate titles it creates,
// in one batch, exactly those not already stored, and returns a title→ID
// lookup covering both pre-existing and new categories.
func (r *Registry) Reconcile(ctx context.Context, titles []string) (map[string]string, error) {
	existing, err := r.store.FindAllCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}

	lookup := make(map[string]string, len(existing)+len(titles))
	for _, c := range existing {
		lookup[c.Title] = c.ID
	}

	var missing []model.Category
	for _, title := range Distinct(titles) {
		if _, ok := lookup[title]; ok {
			continue
		}
		missing = append(missing, r.store.NewCategory(title))
	}
	if len(missing) == 0 {
		return lookup, nil
	}

	created, err := r.store.SaveCategories(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("creating %d categories: %w", len(missing), err)
	}
	for _, c := range created {
		lookup[c.Title] = c.ID
	}
	logger.FromContext(ctx).Debug().Int("created", len(created)).Msg("categories reconciled")
	return lookup, nil
}

// List returns all categories ordered by title.
func (r *Registry) List(ctx context.Context) ([]model.Category, error) {
	cats, err := r.store.FindAllCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	slices.SortStableFunc(cats, func(a, b model.Category) int {
		return cmp.Compare(a.Title, b.Title)
	})
	return cats, nil
}

// Distinct returns titles with duplicates removed, keeping first occurrences
// in order.
func Distinct(titles []string) []string {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
