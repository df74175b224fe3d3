// Package memory is an in-process implementation of store.Store.
// Data is lost when the process exits. The CSV adapter builds on it
// through begin and commit hooks.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cleared-dev/finledger/internal/model"
	"github.com/cleared-dev/finledger/internal/store"
)

// Snapshot is the full contents of a store.
type Snapshot struct {
	Transactions []model.Transaction
	Categories   []model.Category
}

// CommitHook is called with the post-commit snapshot while the unit of work
// still holds the writer lock. An error rolls the unit back.
type CommitHook func(Snapshot) error

// BeginHook is called at the start of every unit of work while it holds the
// writer lock. A non-nil snapshot replaces the committed state before fn
// runs. release, if non-nil, is called once the unit has finished, after
// the commit hook.
type BeginHook func(ctx context.Context) (fresh *Snapshot, release func(), err error)

// Option configures a Store.
type Option func(*Store)

// WithSnapshot seeds the store.
func WithSnapshot(snap Snapshot) Option {
	return func(s *Store) { s.st = newState(snap) }
}

// WithCommitHook installs a hook run on every successful unit of work.
func WithCommitHook(h CommitHook) Option {
	return func(s *Store) { s.onCommit = h }
}

// WithBeginHook installs a hook run before every unit of work.
func WithBeginHook(h BeginHook) Option {
	return func(s *Store) { s.onBegin = h }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is safe for concurrent use. Units of work are serialized by
// writeMu and run against a private copy of the state that replaces the
// shared one on success.
type Store struct {
	writeMu  sync.Mutex
	mu       sync.RWMutex
	st       *state
	closed   bool
	onBegin  BeginHook
	onCommit CommitHook
	now      func() time.Time
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		st:  newState(Snapshot{}),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the committed contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.snapshot()
}

func (s *Store) read(ctx context.Context) (*state, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, nil, store.ErrClosed
	}
	return s.st, s.mu.RUnlock, nil
}

// FindAllTransactions returns every transaction in insertion order.
func (s *Store) FindAllTransactions(ctx context.Context) ([]model.Transaction, error) {
	st, done, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	return slices.Clone(st.transactions), nil
}

// FindCategoryByTitle looks up a category by exact title.
func (s *Store) FindCategoryByTitle(ctx context.Context, title string) (model.Category, bool, error) {
	st, done, err := s.read(ctx)
	if err != nil {
		return model.Category{}, false, err
	}
	defer done()
	c, ok := st.categoryByTitle(title)
	return c, ok, nil
}

// FindAllCategories returns every category in insertion order.
func (s *Store) FindAllCategories(ctx context.Context) ([]model.Category, error) {
	st, done, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	return slices.Clone(st.categories), nil
}

// NewCategory builds an unsaved category.
func (s *Store) NewCategory(title string) model.Category {
	return store.NewCategory(s.now(), title)
}

// NewTransaction builds an unsaved transaction.
func (s *Store) NewTransaction(f store.TransactionFields) model.Transaction {
	return store.NewTransaction(s.now(), f)
}

// SaveCategories upserts categories by title in its own unit of work.
func (s *Store) SaveCategories(ctx context.Context, categories []model.Category) ([]model.Category, error) {
	var saved []model.Category
	err := s.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		saved, err = tx.SaveCategories(ctx, categories)
		return err
	})
	return saved, err
}

// SaveTransactions appends transactions in its own unit of work.
func (s *Store) SaveTransactions(ctx context.Context, transactions []model.Transaction) ([]model.Transaction, error) {
	var saved []model.Transaction
	err := s.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		saved, err = tx.SaveTransactions(ctx, transactions)
		return err
	})
	return saved, err
}

// Atomic runs fn against a private copy of the state and publishes it on success.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return store.ErrClosed
	}

	if s.onBegin != nil {
		fresh, release, err := s.onBegin(ctx)
		if err != nil {
			return fmt.Errorf("beginning: %w", err)
		}
		if release != nil {
			defer release()
		}
		if fresh != nil {
			s.mu.Lock()
			s.st = newState(*fresh)
			s.mu.Unlock()
		}
	}

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &txStore{st: work, now: s.now}); err != nil {
		return err
	}

	if s.onCommit != nil {
		if err := s.onCommit(work.snapshot()); err != nil {
			return fmt.Errorf("committing: %w", err)
		}
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// Close marks the store closed. Further calls return store.ErrClosed.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// txStore is the view handed to an Atomic callback. The enclosing Atomic
// holds the writer lock, so it needs no locking of its own.
type txStore struct {
	st  *state
	now func() time.Time
}

func (t *txStore) FindAllTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(t.st.transactions), nil
}

func (t *txStore) FindCategoryByTitle(ctx context.Context, title string) (model.Category, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Category{}, false, err
	}
	c, ok := t.st.categoryByTitle(title)
	return c, ok, nil
}

func (t *txStore) FindAllCategories(ctx context.Context) ([]model.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(t.st.categories), nil
}

func (t *txStore) NewCategory(title string) model.Category {
	return store.NewCategory(t.now(), title)
}

func (t *txStore) NewTransaction(f store.TransactionFields) model.Transaction {
	return store.NewTransaction(t.now(), f)
}

func (t *txStore) SaveCategories(ctx context.Context, categories []model.Category) ([]model.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	saved := make([]model.Category, 0, len(categories))
	for _, c := range categories {
		if existing, ok := t.st.categoryByTitle(c.Title); ok {
			saved = append(saved, existing)
			continue
		}
		c = store.FillCategory(t.now(), c)
		t.st.addCategory(c)
		saved = append(saved, c)
	}
	return saved, nil
}

func (t *txStore) SaveTransactions(ctx context.Context, transactions []model.Transaction) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	saved := make([]model.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		txn = store.FillTransaction(t.now(), txn)
		t.st.transactions = append(t.st.transactions, txn)
		saved = append(saved, txn)
	}
	return saved, nil
}

func (t *txStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return fn(ctx, t)
}

func (t *txStore) Close() error { return nil }

type state struct {
	transactions []model.Transaction
	categories   []model.Category
	byTitle      map[string]int
}

func newState(snap Snapshot) *state {
	st := &state{
		transactions: slices.Clone(snap.Transactions),
		byTitle:      make(map[string]int, len(snap.Categories)),
	}
	for _, c := range snap.Categories {
		if _, dup := st.byTitle[c.Title]; dup {
			continue
		}
		st.addCategory(c)
	}
	return st
}

func (st *state) addCategory(c model.Category) {
	st.byTitle[c.Title] = len(st.categories)
	st.categories = append(st.categories, c)
}

func (st *state) categoryByTitle(title string) (model.Category, bool) {
	i, ok := st.byTitle[title]
	if !ok {
		return model.Category{}, false
	}
	return st.categories[i], true
}

func (st *state) clone() *state {
	return newState(st.snapshot())
}

func (st *state) snapshot() Snapshot {
	return Snapshot{
		Transactions: slices.Clone(st.transactions),
		Categories:   slices.Clone(st.categories),
	}
}

var _ store.Store = (*Store)(nil)
