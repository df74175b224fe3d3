// Package sqlite implements store.Store on an embedded SQLite database.
//
// Category titles carry a UNIQUE constraint and SaveCategories is an
// INSERT ... ON CONFLICT DO NOTHING followed by a re-select, so concurrent
// find-or-create never yields two rows for one title. The pool is limited
// to a single connection and write transactions start with BEGIN IMMEDIATE,
// which serializes units of work within and across processes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/cleared-dev/finledger/internal/model"
	"github.com/cleared-dev/finledger/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transactions (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	value       TEXT NOT NULL,
	type        TEXT NOT NULL,
	category_id TEXT REFERENCES categories(id),
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);`

const timeFormat = time.RFC3339Nano

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a store.Store backed by a SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// FindAllTransactions returns every transaction in insertion order.
func (s *Store) FindAllTransactions(ctx context.Context) ([]model.Transaction, error) {
	return findAllTransactions(ctx, s.db)
}

// FindCategoryByTitle looks up a category by exact title.
func (s *Store) FindCategoryByTitle(ctx context.Context, title string) (model.Category, bool, error) {
	return findCategoryByTitle(ctx, s.db, title)
}

// FindAllCategories returns every category in insertion order.
func (s *Store) FindAllCategories(ctx context.Context) ([]model.Category, error) {
	return findAllCategories(ctx, s.db)
}

// NewCategory builds an unsaved category.
func (s *Store) NewCategory(title string) model.Category {
	return store.NewCategory(s.now(), title)
}

// NewTransaction builds an unsaved transaction.
func (s *Store) NewTransaction(f store.TransactionFields) model.Transaction {
	return store.NewTransaction(s.now(), f)
}

// SaveCategories upserts categories by title in its own transaction.
func (s *Store) SaveCategories(ctx context.Context, categories []model.Category) ([]model.Category, error) {
	var saved []model.Category
	err := s.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		saved, err = tx.SaveCategories(ctx, categories)
		return err
	})
	return saved, err
}

// SaveTransactions inserts transactions in its own transaction.
func (s *Store) SaveTransactions(ctx context.Context, transactions []model.Transaction) ([]model.Transaction, error) {
	var saved []model.Transaction
	err := s.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		saved, err = tx.SaveTransactions(ctx, transactions)
		return err
	})
	return saved, err
}

// Atomic runs fn inside a database transaction.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := fn(ctx, &txStore{tx: sqlTx, now: s.now}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type txStore struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *txStore) FindAllTransactions(ctx context.Context) ([]model.Transaction, error) {
	return findAllTransactions(ctx, t.tx)
}

func (t *txStore) FindCategoryByTitle(ctx context.Context, title string) (model.Category, bool, error) {
	return findCategoryByTitle(ctx, t.tx, title)
}

func (t *txStore) FindAllCategories(ctx context.Context) ([]model.Category, error) {
	return findAllCategories(ctx, t.tx)
}

func (t *txStore) NewCategory(title string) model.Category {
	return store.NewCategory(t.now(), title)
}

func (t *txStore) NewTransaction(f store.TransactionFields) model.Transaction {
	return store.NewTransaction(t.now(), f)
}

func (t *txStore) SaveCategories(ctx context.Context, categories []model.Category) ([]model.Category, error) {
	saved := make([]model.Category, 0, len(categories))
	for _, c := range categories {
		c = store.FillCategory(t.now(), c)
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO categories (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(title) DO NOTHING`,
			c.ID, c.Title, c.CreatedAt.UTC().Format(timeFormat), c.UpdatedAt.UTC().Format(timeFormat),
		); err != nil {
			return nil, fmt.Errorf("insert category %q: %w", c.Title, err)
		}

		stored, ok, err := findCategoryByTitle(ctx, t.tx, c.Title)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("category %q missing after upsert", c.Title)
		}
		saved = append(saved, stored)
	}
	return saved, nil
}

func (t *txStore) SaveTransactions(ctx context.Context, transactions []model.Transaction) ([]model.Transaction, error) {
	stmt, err := t.tx.PrepareContext(ctx,
		`INSERT INTO transactions (id, title, value, type, category_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert transaction: %w", err)
	}
	defer stmt.Close()

	saved := make([]model.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		txn = store.FillTransaction(t.now(), txn)
		var categoryID sql.NullString
		if txn.CategoryID != "" {
			categoryID = sql.NullString{String: txn.CategoryID, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			txn.ID, txn.Title, txn.Value.String(), string(txn.Type), categoryID,
			txn.CreatedAt.UTC().Format(timeFormat), txn.UpdatedAt.UTC().Format(timeFormat),
		); err != nil {
			return nil, fmt.Errorf("insert transaction %q: %w", txn.Title, err)
		}
		saved = append(saved, txn)
	}
	return saved, nil
}

func (t *txStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return fn(ctx, t)
}

func (t *txStore) Close() error { return nil }

func findAllTransactions(ctx context.Context, q querier) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, title, value, type, category_id, created_at, updated_at
		FROM transactions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var (
			txn                  model.Transaction
			value, typ           string
			categoryID           sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&txn.ID, &txn.Title, &value, &typ, &categoryID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if txn.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("parsing value %q of %s: %w", value, txn.ID, err)
		}
		txn.Type = model.TransactionType(typ)
		txn.CategoryID = categoryID.String
		if txn.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at of %s: %w", txn.ID, err)
		}
		if txn.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at of %s: %w", txn.ID, err)
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

func findCategoryByTitle(ctx context.Context, q querier, title string) (model.Category, bool, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM categories WHERE title = ?`, title)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Category{}, false, nil
	}
	if err != nil {
		return model.Category{}, false, fmt.Errorf("query category %q: %w", title, err)
	}
	return c, true, nil
}

func findAllCategories(ctx context.Context, q querier) ([]model.Category, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM categories ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(sc scanner) (model.Category, error) {
	var (
		c                    model.Category
		createdAt, updatedAt string
	)
	if err := sc.Scan(&c.ID, &c.Title, &createdAt, &updatedAt); err != nil {
		return model.Category{}, err
	}
	var err error
	if c.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return model.Category{}, fmt.Errorf("parsing created_at of %s: %w", c.ID, err)
	}
	if c.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return model.Category{}, fmt.Errorf("parsing updated_at of %s: %w", c.ID, err)
	}
	return c, nil
}

var _ store.Store = (*Store)(nil)
