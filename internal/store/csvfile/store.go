// Package csvfile persists the ledger as two CSV files in a directory:
// transactions.csv and categories.csv. It is the default storage for a
// finledger project because the files diff cleanly under git.
package csvfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cleared-dev/finledger/internal/store"
	"github.com/cleared-dev/finledger/internal/store/memory"
)

const (
	// TransactionsFile is the file name of the transaction table.
	TransactionsFile = "transactions.csv"
	// CategoriesFile is the file name of the category table.
	CategoriesFile = "categories.csv"
	// LockFile guards the tables against concurrent writers, including
	// other processes working on the same directory.
	LockFile = ".finledger.lock"
)

// Store keeps the committed state in memory. Every unit of work takes the
// directory lock, reloads both tables from disk and rewrites them before
// releasing it, so writers in different processes see each other's rows.
// A failed write rolls the unit back.
type Store struct {
	*memory.Store
	dir string
}

// Open loads the tables from dir. Missing files are treated as empty tables.
func Open(dir string, opts ...memory.Option) (*Store, error) {
	s := &Store{dir: dir}
	snap, err := s.load()
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		memory.WithSnapshot(snap),
		memory.WithBeginHook(s.begin),
		memory.WithCommitHook(s.write),
	)
	s.Store = memory.New(opts...)
	return s, nil
}

// Create opens dir like Open and writes both tables straight away, so a new
// project starts out with header-only files.
func Create(ctx context.Context, dir string, opts ...memory.Option) (*Store, error) {
	s, err := Open(dir, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Atomic(ctx, func(context.Context, store.Store) error { return nil }); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the directory holding the tables.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) load() (memory.Snapshot, error) {
	txns, err := readFile(filepath.Join(s.dir, TransactionsFile), ReadTransactions)
	if err != nil {
		return memory.Snapshot{}, err
	}
	cats, err := readFile(filepath.Join(s.dir, CategoriesFile), ReadCategories)
	if err != nil {
		return memory.Snapshot{}, err
	}
	return memory.Snapshot{Transactions: txns, Categories: cats}, nil
}

func (s *Store) begin(ctx context.Context) (*memory.Snapshot, func(), error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating data dir: %w", err)
	}
	unlock, err := lockDir(ctx, filepath.Join(s.dir, LockFile))
	if err != nil {
		return nil, nil, err
	}
	snap, err := s.load()
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return &snap, unlock, nil
}

// write stages both tables as temp files and only renames them into place
// once both are complete. Categories go first: a transaction never points
// at a category missing from disk.
func (s *Store) write(snap memory.Snapshot) error {
	cats, err := stageFile(filepath.Join(s.dir, CategoriesFile), func(w io.Writer) error {
		return WriteCategories(w, snap.Categories)
	})
	if err != nil {
		return err
	}
	defer os.Remove(cats)

	txns, err := stageFile(filepath.Join(s.dir, TransactionsFile), func(w io.Writer) error {
		return WriteTransactions(w, snap.Transactions)
	})
	if err != nil {
		return err
	}
	defer os.Remove(txns)

	if err := os.Rename(cats, filepath.Join(s.dir, CategoriesFile)); err != nil {
		return fmt.Errorf("replacing %s: %w", CategoriesFile, err)
	}
	if err := os.Rename(txns, filepath.Join(s.dir, TransactionsFile)); err != nil {
		return fmt.Errorf("replacing %s: %w", TransactionsFile, err)
	}
	return nil
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

var createTemp = os.CreateTemp

// stageFile writes a temp file next to path and returns its name. The
// caller renames it into place so readers never see a half-written table.
func stageFile(path string, write func(io.Writer) error) (string, error) {
	tmp, err := createTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return tmp.Name(), nil
}

var _ store.Store = (*Store)(nil)
