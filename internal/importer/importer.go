// Package importer bulk-loads transactions from CSV files in the upload
// directory.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cleared-dev/finledger/internal/categories"
	"github.com/cleared-dev/finledger/internal/ledger"
	"github.com/cleared-dev/finledger/internal/logger"
	"github.com/cleared-dev/finledger/internal/model"
	"github.com/cleared-dev/finledger/internal/store"
	"github.com/cleared-dev/finledger/internal/uploads"
)

// DefaultBatchSize is the number of rows read and written per batch.
const DefaultBatchSize = 500

// Options tune a Pipeline.
type Options struct {
	// BatchSize bounds the rows held in memory at once. Zero means DefaultBatchSize.
	BatchSize int
	// EnforceOverdraft rejects an import that would leave a negative total.
	EnforceOverdraft bool
}

// Pipeline imports files from an upload directory into a store.
//
// Imported rows bypass the single-transaction checks: types are stored as
// written and no overdraft check is made unless EnforceOverdraft is set.
type Pipeline struct {
	store   store.Store
	uploads *uploads.Dir
	opts    Options
}

// NewPipeline creates a Pipeline.
func NewPipeline(s store.Store, dir *uploads.Dir, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Pipeline{store: s, uploads: dir, opts: opts}
}

// ImportFile imports the named upload and returns the stored transactions in
// file order. Either every row is stored or none is. The file is removed
// afterwards whatever the outcome.
//
// All errors are *ImportError and match ErrImportFailed. A StageCleanup
// error on its own means the rows were stored but the file could not be
// removed; the transactions are returned alongside it.
func (p *Pipeline) ImportFile(ctx context.Context, name string) ([]model.Transaction, error) {
	log := logger.FromContext(ctx).With().Str("file", name).Logger()

	imported, err := p.run(ctx, name)

	if rmErr := p.uploads.Remove(name); rmErr != nil {
		if err == nil {
			return imported, &ImportError{Stage: StageCleanup, File: name, Err: rmErr}
		}
		var ie *ImportError
		if errors.As(err, &ie) {
			ie.Err = errors.Join(ie.Err, rmErr)
		}
	}

	if err != nil {
		log.Warn().Err(err).Msg("import failed")
		return nil, err
	}
	log.Info().Int("transactions", len(imported)).Msg("import complete")
	return imported, nil
}

func (p *Pipeline) run(ctx context.Context, name string) ([]model.Transaction, error) {
	f, err := p.uploads.Open(name)
	if err != nil {
		return nil, &ImportError{Stage: StageOpen, File: name, Err: err}
	}
	defer f.Close()

	rd := NewReader(f)
	var imported []model.Transaction
	err = p.store.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		reg := categories.NewRegistry(tx)
		lookup := make(map[string]string)
		for {
			rows, err := rd.ReadBatch(p.opts.BatchSize)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return parseError(name, err)
			}

			saved, err := storeBatch(ctx, tx, reg, lookup, rows)
			if err != nil {
				return &ImportError{Stage: StageStore, File: name, Err: err}
			}
			imported = append(imported, saved...)
			logger.FromContext(ctx).Debug().Str("file", name).Int("rows", len(saved)).Msg("batch stored")
		}

		if p.opts.EnforceOverdraft {
			balance, err := ledger.NewCalculator(tx).GetBalance(ctx)
			if err != nil {
				return &ImportError{Stage: StageStore, File: name, Err: err}
			}
			if balance.Total.IsNegative() {
				return &ImportError{Stage: StageOverdraft, File: name, Err: fmt.Errorf(
					"%w: total after import %s", ledger.ErrInsufficientFunds, balance.Total.StringFixed(2))}
			}
		}
		return nil
	})
	if err != nil {
		var ie *ImportError
		if errors.As(err, &ie) {
			return nil, ie
		}
		return nil, &ImportError{Stage: StageStore, File: name, Err: err}
	}
	return imported, nil
}

// storeBatch creates the batch's unseen categories, extends lookup with them
// and writes the rows. Rows with a blank category are stored unresolved.
func storeBatch(ctx context.Context, tx store.Store, reg *categories.Registry, lookup map[string]string, rows []Row) ([]model.Transaction, error) {
	var titles []string
	for _, r := range rows {
		if r.Category == "" {
			continue
		}
		if _, ok := lookup[r.Category]; !ok {
			titles = append(titles, r.Category)
		}
	}
	if len(titles) > 0 {
		ids, err := reg.Reconcile(ctx, titles)
		if err != nil {
			return nil, err
		}
		for title, id := range ids {
			lookup[title] = id
		}
	}

	txns := make([]model.Transaction, 0, len(rows))
	for _, r := range rows {
		txns = append(txns, tx.NewTransaction(store.TransactionFields{
			Title:      r.Title,
			Value:      r.Value,
			Type:       r.Type,
			CategoryID: lookup[r.Category],
		}))
	}
	saved, err := tx.SaveTransactions(ctx, txns)
	if err != nil {
		return nil, fmt.Errorf("saving %d transactions: %w", len(txns), err)
	}
	return saved, nil
}

func parseError(name string, err error) *ImportError {
	ie := &ImportError{Stage: StageParse, File: name, Err: err}
	var re *RowError
	if errors.As(err, &re) {
		ie.Row = re.Line
	}
	return ie
}
