package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/finledger/internal/model"
)

// TransactionsHeader is the CSV header for transactions.csv.
const TransactionsHeader = "id,title,value,type,category_id,created_at,updated_at"

// CategoriesHeader is the CSV header for categories.csv.
const CategoriesHeader = "id,title,created_at,updated_at"

const timeFormat = time.RFC3339Nano

const (
	txnNumFields  = 7
	txnColID      = 0
	txnColTitle   = 1
	txnColValue   = 2
	txnColType    = 3
	txnColCatID   = 4
	txnColCreated = 5
	txnColUpdated = 6
)

const (
	catNumFields  = 4
	catColID      = 0
	catColTitle   = 1
	catColCreated = 2
	catColUpdated = 3
)

// ReadTransactions reads all rows from a transactions.csv reader.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	records, err := readRecords(r, txnNumFields)
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}

	var txns []model.Transaction
	for i, rec := range records {
		txn, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// WriteTransactions writes transactions.csv (including header).
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(TransactionsHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, txn := range txns {
		if err := cw.Write(MarshalTransaction(txn)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(txn model.Transaction) []string {
	row := make([]string, txnNumFields)
	row[txnColID] = txn.ID
	row[txnColTitle] = txn.Title
	row[txnColValue] = txn.Value.String()
	row[txnColType] = string(txn.Type)
	row[txnColCatID] = txn.CategoryID
	row[txnColCreated] = txn.CreatedAt.UTC().Format(timeFormat)
	row[txnColUpdated] = txn.UpdatedAt.UTC().Format(timeFormat)
	return row
}

// UnmarshalTransaction converts a CSV row to a Transaction.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != txnNumFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", txnNumFields, len(record))
	}

	value, err := decimal.NewFromString(record[txnColValue])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing value %q: %w", record[txnColValue], err)
	}

	created, err := time.Parse(timeFormat, record[txnColCreated])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing created_at %q: %w", record[txnColCreated], err)
	}
	updated, err := time.Parse(timeFormat, record[txnColUpdated])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing updated_at %q: %w", record[txnColUpdated], err)
	}

	return model.Transaction{
		ID:         record[txnColID],
		Title:      record[txnColTitle],
		Value:      value,
		Type:       model.TransactionType(record[txnColType]),
		CategoryID: record[txnColCatID],
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

// ReadCategories reads all rows from a categories.csv reader.
func ReadCategories(r io.Reader) ([]model.Category, error) {
	records, err := readRecords(r, catNumFields)
	if err != nil {
		return nil, fmt.Errorf("reading categories CSV: %w", err)
	}

	var cats []model.Category
	for i, rec := range records {
		c, err := UnmarshalCategory(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		cats = append(cats, c)
	}
	return cats, nil
}

// WriteCategories writes categories.csv (including header).
func WriteCategories(w io.Writer, cats []model.Category) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(CategoriesHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, c := range cats {
		if err := cw.Write(MarshalCategory(c)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalCategory converts a Category to a CSV row.
func MarshalCategory(c model.Category) []string {
	row := make([]string, catNumFields)
	row[catColID] = c.ID
	row[catColTitle] = c.Title
	row[catColCreated] = c.CreatedAt.UTC().Format(timeFormat)
	row[catColUpdated] = c.UpdatedAt.UTC().Format(timeFormat)
	return row
}

// UnmarshalCategory converts a CSV row to a Category.
func UnmarshalCategory(record []string) (model.Category, error) {
	if len(record) != catNumFields {
		return model.Category{}, fmt.Errorf("expected %d fields, got %d", catNumFields, len(record))
	}

	created, err := time.Parse(timeFormat, record[catColCreated])
	if err != nil {
		return model.Category{}, fmt.Errorf("parsing created_at %q: %w", record[catColCreated], err)
	}
	updated, err := time.Parse(timeFormat, record[catColUpdated])
	if err != nil {
		return model.Category{}, fmt.Errorf("parsing updated_at %q: %w", record[catColUpdated], err)
	}

	return model.Category{
		ID:        record[catColID],
		Title:     record[catColTitle],
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

// readRecords returns the data rows, header skipped.
func readRecords(r io.Reader, numFields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) <= 1 {
		return nil, nil
	}
	return records[1:], nil
}
