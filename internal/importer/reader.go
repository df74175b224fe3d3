package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/finledger/internal/model"
)

// Column layout of an import file. The first line is a header and is
// skipped without being checked.
const (
	numFields   = 4
	colTitle    = 0
	colType     = 1
	colValue    = 2
	colCategory = 3
)

// Row is one parsed line of an import file. Type is passed through as
// written; it is not checked against the known transaction types.
type Row struct {
	Line     int
	Title    string
	Type     model.TransactionType
	Value    decimal.Decimal
	Category string
}

// RowError reports a line that could not be parsed.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// Separator splits the fields of an import file. A bare comma is part of
// the field text.
const Separator = ", "

// unitSep stands in for Separator while encoding/csv splits a record, and
// is turned back into Separator inside quoted fields.
const unitSep = '\x1f'

// Reader streams Rows from an import file whose fields are separated by
// ", ". Fields may be double-quoted.
type Reader struct {
	cr      *csv.Reader
	started bool
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(&separatorReader{br: bufio.NewReader(r)})
	cr.Comma = unitSep
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return &Reader{cr: cr}
}

// Read returns the next row, or io.EOF when the file is exhausted.
func (r *Reader) Read() (Row, error) {
	if !r.started {
		r.started = true
		if _, err := r.cr.Read(); err != nil {
			return Row{}, r.wrap(err)
		}
	}

	rec, err := r.cr.Read()
	if err != nil {
		return Row{}, r.wrap(err)
	}
	line, _ := r.cr.FieldPos(0)
	return parseRow(line, rec)
}

// batchPrealloc caps the capacity ReadBatch reserves up front; larger
// batches grow as rows arrive.
const batchPrealloc = 1024

// ReadBatch reads up to n rows. It returns io.EOF only when no rows remain.
func (r *Reader) ReadBatch(n int) ([]Row, error) {
	rows := make([]Row, 0, min(n, batchPrealloc))
	for len(rows) < n {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			if len(rows) == 0 {
				return nil, io.EOF
			}
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *Reader) wrap(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &RowError{Line: pe.Line, Err: pe.Err}
	}
	return fmt.Errorf("reading import file: %w", err)
}

// separatorReader rewrites every Separator to unitSep one line at a time.
type separatorReader struct {
	br  *bufio.Reader
	buf []byte
	err error
}

func (r *separatorReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		var line []byte
		line, r.err = r.br.ReadBytes('\n')
		r.buf = bytes.ReplaceAll(line, []byte(Separator), []byte{unitSep})
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func parseRow(line int, rec []string) (Row, error) {
	if len(rec) != numFields {
		return Row{}, &RowError{Line: line, Err: fmt.Errorf("expected %d fields, got %d", numFields, len(rec))}
	}
	for i, f := range rec {
		rec[i] = strings.ReplaceAll(f, string(unitSep), Separator)
	}

	raw := strings.TrimSpace(rec[colValue])
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return Row{}, &RowError{Line: line, Err: fmt.Errorf("parsing value %q: %w", raw, err)}
	}

	return Row{
		Line:     line,
		Title:    strings.TrimSpace(rec[colTitle]),
		Type:     model.TransactionType(strings.TrimSpace(rec[colType])),
		Value:    value,
		Category: strings.TrimSpace(rec[colCategory]),
	}, nil
}
