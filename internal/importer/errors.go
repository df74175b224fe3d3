package importer

import (
	"errors"
	"fmt"
)

// ErrImportFailed matches every error returned by Pipeline.ImportFile.
var ErrImportFailed = errors.New("error when importing the transaction file")

// Stage names the step of an import that failed.
type Stage string

const (
	StageOpen      Stage = "open"
	StageParse     Stage = "parse"
	StageStore     Stage = "store"
	StageOverdraft Stage = "overdraft"
	StageCleanup   Stage = "cleanup"
)

// ImportError describes a failed import. Row is the 1-based line of the
// offending record for parse failures and zero otherwise.
type ImportError struct {
	Stage Stage
	File  string
	Row   int
	Err   error
}

func (e *ImportError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("importing %s: %s failed at line %d: %v", e.File, e.Stage, e.Row, e.Err)
	}
	return fmt.Sprintf("importing %s: %s failed: %v", e.File, e.Stage, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// Is reports whether target is ErrImportFailed.
func (e *ImportError) Is(target error) bool { return target == ErrImportFailed }
