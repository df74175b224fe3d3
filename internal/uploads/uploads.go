// Package uploads manages the directory that import files are dropped into.
package uploads

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for names that are empty or escape the directory.
var ErrInvalidName = errors.New("invalid upload file name")

// Dir is an upload directory. File names passed to its methods are
// resolved relative to it and may not leave it.
type Dir struct {
	root string
}

// FileInfo describes a CSV file waiting in the upload directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// New returns a Dir rooted at root. The directory need not exist yet.
func New(root string) *Dir {
	return &Dir{root: filepath.Clean(root)}
}

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

// Path resolves name to a path inside the directory.
func (d *Dir) Path(name string) (string, error) {
	if name == "" || !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(d.root, name), nil
}

// Open opens name for reading.
func (d *Dir) Open(name string) (*os.File, error) {
	p, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening upload %s: %w", name, err)
	}
	return f, nil
}

// Remove deletes name. A file that is already gone is not an error.
func (d *Dir) Remove(name string) error {
	p, err := d.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing upload %s: %w", name, err)
	}
	return nil
}

// List returns the CSV files at the top level of the directory, sorted by
// name. A missing directory yields no files.
func (d *Dir) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading upload dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(d.root, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}
