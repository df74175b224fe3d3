package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/finledger/internal/config"
	"github.com/cleared-dev/finledger/internal/gitops"
	"github.com/cleared-dev/finledger/internal/logger"
	"github.com/cleared-dev/finledger/internal/store"
	"github.com/cleared-dev/finledger/internal/store/csvfile"
	"github.com/cleared-dev/finledger/internal/store/sqlite"
	"github.com/cleared-dev/finledger/internal/uploads"
)

// project is an opened finledger project directory.
type project struct {
	root  string
	cfg   *config.Config
	store store.Store
}

// openProject loads finledger.yaml from --repo and opens the configured
// store. Unless --log-level was given, the command logger is replaced by
// one at the configured level.
func openProject(cmd *cobra.Command) (*project, error) {
	repo, err := cmd.Flags().GetString("repo")
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(repo)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, err
	}

	if !cmd.Flags().Changed("log-level") {
		lvl, err := logger.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		cmd.SetContext(logger.WithContext(cmd.Context(), logger.New(lvl)))
	}

	s, err := openStore(root, cfg.Storage)
	if err != nil {
		return nil, err
	}
	return &project{root: root, cfg: cfg, store: s}, nil
}

func openStore(root string, sc config.StorageConfig) (store.Store, error) {
	switch sc.Driver {
	case config.DriverCSV:
		return csvfile.Open(config.Resolve(root, sc.Path))
	case config.DriverSQLite:
		return sqlite.Open(config.Resolve(root, sc.Path))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
}

func (p *project) uploads() *uploads.Dir {
	return uploads.New(config.Resolve(p.root, p.cfg.Upload.Directory))
}

// commit records the project's changes in git when auto-commit is on and
// the project is a repository.
func (p *project) commit(cmd *cobra.Command, message string) error {
	if !p.cfg.Git.AutoCommit || !gitops.IsRepo(p.root) {
		return nil
	}
	repo := gitops.Open(p.root, gitops.Author{Name: p.cfg.Git.AuthorName, Email: p.cfg.Git.AuthorEmail})
	hash, err := repo.CommitAll(cmd.Context(), message)
	if err != nil {
		return fmt.Errorf("auto-commit: %w", err)
	}
	if hash != "" {
		logger.FromContext(cmd.Context()).Debug().Str("commit", hash).Msg("committed")
	}
	return nil
}

func (p *project) Close() error {
	return p.store.Close()
}
