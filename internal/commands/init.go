package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/finledger/internal/config"
	"github.com/cleared-dev/finledger/internal/gitops"
	"github.com/cleared-dev/finledger/internal/logger"
	"github.com/cleared-dev/finledger/internal/store/csvfile"
	"github.com/cleared-dev/finledger/internal/store/sqlite"
)

func newInitCommand() *cobra.Command {
	var name string
	var storage string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new finledger project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, absDir, name, storage)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "ledger name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&storage, "storage", config.DriverCSV, "storage driver (csv, sqlite)")

	return cmd
}

func runInit(cmd *cobra.Command, dir, name, storage string) error {
	ctx := cmd.Context()

	cfg := config.Default(name)
	cfg.Storage = config.StorageConfig{Driver: storage}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(dir, cfg.Upload.Directory), 0o755); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, cfg.Upload.Directory, ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	switch cfg.Storage.Driver {
	case config.DriverCSV:
		s, err := csvfile.Create(ctx, config.Resolve(dir, cfg.Storage.Path))
		if err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
		_ = s.Close()
	case config.DriverSQLite:
		s, err := sqlite.Open(config.Resolve(dir, cfg.Storage.Path))
		if err != nil {
			return fmt.Errorf("creating database: %w", err)
		}
		if err := s.Close(); err != nil {
			return fmt.Errorf("closing database: %w", err)
		}
	}

	// Uploaded files are consumed by import; databases are binary.
	gitignore := cfg.Upload.Directory + "/*.csv\n*.db\n*.db-wal\n*.db-shm\n" + csvfile.LockFile + "\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	author := gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
	repo, err := gitops.Init(ctx, dir, author)
	if err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	hash, err := repo.CommitAll(ctx, "init: Initialize "+name)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	logger.FromContext(ctx).Debug().Str("dir", dir).Str("storage", cfg.Storage.Driver).Msg("project initialized")
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized finledger project at %s (%s)\n", dir, hash)
	return nil
}
