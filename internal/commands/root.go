package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/finledger/internal/buildinfo"
	"github.com/cleared-dev/finledger/internal/logger"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:     "finledger",
		Short:   "Personal finance ledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logger.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(logger.WithContext(ctx, logger.New(lvl)))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("repo", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to log.level from finledger.yaml")

	rootCmd.AddCommand(
		newInitCommand(),
		newAddCommand(),
		newBalanceCommand(),
		newTransactionsCommand(),
		newCategoriesCommand(),
		newImportCommand(),
	)

	return rootCmd
}
