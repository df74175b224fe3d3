package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/finledger/internal/categories"
)

func newCategoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			cats, err := categories.NewRegistry(p.store).List(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range cats {
				fmt.Fprintln(cmd.OutOrStdout(), c.Title)
			}
			return nil
		},
	}
}
