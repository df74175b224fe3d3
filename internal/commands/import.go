package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/finledger/internal/importer"
)

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file...]",
		Short: "Import CSV files from the upload directory",
		Long: "Import CSV files from the upload directory. Each file has the header\n" +
			"\"title, type, value, category\" and is deleted once processed.\n" +
			"Without arguments every CSV file in the upload directory is imported.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			dir := p.uploads()
			names := args
			if len(names) == 0 {
				files, err := dir.List()
				if err != nil {
					return err
				}
				for _, f := range files {
					names = append(names, f.Name)
				}
			}
			if len(names) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No files to import in %s\n", dir.Root())
				return nil
			}

			pipeline := importer.NewPipeline(p.store, dir, importer.Options{
				BatchSize:        p.cfg.Import.BatchSize,
				EnforceOverdraft: p.cfg.Import.EnforceOverdraft,
			})

			var done []string
			for _, name := range names {
				txns, err := pipeline.ImportFile(cmd.Context(), name)
				if err != nil {
					// Commit what earlier files stored before reporting.
					if len(done) > 0 {
						if cerr := p.commit(cmd, "import: "+strings.Join(done, ", ")); cerr != nil {
							return fmt.Errorf("%w (also: %v)", err, cerr)
						}
					}
					return err
				}
				done = append(done, name)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d transactions from %s\n", len(txns), name)
			}

			return p.commit(cmd, "import: "+strings.Join(done, ", "))
		},
	}
}
