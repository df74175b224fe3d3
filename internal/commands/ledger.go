package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/finledger/internal/ledger"
	"github.com/cleared-dev/finledger/internal/model"
)

func newAddCommand() *cobra.Command {
	var (
		title    string
		value    string
		typ      string
		category string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(value)
			if err != nil {
				return fmt.Errorf("parsing --value %q: %w", value, err)
			}

			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			txn, err := ledger.NewService(p.store).CreateTransaction(cmd.Context(), ledger.CreateParams{
				Title:    title,
				Value:    amount,
				Type:     model.TransactionType(typ),
				Category: category,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s %s (%s)\n", txn.Type, txn.Value.StringFixed(2), txn.Title, txn.ID)

			return p.commit(cmd, fmt.Sprintf("add: %s %s %s", txn.Type, txn.Value.StringFixed(2), txn.Title))
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "transaction title (required)")
	cmd.Flags().StringVar(&value, "value", "", "positive amount (required)")
	cmd.Flags().StringVar(&typ, "type", "", "income or outcome (required)")
	cmd.Flags().StringVar(&category, "category", "", "category title, created if new (required)")
	for _, f := range []string{"title", "value", "type", "category"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newBalanceCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show income, outcome and total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			bal, err := ledger.NewService(p.store).Balance(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), bal)
			}
			return writeBalance(cmd.OutOrStdout(), bal)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// transactionList is the JSON shape of the transactions command.
type transactionList struct {
	Transactions []model.Transaction `json:"transactions"`
	Balance      model.Balance       `json:"balance"`
}

func newTransactionsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List transactions with the current balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx := cmd.Context()
			txns, err := ledger.NewService(p.store).ListTransactions(ctx)
			if err != nil {
				return err
			}
			bal := ledger.Summarize(txns)

			if asJSON {
				if txns == nil {
					txns = []model.Transaction{}
				}
				return writeJSON(cmd.OutOrStdout(), transactionList{Transactions: txns, Balance: bal})
			}

			cats, err := p.store.FindAllCategories(ctx)
			if err != nil {
				return fmt.Errorf("loading categories: %w", err)
			}
			names := make(map[string]string, len(cats))
			for _, c := range cats {
				names[c.ID] = c.Title
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tTITLE\tTYPE\tVALUE\tCATEGORY")
			for _, t := range txns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					t.CreatedAt.Format("2006-01-02"), t.Title, t.Type, t.Value.StringFixed(2), names[t.CategoryID])
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return writeBalance(cmd.OutOrStdout(), bal)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func writeBalance(w io.Writer, bal model.Balance) error {
	_, err := fmt.Fprintf(w, "Income:  %s\nOutcome: %s\nTotal:   %s\n",
		bal.Income.StringFixed(2), bal.Outcome.StringFixed(2), bal.Total.StringFixed(2))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
