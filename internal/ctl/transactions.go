package ctl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"expenso/internal/core"
)

// filterFlags are shared by list and export.
type filterFlags struct {
	search   string
	txType   string
	category string
	from     string
	to       string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.search, "search", "", "match description text")
	fs.StringVar(&f.txType, "type", "", "INCOME or EXPENSE")
	fs.StringVar(&f.category, "category", "", "category id")
	fs.StringVar(&f.from, "from", "", "first date, YYYY-MM-DD")
	fs.StringVar(&f.to, "to", "", "last date, YYYY-MM-DD")
}

func (f *filterFlags) filters() (core.Filters, error) {
	out := core.Filters{Search: f.search, Category: f.category}
	if f.txType != "" {
		t, err := core.ParseTransactionType(f.txType)
		if err != nil {
			return core.Filters{}, fmt.Errorf("--type: %w", err)
		}
		out.Type = t
	}
	for name, v := range map[string]string{"--from": f.from, "--to": f.to} {
		if v == "" {
			continue
		}
		if _, err := core.ParseDate(v); err != nil {
			return core.Filters{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	out.DateFrom, out.DateTo = f.from, f.to
	return out, nil
}

func (r *runner) transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "List, add and delete transactions",
	}
	cmd.AddCommand(r.txListCmd())
	cmd.AddCommand(r.txAddCmd())
	cmd.AddCommand(r.txDeleteCmd())
	return cmd
}

func (r *runner) txListCmd() *cobra.Command {
	var (
		ff     filterFlags
		page   int
		limit  int
		sortBy string
		asc    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters, err := ff.filters()
			if err != nil {
				return err
			}
			return r.withAuth(cmd, func(app *App) error {
				sess := app.Session
				sess.SetFilters(filters)
				if sortBy != "" {
					sess.ToggleSort(sortBy)
				}
				if asc && sess.State().Transactions.Sort.Order == core.SortDesc {
					sess.ToggleSort(sess.State().Transactions.Sort.By)
				}
				if err := sess.FetchTransactions(cmd.Context(), page, limit); err != nil {
					return explain(err)
				}
				st := sess.State().Transactions
				return renderTransactions(cmd.OutOrStdout(), st.Items, st.Pagination, sess.Catalog(cmd.Context()))
			})
		},
	}
	ff.register(cmd.Flags())
	cmd.Flags().IntVar(&page, "page", core.DefaultPage, "page number")
	cmd.Flags().IntVar(&limit, "limit", core.DefaultLimit, "rows per page")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort by date, amount, description, category or type")
	cmd.Flags().BoolVar(&asc, "asc", false, "ascending order")
	return cmd
}

func (r *runner) txAddCmd() *cobra.Command {
	var in core.TransactionInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an income or an expense",
		Example: `  expensoctl tx add --type expense --amount 25.50 --category food --description "Lunch"
  expensoctl tx add --type income --amount 3000 --category salary --description "March salary" --date 2024-03-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Date == "" {
				in.Date = core.DateOf(time.Now()).String()
			}
			return r.withAuth(cmd, func(app *App) error {
				tx, err := app.Session.CreateTransaction(cmd.Context(), in)
				var verrs core.ValidationErrors
				if errors.As(err, &verrs) {
					renderValidation(cmd.ErrOrStderr(), verrs)
					return errors.New("transaction not saved")
				}
				if err != nil {
					return explain(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Added %s %s (%s)", tx.Type.Label(), money(tx.Amount), tx.ID)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Type, "type", string(core.Expense), "INCOME or EXPENSE")
	cmd.Flags().StringVar(&in.Amount, "amount", "", "amount, e.g. 25.50")
	cmd.Flags().StringVar(&in.Category, "category", "", "category id (see `expensoctl categories`)")
	cmd.Flags().StringVar(&in.Description, "description", "", "at least 3 characters")
	cmd.Flags().StringVar(&in.Date, "date", "", "YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "optional notes")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func (r *runner) txDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withAuth(cmd, func(app *App) error {
				if err := app.Session.DeleteTransaction(cmd.Context(), args[0]); err != nil {
					return explain(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Deleted transaction "+args[0]))
				return nil
			})
		},
	}
}

func (r *runner) exportCmd() *cobra.Command {
	var (
		ff     filterFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download transactions as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters, err := ff.filters()
			if err != nil {
				return err
			}
			return r.withAuth(cmd, func(app *App) error {
				app.Session.SetFilters(filters)
				dl, err := app.Session.Export(cmd.Context())
				if err != nil {
					return explain(err)
				}
				defer dl.Close()

				var w io.Writer = cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create %s: %w", output, err)
					}
					defer f.Close()
					w = f
				}
				n, err := io.Copy(w, dl.Body)
				if err != nil {
					return fmt.Errorf("export interrupted after %d bytes: %w", n, err)
				}
				if output != "" && output != "-" {
					fmt.Fprintln(cmd.ErrOrStderr(), successStyle.Render(fmt.Sprintf("Wrote %d bytes to %s", n, output)))
				}
				return nil
			})
		},
	}
	ff.register(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}
