package ctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"expenso/internal/catalog"
	"expenso/internal/core"
)

const recentShown = 5

func (r *runner) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show totals, the category split and recent transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withAuth(cmd, func(app *App) error {
				if err := app.Session.FetchDashboardData(cmd.Context()); err != nil {
					return explain(err)
				}
				d := app.Session.State().Transactions.Dashboard
				out := cmd.OutOrStdout()
				renderTotals(out, "Dashboard", d.TotalIncome, d.TotalExpenses, d.Balance)
				renderBreakdown(out, d.CategoryData, d.TotalExpenses)

				recent := d.RecentTransactions
				if len(recent) > recentShown {
					recent = recent[:recentShown]
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, titleStyle.Render("Recent transactions"))
				return renderTransactions(out, recent, core.Pagination{Page: 1, TotalPages: 1, Total: len(d.RecentTransactions)}, app.Session.Catalog(cmd.Context()))
			})
		},
	}
}

func (r *runner) reportCmd() *cobra.Command {
	var rng string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a date range and compare it with the previous one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dr := catalog.ParseDateRange(rng)
			return r.withAuth(cmd, func(app *App) error {
				if err := app.Session.FetchReports(cmd.Context(), dr); err != nil {
					return explain(err)
				}
				rep := app.Session.State().Transactions.Report
				out := cmd.OutOrStdout()
				renderTotals(out, fmt.Sprintf("%s (%s to %s)", dr.Label(), rep.From, rep.To), rep.TotalIncome, rep.TotalExpenses, rep.Balance)
				fmt.Fprintf(out, "Income growth   %s\n", percent(rep.IncomeGrowth()))
				fmt.Fprintf(out, "Expense growth  %s\n", percent(rep.ExpenseGrowth()))
				renderBreakdown(out, rep.CategoryData, rep.TotalExpenses)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&rng, "range", string(catalog.ThisMonth), "THIS_WEEK, THIS_MONTH, LAST_MONTH, THIS_YEAR or LAST_YEAR")
	return cmd
}

func (r *runner) categoriesCmd() *cobra.Command {
	var txType string
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the category ids accepted by tx add",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var only core.TransactionType
			if txType != "" {
				t, err := core.ParseTransactionType(txType)
				if err != nil {
					return fmt.Errorf("--type: %w", err)
				}
				only = t
			}
			return r.withApp(cmd, func(app *App) error {
				return renderCategories(cmd.OutOrStdout(), app.Session.Catalog(cmd.Context()), only)
			})
		},
	}
	cmd.Flags().StringVar(&txType, "type", "", "only INCOME or EXPENSE categories")
	return cmd
}
