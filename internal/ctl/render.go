package ctl

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"expenso/internal/catalog"
	"expenso/internal/core"
)

var (
	incomeColor  = lipgloss.Color("#43A047")
	expenseColor = lipgloss.Color("#E53935")
	subtleColor  = lipgloss.Color("#666666")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#6366F1"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	subtleStyle  = lipgloss.NewStyle().Foreground(subtleColor)
	successStyle = lipgloss.NewStyle().Foreground(incomeColor)
	errorStyle   = lipgloss.NewStyle().Foreground(expenseColor)
	incomeStyle  = lipgloss.NewStyle().Foreground(incomeColor)
	expenseStyle = lipgloss.NewStyle().Foreground(expenseColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(0, 2)
)

const barWidth = 24

// money formats cents as $1,234.56 with a leading minus for negatives.
func money(m core.Money) string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	whole := fmt.Sprintf("%d", cents/100)
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return fmt.Sprintf("%s$%s.%02d", sign, b.String(), cents%100)
}

// signed prefixes the amount the way the web list does.
func signed(t core.TransactionType, m core.Money) string {
	if t == core.Income {
		return incomeStyle.Render("+" + money(m))
	}
	return expenseStyle.Render("-" + money(m))
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func bar(share float64) string {
	n := int(share / 100 * barWidth)
	if n < 0 {
		n = 0
	}
	if n > barWidth {
		n = barWidth
	}
	return expenseStyle.Render(strings.Repeat("█", n)) + subtleStyle.Render(strings.Repeat("░", barWidth-n))
}

func renderTransactions(out io.Writer, items []core.Transaction, p core.Pagination, cat *catalog.Catalog) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(out, subtleStyle.Render("No transactions found."))
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		headerStyle.Render("DATE"),
		headerStyle.Render("DESCRIPTION"),
		headerStyle.Render("CATEGORY"),
		headerStyle.Render("TYPE"),
		headerStyle.Render("AMOUNT"),
		headerStyle.Render("ID"))
	for _, t := range items {
		c := cat.Lookup(t.Category)
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\t%s\n",
			t.Date.String(), t.Description, c.Icon, c.Name, t.Type.Label(), signed(t.Type, t.Amount), subtleStyle.Render(t.ID))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush table writer: %w", err)
	}
	_, err := fmt.Fprintln(out, subtleStyle.Render(fmt.Sprintf("Page %d of %d · %d transactions", p.Page, max(p.TotalPages, 1), p.Total)))
	return err
}

func renderTotals(out io.Writer, title string, income, expenses, balance core.Money) {
	savings := 0.0
	if income.Cents > 0 {
		savings = float64(balance.Cents) / float64(income.Cents) * 100
	}
	balanceStyle := incomeStyle
	if balance.Cents < 0 {
		balanceStyle = expenseStyle
	}
	body := strings.Join([]string{
		titleStyle.Render(title),
		"",
		fmt.Sprintf("Income        %s", incomeStyle.Render(money(income))),
		fmt.Sprintf("Expenses      %s", expenseStyle.Render(money(expenses))),
		fmt.Sprintf("Balance       %s", balanceStyle.Render(money(balance))),
		fmt.Sprintf("Savings rate  %s", percent(savings)),
	}, "\n")
	fmt.Fprintln(out, boxStyle.Render(body))
}

// renderBreakdown lists categories by amount, largest first.
func renderBreakdown(out io.Writer, items []core.CategoryAmount, total core.Money) {
	if len(items) == 0 {
		return
	}
	sorted := append([]core.CategoryAmount(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value.Cents > sorted[j].Value.Cents })

	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("Expenses by category"))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range sorted {
		share := 0.0
		if total.Cents > 0 {
			share = float64(c.Value.Cents) / float64(total.Cents) * 100
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, bar(share), money(c.Value), percent(share))
	}
	_ = w.Flush()
}

// renderCategories lists the catalog for one type, or both when only is empty.
func renderCategories(out io.Writer, cat *catalog.Catalog, only core.TransactionType) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\n", headerStyle.Render("ID"), headerStyle.Render("NAME"), headerStyle.Render("TYPE"))
	for _, t := range []core.TransactionType{core.Income, core.Expense} {
		if only != "" && only != t {
			continue
		}
		for _, c := range cat.ForType(t) {
			fmt.Fprintf(w, "%s\t%s %s\t%s\n", c.ID, c.Icon, c.Name, t.Label())
		}
	}
	return w.Flush()
}

// renderValidation prints field errors in a stable order.
func renderValidation(out io.Writer, errs core.ValidationErrors) {
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("  %s: %s", f, errs[f])))
	}
}
