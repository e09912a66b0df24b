// Package sheets defines the audit export of transaction activity to a
// spreadsheet. The google subpackage talks to the Sheets API; the memory
// subpackage is an in-process stand-in.
package sheets

import (
	"context"
	"time"

	"expenso/internal/catalog"
	"expenso/internal/core"
)

// AuditWriter appends activity events as rows and returns the written range.
type AuditWriter interface {
	AppendActivity(ctx context.Context, events []core.ActivityEvent) (rowRef string, err error)
}

// AuditHeader is the first row of every audit sheet.
var AuditHeader = []any{
	"Occurred At", "Event ID", "Action", "User",
	"Transaction ID", "Date", "Type", "Category", "Description", "Amount",
}

// AuditRow flattens an event into the AuditHeader column order. Amounts are
// written as fixed two-decimal strings so USER_ENTERED parses them as numbers.
func AuditRow(e core.ActivityEvent) []any {
	t := e.Transaction
	category := ""
	if t.Category != "" {
		category = catalog.Name(t.Category)
	}
	amount := ""
	if t.Amount.Cents != 0 {
		amount = t.Amount.String()
	}
	return []any{
		e.OccurredAt.UTC().Format(time.RFC3339),
		e.ID,
		string(e.Kind),
		e.UserEmail,
		t.ID,
		t.Date.String(),
		t.Type.Label(),
		category,
		t.Description,
		amount,
	}
}
