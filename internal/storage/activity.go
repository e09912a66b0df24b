package storage

import (
	"context"
	"fmt"
	"time"

	"expenso/internal/core"
)

// Activity is one recorded transaction event.
type Activity struct {
	ID            int64
	EventID       string
	Kind          string
	TransactionID string
	UserEmail     string
	AmountCents   int64
	Type          string
	Category      string
	Description   string
	Date          string
	OccurredAt    time.Time
	RecordedAt    time.Time
	SheetsSynced  bool
}

func activityFromRow(r ActivityRow) Activity {
	return Activity{
		ID:            r.ID,
		EventID:       r.EventID,
		Kind:          r.Kind,
		TransactionID: r.TransactionID,
		UserEmail:     r.UserEmail,
		AmountCents:   r.AmountCents,
		Type:          r.TxType,
		Category:      r.Category,
		Description:   r.Description,
		Date:          r.TxDate,
		OccurredAt:    time.Unix(r.OccurredAt, 0).UTC(),
		RecordedAt:    time.Unix(r.RecordedAt, 0).UTC(),
		SheetsSynced:  r.SheetsSynced,
	}
}

// ActivityFromEvent flattens a domain event into a row.
func ActivityFromEvent(e core.ActivityEvent) Activity {
	t := e.Transaction
	return Activity{
		EventID:       e.ID,
		Kind:          string(e.Kind),
		TransactionID: t.ID,
		UserEmail:     e.UserEmail,
		AmountCents:   t.Amount.Cents,
		Type:          string(t.Type),
		Category:      t.Category,
		Description:   t.Description,
		Date:          t.Date.String(),
		OccurredAt:    e.OccurredAt,
	}
}

// Event rebuilds the domain event. An unparsable date is left zero.
func (a Activity) Event() core.ActivityEvent {
	date, _ := core.ParseDate(a.Date)
	return core.ActivityEvent{
		ID:        a.EventID,
		Kind:      core.ActivityKind(a.Kind),
		UserEmail: a.UserEmail,
		Transaction: core.Transaction{
			ID:          a.TransactionID,
			Amount:      core.Money{Cents: a.AmountCents},
			Type:        core.TransactionType(a.Type),
			Category:    a.Category,
			Description: a.Description,
			Date:        date,
		},
		OccurredAt: a.OccurredAt,
	}
}

// RecordActivity is idempotent on EventID so redelivered messages are harmless.
// It reports whether a new row was written.
func (r *SQLiteRepository) RecordActivity(ctx context.Context, a Activity) (bool, error) {
	inserted, err := r.queries.InsertActivity(ctx, InsertActivityParams{
		EventID:       a.EventID,
		Kind:          a.Kind,
		TransactionID: a.TransactionID,
		UserEmail:     a.UserEmail,
		AmountCents:   a.AmountCents,
		TxType:        a.Type,
		Category:      a.Category,
		Description:   a.Description,
		TxDate:        a.Date,
		OccurredAt:    a.OccurredAt.Unix(),
		RecordedAt:    r.now().Unix(),
	})
	if err != nil {
		return false, fmt.Errorf("record activity %s: %w", a.EventID, err)
	}
	return inserted, nil
}

func (r *SQLiteRepository) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := r.queries.ListRecentActivity(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return convertActivity(rows), nil
}

func (r *SQLiteRepository) PendingSheetsSync(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := r.queries.ListUnsyncedActivity(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced activity: %w", err)
	}
	return convertActivity(rows), nil
}

func (r *SQLiteRepository) MarkSheetsSynced(ctx context.Context, id int64) error {
	if err := r.queries.MarkActivitySynced(ctx, id); err != nil {
		return fmt.Errorf("mark activity %d synced: %w", id, err)
	}
	return nil
}

// PurgeActivity deletes rows recorded before now-retention. With
// requireSynced, rows not yet exported to Sheets are kept.
func (r *SQLiteRepository) PurgeActivity(ctx context.Context, retention time.Duration, requireSynced bool) (int64, error) {
	n, err := r.queries.PurgeActivity(ctx, r.now().Add(-retention).Unix(), requireSynced)
	if err != nil {
		return 0, fmt.Errorf("purge activity: %w", err)
	}
	return n, nil
}

func convertActivity(rows []ActivityRow) []Activity {
	out := make([]Activity, 0, len(rows))
	for _, r := range rows {
		out = append(out, activityFromRow(r))
	}
	return out
}
