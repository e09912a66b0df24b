package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const upsertSession = `
INSERT INTO sessions (id, created_at, last_seen_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET last_seen_at = excluded.last_seen_at`

func (q *Queries) UpsertSession(ctx context.Context, id string, now int64) error {
	_, err := q.db.ExecContext(ctx, upsertSession, id, now, now)
	return err
}

const getSessionValues = `SELECT key, value FROM session_values WHERE session_id = ?`

func (q *Queries) GetSessionValues(ctx context.Context, sessionID string) (map[string]string, error) {
	rows, err := q.db.QueryContext(ctx, getSessionValues, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

const setSessionValue = `
INSERT INTO session_values (session_id, key, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

type SetSessionValueParams struct {
	SessionID string
	Key       string
	Value     string
	UpdatedAt int64
}

func (q *Queries) SetSessionValue(ctx context.Context, p SetSessionValueParams) error {
	_, err := q.db.ExecContext(ctx, setSessionValue, p.SessionID, p.Key, p.Value, p.UpdatedAt)
	return err
}

const deleteSessionValue = `DELETE FROM session_values WHERE session_id = ? AND key = ?`

func (q *Queries) DeleteSessionValue(ctx context.Context, sessionID, key string) error {
	_, err := q.db.ExecContext(ctx, deleteSessionValue, sessionID, key)
	return err
}

const deleteValuesOfIdleSessions = `
DELETE FROM session_values WHERE session_id IN (SELECT id FROM sessions WHERE last_seen_at < ?)`

const deleteIdleSessions = `DELETE FROM sessions WHERE last_seen_at < ?`

func (q *Queries) DeleteIdleSessions(ctx context.Context, before int64) (int64, error) {
	if _, err := q.db.ExecContext(ctx, deleteValuesOfIdleSessions, before); err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx, deleteIdleSessions, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countSessions = `SELECT COUNT(*) FROM sessions`

func (q *Queries) CountSessions(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countSessions).Scan(&n)
	return n, err
}

const insertActivity = `
INSERT OR IGNORE INTO activity_log
    (event_id, kind, transaction_id, user_email, amount_cents, tx_type, category, description, tx_date, occurred_at, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type InsertActivityParams struct {
	EventID       string
	Kind          string
	TransactionID string
	UserEmail     string
	AmountCents   int64
	TxType        string
	Category      string
	Description   string
	TxDate        string
	OccurredAt    int64
	RecordedAt    int64
}

// InsertActivity reports false when the event id was already recorded.
func (q *Queries) InsertActivity(ctx context.Context, p InsertActivityParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, insertActivity,
		p.EventID, p.Kind, p.TransactionID, p.UserEmail, p.AmountCents,
		p.TxType, p.Category, p.Description, p.TxDate, p.OccurredAt, p.RecordedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const activityColumns = `id, event_id, kind, transaction_id, user_email, amount_cents, tx_type, category, description, tx_date, occurred_at, recorded_at, sheets_synced`

type ActivityRow struct {
	ID            int64
	EventID       string
	Kind          string
	TransactionID string
	UserEmail     string
	AmountCents   int64
	TxType        string
	Category      string
	Description   string
	TxDate        string
	OccurredAt    int64
	RecordedAt    int64
	SheetsSynced  bool
}

func scanActivity(rows *sql.Rows) ([]ActivityRow, error) {
	defer rows.Close()
	var out []ActivityRow
	for rows.Next() {
		var r ActivityRow
		if err := rows.Scan(&r.ID, &r.EventID, &r.Kind, &r.TransactionID, &r.UserEmail, &r.AmountCents,
			&r.TxType, &r.Category, &r.Description, &r.TxDate, &r.OccurredAt, &r.RecordedAt, &r.SheetsSynced); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const listRecentActivity = `SELECT ` + activityColumns + ` FROM activity_log ORDER BY id DESC LIMIT ?`

func (q *Queries) ListRecentActivity(ctx context.Context, limit int) ([]ActivityRow, error) {
	rows, err := q.db.QueryContext(ctx, listRecentActivity, limit)
	if err != nil {
		return nil, err
	}
	return scanActivity(rows)
}

const listUnsyncedActivity = `SELECT ` + activityColumns + ` FROM activity_log WHERE sheets_synced = 0 ORDER BY id LIMIT ?`

func (q *Queries) ListUnsyncedActivity(ctx context.Context, limit int) ([]ActivityRow, error) {
	rows, err := q.db.QueryContext(ctx, listUnsyncedActivity, limit)
	if err != nil {
		return nil, err
	}
	return scanActivity(rows)
}

const markActivitySynced = `UPDATE activity_log SET sheets_synced = 1 WHERE id = ?`

func (q *Queries) MarkActivitySynced(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markActivitySynced, id)
	return err
}

// Unsynced rows are kept unless requireSynced is false.
const purgeActivity = `DELETE FROM activity_log WHERE recorded_at < ? AND (sheets_synced = 1 OR ? = 0)`

func (q *Queries) PurgeActivity(ctx context.Context, before int64, requireSynced bool) (int64, error) {
	res, err := q.db.ExecContext(ctx, purgeActivity, before, requireSynced)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
