// Package worker consumes activity messages and runs periodic maintenance.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"expenso/internal/amqp"
	"expenso/internal/log"
	"expenso/internal/storage"
)

// ActivityRecorder stores an activity row, reporting false for a duplicate.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, a storage.Activity) (bool, error)
}

// ActivityWorker writes consumed activity messages to the local log, from
// which the audit sync exports them.
type ActivityWorker struct {
	store  ActivityRecorder
	logger *slog.Logger
}

func NewActivityWorker(store ActivityRecorder, logger *slog.Logger) *ActivityWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityWorker{store: store, logger: logger}
}

// HandleActivity is an amqp.Handler. Redeliveries are acknowledged without
// writing a second row.
func (w *ActivityWorker) HandleActivity(ctx context.Context, msg *amqp.ActivityMessage) error {
	inserted, err := w.store.RecordActivity(ctx, storage.ActivityFromEvent(msg.Event()))
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	fields := log.NewFields().WithEvent(msg.EventID, string(msg.Kind)).WithOperation(log.OpConsume)
	if !inserted {
		w.logger.DebugContext(ctx, "Skipping duplicate activity message", fields.ToSlice()...)
		return nil
	}
	tx := msg.Transaction
	fields.WithTransaction(tx.ID, string(tx.Type), tx.Category, tx.Amount.Cents)
	w.logger.InfoContext(ctx, "Recorded activity", fields.ToSlice()...)
	return nil
}
