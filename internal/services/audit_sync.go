// Package services holds background processes that run in the worker.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"expenso/internal/core"
	"expenso/internal/log"
	"expenso/internal/sheets"
	"expenso/internal/storage"
)

// ActivityStore is the part of the SQLite repository the audit sync needs.
type ActivityStore interface {
	PendingSheetsSync(ctx context.Context, limit int) ([]storage.Activity, error)
	MarkSheetsSynced(ctx context.Context, id int64) error
}

type AuditSyncConfig struct {
	// PollInterval is how often pending rows are exported (default: 30s).
	PollInterval time.Duration
	// BatchSize caps the rows sent in one append (default: 50).
	BatchSize int
}

func DefaultAuditSyncConfig() AuditSyncConfig {
	return AuditSyncConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    50,
	}
}

// AuditSyncProcessor exports recorded activity to the audit sheet. Rows stay
// pending until an append succeeds, so a Sheets outage only delays export.
type AuditSyncProcessor struct {
	store  ActivityStore
	writer sheets.AuditWriter
	config AuditSyncConfig
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewAuditSyncProcessor(store ActivityStore, writer sheets.AuditWriter, config AuditSyncConfig, logger *slog.Logger) *AuditSyncProcessor {
	defaults := DefaultAuditSyncConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditSyncProcessor{
		store:  store,
		writer: writer,
		config: config,
		logger: logger,
	}
}

// Start begins the polling loop. Returns an error if already running.
func (p *AuditSyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("audit sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Audit sync started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop signals the loop and waits for the current batch to finish.
func (p *AuditSyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Audit sync stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Audit sync stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *AuditSyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *AuditSyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.processBatch(ctx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

func (p *AuditSyncProcessor) processBatch(ctx context.Context) {
	n, err := p.SyncNow(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "Audit sync batch failed", log.FieldError, err)
		return
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "Exported activity to audit sheet", "rows", n)
	}
}

// SyncNow exports one batch and returns how many rows were marked synced.
func (p *AuditSyncProcessor) SyncNow(ctx context.Context) (int, error) {
	pending, err := p.store.PendingSheetsSync(ctx, p.config.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	events := make([]core.ActivityEvent, len(pending))
	for i, a := range pending {
		events[i] = a.Event()
	}
	ref, err := p.writer.AppendActivity(ctx, events)
	if err != nil {
		return 0, fmt.Errorf("append %d rows: %w", len(events), err)
	}

	synced := 0
	for _, a := range pending {
		// A row that fails to be marked is exported again next time; the
		// sheet may then hold a duplicate, identifiable by event id.
		if err := p.store.MarkSheetsSynced(ctx, a.ID); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark activity synced", "activity_id", a.ID, log.FieldError, err)
			continue
		}
		synced++
	}
	p.logger.DebugContext(ctx, "Audit rows appended", "range", ref, "rows", synced)
	return synced, nil
}
