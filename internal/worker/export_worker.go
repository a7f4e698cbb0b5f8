// Package worker mirrors persisted expenses to the export target.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"outlay/internal/amqp"
	"outlay/internal/sheets"
	"outlay/internal/storage"
)

// ExportWorker consumes expense-created messages and keeps the export
// target in sync with the store. A periodic sweep of pending rows backs
// up the queue in case messages are lost.
type ExportWorker struct {
	store     *storage.Repository
	appender  sheets.RowAppender
	batchSize int
}

func NewExportWorker(store *storage.Repository, appender sheets.RowAppender, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleExpenseCreated processes a single expense-created message.
func (w *ExportWorker) HandleExpenseCreated(ctx context.Context, msg *amqp.ExpenseCreatedMessage) error {
	expense, err := w.store.GetExpense(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}
	if expense == nil {
		// Deleted before the export caught up; nothing to mirror.
		slog.InfoContext(ctx, "Expense gone before export, skipping", "id", msg.ID)
		return nil
	}

	return w.exportExpense(ctx, expense.ID)
}

// ProcessPending exports any rows that haven't been mirrored yet.
// This is a backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.ListPendingExportExpenses(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending export expenses: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending export expenses", "count", len(pending))

	for _, expense := range pending {
		if err := w.exportExpense(ctx, expense.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export expense", "id", expense.ID, "error", err)
			continue
		}
	}

	return nil
}

// RunPeriodicSweep drives ProcessPending on the given interval until the
// context is cancelled.
func (w *ExportWorker) RunPeriodicSweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic export sweep failed", "error", err)
			}
		}
	}
}

func (w *ExportWorker) exportExpense(ctx context.Context, id int64) error {
	expense, err := w.store.GetExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}
	if expense == nil {
		return nil
	}

	rowRef, err := w.appender.AppendExpense(ctx, *expense)
	if err != nil {
		if markErr := w.store.MarkExportError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append expense: %w", err)
	}

	if err := w.store.MarkExported(ctx, id); err != nil {
		// The row landed in the sheet; only the bookkeeping failed.
		slog.ErrorContext(ctx, "Failed to mark as exported", "id", id, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "Expense exported",
		"id", id,
		"row_ref", rowRef,
		"description", expense.Description,
		"amount", expense.Amount)

	return nil
}
