package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cuentas/internal/amqp"
	"cuentas/internal/core"
	"cuentas/internal/sheets"
	"cuentas/internal/storage"
)

// SyncWorker keeps the ledger mirror in step with SQLite. Posted
// entries get appended, void entries get removed; in both cases the
// entry's sync status is the outbox.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	mirror    sheets.Mirror
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, mirror sheets.Mirror, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single entry sync message from AMQP.
// The message carries only the id; the entry's current status decides
// what the mirror does.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	entry, err := w.storage.GetEntry(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted while the message was in flight - nothing to mirror.
			slog.WarnContext(ctx, "Entry gone, skipping sync", "id", msg.ID)
			return nil
		}
		return fmt.Errorf("get entry from storage: %w", err)
	}

	if err := w.syncEntry(ctx, entry); err != nil {
		return fmt.Errorf("sync entry to mirror: %w", err)
	}

	return nil
}

// ProcessPendingEntries sweeps entries that are still marked pending.
// This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingEntries(ctx context.Context) error {
	pending, err := w.storage.GetPendingSyncEntries(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending entries: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending entries", "count", len(pending))

	for _, p := range pending {
		entry, err := w.storage.GetEntry(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get entry", "id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			continue
		}

		if err := w.syncEntry(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to sync entry", "id", p.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupSyncCheck sweeps pending entries once at worker startup. This
// recovers from missed AMQP messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	// Get a larger batch for startup check
	pending, err := w.storage.GetPendingSyncEntries(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending entries for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending entries found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending entries on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, p := range pending {
		entry, err := w.storage.GetEntry(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get entry for startup sync",
				"id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			errorCount++
			continue
		}

		if err := w.syncEntry(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to sync entry during startup",
				"id", p.ID, "error", err)
			errorCount++
			continue
		}

		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)

	return nil
}

// syncEntry applies one entry to the mirror according to its status and
// updates the outbox column.
func (w *SyncWorker) syncEntry(ctx context.Context, entry core.JournalEntry) error {
	switch entry.Status {
	case core.EntryPosted:
		return w.appendToMirror(ctx, entry)
	case core.EntryVoid:
		return w.removeFromMirror(ctx, entry)
	default:
		// Drafts never reach the mirror. Clear the flag so the sweep
		// stops picking the entry up.
		slog.WarnContext(ctx, "Entry pending sync but not posted or void, clearing",
			"id", entry.ID, "status", entry.Status)
		return w.storage.MarkSynced(ctx, entry.ID)
	}
}

func (w *SyncWorker) appendToMirror(ctx context.Context, entry core.JournalEntry) error {
	ref, err := w.mirror.AppendEntry(ctx, entry)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, entry.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", entry.ID, "error", markErr)
		}
		return fmt.Errorf("append to mirror: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, entry.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", entry.ID, "error", err)
		// Don't return error here - the sync actually worked
	}

	slog.InfoContext(ctx, "Successfully mirrored entry",
		"id", entry.ID,
		"reference", entry.Reference,
		"mirror_ref", ref)

	return nil
}

func (w *SyncWorker) removeFromMirror(ctx context.Context, entry core.JournalEntry) error {
	if err := w.mirror.RemoveEntry(ctx, entry.Reference); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, entry.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", entry.ID, "error", markErr)
		}
		return fmt.Errorf("remove from mirror: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, entry.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", entry.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully removed voided entry from mirror",
		"id", entry.ID,
		"reference", entry.Reference)

	return nil
}
