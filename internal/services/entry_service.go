package services

import (
	"context"
	"fmt"
	"log/slog"

	"cuentas/internal/amqp"
	"cuentas/internal/core"
	"cuentas/internal/storage"
)

// EntryService orchestrates the journal posting lifecycle across SQLite
// and AMQP. Drafts live in SQLite only; posting and voiding mark the
// entry pending for the mirror and nudge the sync worker over AMQP.
type EntryService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewEntryService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *EntryService {
	return &EntryService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// PostEntry posts a draft and publishes a sync message for the mirror.
func (s *EntryService) PostEntry(ctx context.Context, id int64) (core.JournalEntry, error) {
	// Post in SQLite first (fast, reliable)
	e, err := s.storage.PostEntry(ctx, id)
	if err != nil {
		return core.JournalEntry{}, fmt.Errorf("post entry: %w", err)
	}

	// Publish async sync message (non-blocking)
	if err := s.publishSyncMessage(ctx, e.ID, e.Version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", e.ID, "reference", e.Reference, "error", err)
		// Don't fail the request - the entry is posted locally and the
		// pending sweep will pick it up.
	}

	return e, nil
}

// VoidEntry voids a posted entry and publishes a sync message so the
// mirror drops its rows.
func (s *EntryService) VoidEntry(ctx context.Context, id int64, reason string) (core.JournalEntry, error) {
	e, err := s.storage.VoidEntry(ctx, id, reason)
	if err != nil {
		return core.JournalEntry{}, fmt.Errorf("void entry: %w", err)
	}

	if err := s.publishSyncMessage(ctx, e.ID, e.Version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", e.ID, "reference", e.Reference, "error", err)
	}

	return e, nil
}

func (s *EntryService) publishSyncMessage(ctx context.Context, id, version int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}

	return s.amqpClient.PublishEntrySync(ctx, id, version)
}

// Close closes both storage and AMQP connections
func (s *EntryService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close entry service: %v", errs)
	}

	return nil
}
