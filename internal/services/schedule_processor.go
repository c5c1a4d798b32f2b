package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cuentas/internal/core"
	"cuentas/internal/storage"
)

// ScheduleProcessor turns due scheduled transactions into draft journal
// entries. Drafts never touch the mirror, so no sync message is
// published here; posting the draft later does that.
type ScheduleProcessor struct {
	storage *storage.SQLiteRepository
}

// NewScheduleProcessor creates a new scheduled transaction processor
func NewScheduleProcessor(storage *storage.SQLiteRepository) *ScheduleProcessor {
	return &ScheduleProcessor{storage: storage}
}

// ProcessDueSchedules processes all scheduled transactions that are due
// for execution and returns how many drafts were created.
func (p *ScheduleProcessor) ProcessDueSchedules(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	schedules, err := p.storage.ListActiveScheduledTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get active scheduled transactions: %w", err)
	}

	today := core.NewDate(now.Year(), int(now.Month()), now.Day())

	slog.InfoContext(ctx, "Processing scheduled transactions",
		"total_active", len(schedules),
		"processing_date", today.String())

	processedCount := 0

	for _, s := range schedules {
		// Not started yet or already past its end date
		if today.Before(s.StartDate.Time) || s.ExpiredAt(today) {
			continue
		}

		checker, err := GetDuenessChecker(s.Frequency)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to resolve dueness checker",
				"schedule_id", s.ID,
				"frequency", s.Frequency,
				"error", err)
			continue
		}

		var lastRun time.Time
		if s.LastRunDate != nil {
			lastRun = s.LastRunDate.Time
		}

		if !checker.IsDue(lastRun, now, s.StartDate) {
			continue
		}

		created, err := p.storage.CreateEntry(ctx, s.EntryFor(today))
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create draft from schedule",
				"schedule_id", s.ID,
				"description", s.Description,
				"error", err)
			continue
		}

		if err := p.storage.MarkScheduledRun(ctx, s.ID, today); err != nil {
			slog.ErrorContext(ctx, "Failed to update last run date",
				"schedule_id", s.ID,
				"error", err)
			// Continue anyway - the draft was created successfully
		}

		processedCount++
		slog.InfoContext(ctx, "Created draft entry from schedule",
			"schedule_id", s.ID,
			"entry_id", created.ID,
			"description", s.Description,
			"amount", s.Amount.StringFixed(2),
			"frequency", s.Frequency)
	}

	slog.InfoContext(ctx, "Scheduled transaction processing complete",
		"processed", processedCount,
		"total_checked", len(schedules))

	return processedCount, nil
}
