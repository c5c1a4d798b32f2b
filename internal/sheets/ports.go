package sheets

import (
	"context"

	"cuentas/internal/core"
)

// Ports for outbound ledger mirror adapters.
type (
	// EntryAppender mirrors a posted journal entry, one row per line.
	EntryAppender interface {
		AppendEntry(ctx context.Context, e core.JournalEntry) (rowRef string, err error)
	}

	// EntryRemover removes the mirrored rows of a voided entry. Removing a
	// reference that was never mirrored is not an error.
	EntryRemover interface {
		RemoveEntry(ctx context.Context, reference string) error
	}

	// LedgerReader lists the references already mirrored for a year.
	LedgerReader interface {
		ListReferences(ctx context.Context, year int) ([]string, error)
	}
)

// Mirror bundles the full surface the sync worker drives.
type Mirror interface {
	EntryAppender
	EntryRemover
	LedgerReader
}
