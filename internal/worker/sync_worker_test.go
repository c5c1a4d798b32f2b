package worker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuentas/internal/amqp"
	"cuentas/internal/core"
	"cuentas/internal/sheets/memory"
	"cuentas/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func postedTestEntry(t *testing.T, repo *storage.SQLiteRepository) core.JournalEntry {
	t.Helper()
	ctx := context.Background()

	company, err := repo.CreateCompany(ctx, core.Company{Code: "ACME", Name: "Acme SA", Active: true})
	require.NoError(t, err)

	draft, err := repo.CreateEntry(ctx, core.JournalEntry{
		CompanyID:   company.ID,
		Date:        core.NewDate(2026, 3, 15),
		Description: "Compra de insumos",
		Status:      core.EntryDraft,
		Lines: []core.JournalLine{
			{AccountCode: "510-100-000-000", Debit: decimal.RequireFromString("150.00")},
			{AccountCode: "110-505-000-000", Credit: decimal.RequireFromString("150.00")},
		},
	})
	require.NoError(t, err)

	posted, err := repo.PostEntry(ctx, draft.ID)
	require.NoError(t, err)
	return posted
}

func TestHandleSyncMessageAppendsPostedEntry(t *testing.T) {
	repo := newTestRepo(t)
	mirror := memory.New()
	w := NewSyncWorker(repo, mirror, 10)
	ctx := context.Background()

	posted := postedTestEntry(t, repo)

	msg := amqp.NewEntrySyncMessage(posted.ID, posted.Version)
	require.NoError(t, w.HandleSyncMessage(ctx, msg))

	refs, err := mirror.ListReferences(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, []string{posted.Reference}, refs)
	assert.Len(t, mirror.Rows(), 2)

	// The outbox flag is cleared, the sweep finds nothing.
	pending, err := repo.GetPendingSyncEntries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHandleSyncMessageRemovesVoidEntry(t *testing.T) {
	repo := newTestRepo(t)
	mirror := memory.New()
	w := NewSyncWorker(repo, mirror, 10)
	ctx := context.Background()

	posted := postedTestEntry(t, repo)
	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewEntrySyncMessage(posted.ID, posted.Version)))
	require.Len(t, mirror.Rows(), 2)

	voided, err := repo.VoidEntry(ctx, posted.ID, "monto equivocado")
	require.NoError(t, err)

	require.NoError(t, w.HandleSyncMessage(ctx, amqp.NewEntrySyncMessage(voided.ID, voided.Version)))

	assert.Empty(t, mirror.Rows())

	pending, err := repo.GetPendingSyncEntries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHandleSyncMessageMissingEntry(t *testing.T) {
	repo := newTestRepo(t)
	w := NewSyncWorker(repo, memory.New(), 10)

	// An entry deleted before the message arrives is not an error.
	err := w.HandleSyncMessage(context.Background(), amqp.NewEntrySyncMessage(9999, 1))
	require.NoError(t, err)
}

func TestProcessPendingEntriesSweep(t *testing.T) {
	repo := newTestRepo(t)
	mirror := memory.New()
	w := NewSyncWorker(repo, mirror, 10)
	ctx := context.Background()

	posted := postedTestEntry(t, repo)

	// Simulate a lost AMQP message: the entry sits pending until the
	// sweep runs.
	pending, err := repo.GetPendingSyncEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, posted.ID, pending[0].ID)
	assert.Equal(t, "posted", pending[0].Status)

	require.NoError(t, w.ProcessPendingEntries(ctx))

	refs, err := mirror.ListReferences(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, []string{posted.Reference}, refs)

	pending, err = repo.GetPendingSyncEntries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// A second sweep is a no-op.
	require.NoError(t, w.ProcessPendingEntries(ctx))
	assert.Len(t, mirror.Rows(), 2)
}

func TestStartupSyncCheck(t *testing.T) {
	repo := newTestRepo(t)
	mirror := memory.New()
	w := NewSyncWorker(repo, mirror, 2)
	ctx := context.Background()

	posted := postedTestEntry(t, repo)

	require.NoError(t, w.StartupSyncCheck(ctx))

	refs, err := mirror.ListReferences(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, []string{posted.Reference}, refs)

	require.NoError(t, w.StartupSyncCheck(ctx))
}
