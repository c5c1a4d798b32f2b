package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cuentas/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestCompany(t *testing.T, repo *SQLiteRepository) core.Company {
	t.Helper()
	c, err := repo.CreateCompany(context.Background(), core.Company{
		Code:   "ACME",
		Name:   "Acme SA",
		Active: true,
	})
	require.NoError(t, err)
	return c
}

func draftEntry(companyID int64) core.JournalEntry {
	return core.JournalEntry{
		CompanyID:   companyID,
		Date:        core.NewDate(2026, 3, 15),
		Description: "Compra de insumos",
		Status:      core.EntryDraft,
		Lines: []core.JournalLine{
			{AccountCode: "510-100-000-000", Debit: decimal.RequireFromString("150.00")},
			{AccountCode: "110-505-000-000", Credit: decimal.RequireFromString("150.00")},
		},
	}
}

func TestCompanyDuplicateCode(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	newTestCompany(t, repo)
	_, err := repo.CreateCompany(ctx, core.Company{Code: "ACME", Name: "Otra"})
	require.ErrorIs(t, err, core.ErrDuplicateCode)
}

func TestAccountDuplicatePerCompany(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := newTestCompany(t, repo)

	_, err := repo.CreateAccount(ctx, core.Account{CompanyID: c.ID, Code: "110-000-000-000", Name: "Activo", Active: true})
	require.NoError(t, err)
	_, err = repo.CreateAccount(ctx, core.Account{CompanyID: c.ID, Code: "110-000-000-000", Name: "Repetida", Active: true})
	require.ErrorIs(t, err, core.ErrDuplicateCode)

	// The same code is fine in another company.
	c2, err := repo.CreateCompany(ctx, core.Company{Code: "BETA", Name: "Beta SA", Active: true})
	require.NoError(t, err)
	_, err = repo.CreateAccount(ctx, core.Account{CompanyID: c2.ID, Code: "110-000-000-000", Name: "Activo", Active: true})
	require.NoError(t, err)
}

func TestSeedChartSkipsExisting(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := newTestCompany(t, repo)

	chart := []core.Account{
		{Code: "110-000-000-000", Name: "Activo corriente"},
		{Code: "110-505-000-000", Name: "Caja"},
		{Code: "430-000-000-000", Name: "Ingresos"},
	}
	n, err := repo.SeedChart(ctx, c.ID, chart)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = repo.SeedChart(ctx, c.ID, chart)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	accounts, err := repo.ListAccounts(ctx, c.ID, true)
	require.NoError(t, err)
	assert.Len(t, accounts, 3)
}

func TestEntryLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := newTestCompany(t, repo)

	e, err := repo.CreateEntry(ctx, draftEntry(c.ID))
	require.NoError(t, err)
	require.NotZero(t, e.ID)
	assert.Empty(t, e.Reference)

	got, err := repo.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, core.EntryDraft, got.Status)
	require.Len(t, got.Lines, 2)
	assert.True(t, got.Lines[0].Debit.Equal(decimal.RequireFromString("150.00")))

	// Drafts can be edited.
	got.Description = "Compra de insumos corregida"
	require.NoError(t, repo.UpdateEntry(ctx, got))

	posted, err := repo.PostEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, core.EntryPosted, posted.Status)
	assert.Equal(t, "AST-2026-000001", posted.Reference)

	// Posted entries are frozen.
	err = repo.UpdateEntry(ctx, got)
	require.ErrorIs(t, err, ErrNotEditable)
	err = repo.DeleteEntry(ctx, e.ID)
	require.ErrorIs(t, err, ErrNotEditable)

	voided, err := repo.VoidEntry(ctx, e.ID, "duplicado")
	require.NoError(t, err)
	assert.Equal(t, core.EntryVoid, voided.Status)
	assert.Equal(t, "duplicado", voided.VoidReason)
}

func TestPostEntryRejectsUnbalanced(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := newTestCompany(t, repo)

	e := draftEntry(c.ID)
	e.Lines[1].Credit = decimal.RequireFromString("149.00")
	saved, err := repo.CreateEntry(ctx, e)
	require.NoError(t, err)

	_, err = repo.PostEntry(ctx, saved.ID)
	require.ErrorIs(t, err, core.ErrUnbalanced)

	// Still a draft after the failed post.
	got, err := repo.GetEntry(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, core.EntryDraft, got.Status)
}

func TestReferenceSequencePerYear(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := newTestCompany(t, repo)

	first, err := repo.CreateEntry(ctx, draftEntry(c.ID))
	require.NoError(t, err)
	second, err := repo.CreateEntry(ctx, draftEntry(c.ID))
	require.NoError(t, err)

	otherYear := draftEntry(c.ID)
	otherYear.Date = core.NewDate(2027, 1, 10)
	third, err := repo.CreateEntry(ctx, otherYear)
	require.NoError(t, err)

	p1, err := repo.PostEntry(ctx, first.ID)
	require.NoError(t, err)
	p2, err := repo.PostEntry(ctx, second.ID)
	require.NoError(t, err)
	p3, err := repo.PostEntry(ctx, third.ID)
	require.NoError(t, err)

	assert.Equal(t, "AST-2026-000001", p1.Reference)
	assert.Equal(t, "AST-2026-000002", p2.Reference)
	assert.Equal(t, "AST-2027-000001", p3.Reference)
}

func TestSyncBookkeeping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := newTestCompany(t, repo)

	e, err := repo.CreateEntry(ctx, draftEntry(c.ID))
	require.NoError(t, err)

	// Drafts are not mirrored.
	pending, err := repo.GetPendingSyncEntries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	posted, err := repo.PostEntry(ctx, e.ID)
	require.NoError(t, err)

	pending, err = repo.GetPendingSyncEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, posted.Reference, pending[0].Reference)
	assert.Equal(t, "posted", pending[0].Status)

	require.NoError(t, repo.MarkSynced(ctx, e.ID))
	pending, err = repo.GetPendingSyncEntries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Voiding flags the entry again so the mirror row gets removed.
	_, err = repo.VoidEntry(ctx, e.ID, "anulado por error")
	require.NoError(t, err)
	pending, err = repo.GetPendingSyncEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "void", pending[0].Status)
}

func TestListEntriesFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := newTestCompany(t, repo)

	e1, err := repo.CreateEntry(ctx, draftEntry(c.ID))
	require.NoError(t, err)
	_, err = repo.PostEntry(ctx, e1.ID)
	require.NoError(t, err)

	e2 := draftEntry(c.ID)
	e2.Date = core.NewDate(2026, 6, 1)
	e2.Description = "Pago de arriendo"
	e2.Lines = []core.JournalLine{
		{AccountCode: "520-100-000-000", Debit: decimal.RequireFromString("80.00")},
		{AccountCode: "110-505-000-000", Credit: decimal.RequireFromString("80.00")},
	}
	_, err = repo.CreateEntry(ctx, e2)
	require.NoError(t, err)

	posted, err := repo.ListEntries(ctx, EntryFilter{CompanyID: c.ID, Status: "posted"})
	require.NoError(t, err)
	require.Len(t, posted, 1)
	require.Len(t, posted[0].Lines, 2)

	march, err := repo.ListEntries(ctx, EntryFilter{
		CompanyID: c.ID,
		From:      core.NewDate(2026, 3, 1),
		To:        core.NewDate(2026, 3, 31),
	})
	require.NoError(t, err)
	assert.Len(t, march, 1)

	// Prefix search: the level-1 group matches its descendants.
	byAccount, err := repo.ListEntries(ctx, EntryFilter{CompanyID: c.ID, AccountCode: "510-000-000-000"})
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	assert.True(t, strings.HasPrefix(string(byAccount[0].Lines[0].AccountCode), "510-"))

	bySearch, err := repo.ListEntries(ctx, EntryFilter{CompanyID: c.ID, Search: "arriendo"})
	require.NoError(t, err)
	assert.Len(t, bySearch, 1)
}

func TestReorderCostCenters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := newTestCompany(t, repo)

	var ids []int64
	for _, code := range []string{"CC1", "CC2", "CC3"} {
		cc, err := repo.CreateCostCenter(ctx, core.CostCenter{CompanyID: c.ID, Code: code, Name: code, Active: true})
		require.NoError(t, err)
		ids = append(ids, cc.ID)
	}

	// Move the last one to the front.
	require.NoError(t, repo.ReorderCostCenters(ctx, c.ID, []int64{ids[2], ids[0], ids[1]}))

	centers, err := repo.ListCostCenters(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, centers, 3)
	assert.Equal(t, "CC3", centers[0].Code)
	assert.Equal(t, "CC1", centers[1].Code)
	assert.Equal(t, "CC2", centers[2].Code)

	// A partial list puts unlisted centers after the listed ones.
	require.NoError(t, repo.ReorderCostCenters(ctx, c.ID, []int64{ids[1]}))
	centers, err = repo.ListCostCenters(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "CC2", centers[0].Code)
}

func TestBudgetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := newTestCompany(t, repo)

	b, err := repo.CreateBudget(ctx, core.Budget{
		CompanyID: c.ID,
		Name:      "Presupuesto 2026",
		StartDate: core.NewDate(2026, 1, 1),
		EndDate:   core.NewDate(2026, 12, 31),
		Active:    true,
		Lines: []core.BudgetLine{
			{
				Description: "Arriendo",
				AccountCode: "510-200-000-000",
				Quantity:    decimal.RequireFromString("1"),
				UnitPrice:   decimal.RequireFromString("850.00"),
				Frequency:   core.Monthly,
			},
			{
				Description: "Seguro",
				AccountCode: "510-300-000-000",
				Quantity:    decimal.RequireFromString("2.5"),
				UnitPrice:   decimal.RequireFromString("120.40"),
				Frequency:   core.Quarterly,
			},
		},
	})
	require.NoError(t, err)

	got, err := repo.GetBudget(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 2)
	assert.True(t, got.Lines[1].Quantity.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, got.Lines[1].UnitPrice.Equal(decimal.RequireFromString("120.40")))
	assert.Equal(t, core.Quarterly, got.Lines[1].Frequency)

	got.Lines = got.Lines[:1]
	require.NoError(t, repo.UpdateBudget(ctx, got))
	got, err = repo.GetBudget(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, got.Lines, 1)
}

func TestScheduledTransactionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := newTestCompany(t, repo)

	s, err := repo.CreateScheduledTransaction(ctx, core.ScheduledTransaction{
		CompanyID:     c.ID,
		Description:   "Arriendo bodega",
		Amount:        decimal.RequireFromString("850.00"),
		DebitAccount:  "510-200-000-000",
		CreditAccount: "110-505-000-000",
		Frequency:     core.Monthly,
		StartDate:     core.NewDate(2026, 1, 1),
		Active:        true,
	})
	require.NoError(t, err)

	got, err := repo.GetScheduledTransaction(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EndDate)
	assert.Nil(t, got.LastRunDate)

	require.NoError(t, repo.MarkScheduledRun(ctx, s.ID, core.NewDate(2026, 2, 1)))
	got, err = repo.GetScheduledTransaction(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastRunDate)
	assert.Equal(t, "2026-02-01", got.LastRunDate.String())

	active, err := repo.ListActiveScheduledTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestAuthenticateAndSessions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.EnsureAdmin(ctx, "admin@acme.test", "secreto123")
	require.NoError(t, err)
	assert.True(t, created)

	// Second call is a no-op once a user exists.
	created, err = repo.EnsureAdmin(ctx, "admin@acme.test", "secreto123")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = repo.Authenticate(ctx, "admin@acme.test", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = repo.Authenticate(ctx, "nobody@acme.test", "secreto123")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	u, err := repo.Authenticate(ctx, "admin@acme.test", "secreto123")
	require.NoError(t, err)
	assert.Equal(t, core.RoleAdmin, u.Role)

	token, err := repo.CreateSession(ctx, u.ID, time.Hour)
	require.NoError(t, err)

	sessionUser, err := repo.GetSessionUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, sessionUser.ID)

	require.NoError(t, repo.DeleteSession(ctx, token))
	_, err = repo.GetSessionUser(ctx, token)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredSessionRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.EnsureAdmin(ctx, "admin@acme.test", "secreto123")
	require.NoError(t, err)
	u, err := repo.Authenticate(ctx, "admin@acme.test", "secreto123")
	require.NoError(t, err)

	token, err := repo.CreateSession(ctx, u.ID, -time.Minute)
	require.NoError(t, err)
	_, err = repo.GetSessionUser(ctx, token)
	require.ErrorIs(t, err, ErrNotFound)

	n, err := repo.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSavedFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := newTestCompany(t, repo)

	_, err := repo.EnsureAdmin(ctx, "admin@acme.test", "secreto123")
	require.NoError(t, err)
	u, err := repo.Authenticate(ctx, "admin@acme.test", "secreto123")
	require.NoError(t, err)

	got, err := repo.GetFilter(ctx, u.ID, c.ID, "entries")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, repo.UpsertFilter(ctx, u.ID, c.ID, "entries", `{"status":"posted"}`))
	require.NoError(t, repo.UpsertFilter(ctx, u.ID, c.ID, "entries", `{"status":"draft"}`))

	got, err = repo.GetFilter(ctx, u.ID, c.ID, "entries")
	require.NoError(t, err)
	assert.Equal(t, `{"status":"draft"}`, got)
}

func TestReadMonthOverview(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := newTestCompany(t, repo)

	e1, err := repo.CreateEntry(ctx, draftEntry(c.ID))
	require.NoError(t, err)
	_, err = repo.PostEntry(ctx, e1.ID)
	require.NoError(t, err)

	// A draft in the same month counts only in the draft column.
	_, err = repo.CreateEntry(ctx, draftEntry(c.ID))
	require.NoError(t, err)

	overview, err := repo.ReadMonthOverview(ctx, c.ID, 2026, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, overview.Posted)
	assert.Equal(t, 1, overview.Drafts)
	// Debit 150 on a class-5 account, credit 150 on a class-1 account.
	assert.Equal(t, "150.00", overview.Inflows.StringFixed(2))
	assert.Equal(t, "150.00", overview.Outflows.StringFixed(2))
	assert.Len(t, overview.TopAccounts, 2)
}
