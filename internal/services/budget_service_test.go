package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuentas/internal/core"
)

func TestBudgetServiceProjectCashFlow(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewBudgetService(repo)
	entries := NewEntryService(repo, nil)
	ctx := context.Background()

	company := newTestCompany(t, repo)

	// One posted sale in March: 1000 into a class-1 account (inflow).
	draft, err := repo.CreateEntry(ctx, core.JournalEntry{
		CompanyID:   company.ID,
		Date:        core.NewDate(2026, 3, 10),
		Description: "Venta de contado",
		Status:      core.EntryDraft,
		Lines: []core.JournalLine{
			{AccountCode: "110-505-000-000", Debit: decimal.RequireFromString("1000.00")},
			{AccountCode: "410-100-000-000", Credit: decimal.RequireFromString("1000.00")},
		},
	})
	require.NoError(t, err)
	_, err = entries.PostEntry(ctx, draft.ID)
	require.NoError(t, err)

	// A draft in the same window must not count.
	_, err = repo.CreateEntry(ctx, core.JournalEntry{
		CompanyID:   company.ID,
		Date:        core.NewDate(2026, 4, 5),
		Description: "Borrador",
		Status:      core.EntryDraft,
		Lines: []core.JournalLine{
			{AccountCode: "510-100-000-000", Debit: decimal.RequireFromString("999.00")},
			{AccountCode: "110-505-000-000", Credit: decimal.RequireFromString("999.00")},
		},
	})
	require.NoError(t, err)

	// An active budget spreading 300 of rent over March..May (class 5, outflow).
	_, err = repo.CreateBudget(ctx, core.Budget{
		CompanyID: company.ID,
		Name:      "Gastos fijos",
		StartDate: core.NewDate(2026, 3, 1),
		EndDate:   core.NewDate(2026, 5, 31),
		Active:    true,
		Lines: []core.BudgetLine{
			{
				Description: "Arriendo",
				AccountCode: "510-200-000-000",
				Quantity:    decimal.NewFromInt(3),
				UnitPrice:   decimal.RequireFromString("100.00"),
				Frequency:   core.Monthly,
			},
		},
	})
	require.NoError(t, err)

	rows, err := svc.ProjectCashFlow(ctx, company.ID,
		core.NewDate(2026, 3, 1), core.NewDate(2026, 5, 31), decimal.Zero)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Both sale lines are inflow-classed (110 and 410), so March shows
	// 2000 of inflows against the 100 budget outflow.
	assert.True(t, rows[0].Inflows.Equal(decimal.RequireFromString("2000.00")),
		"march inflows = %s", rows[0].Inflows)
	assert.True(t, rows[0].Outflows.Equal(decimal.RequireFromString("100.00")),
		"march outflows = %s", rows[0].Outflows)

	// April and May only carry the amortized rent.
	assert.True(t, rows[1].Inflows.IsZero(), "april inflows = %s", rows[1].Inflows)
	assert.True(t, rows[1].Outflows.Equal(decimal.RequireFromString("100.00")))

	// Running balance: 1900, 1800, 1700.
	assert.True(t, rows[2].Balance.Equal(decimal.RequireFromString("1700.00")),
		"final balance = %s", rows[2].Balance)
}

func TestBudgetServiceProjectCashFlowBadRange(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewBudgetService(repo)
	company := newTestCompany(t, repo)

	_, err := svc.ProjectCashFlow(context.Background(), company.ID,
		core.NewDate(2026, 5, 1), core.NewDate(2026, 3, 1), decimal.Zero)
	require.Error(t, err)
}

func TestBudgetServiceAmortizeBudget(t *testing.T) {
	svc := NewBudgetService(nil)

	b := core.Budget{
		Name:      "Plan anual",
		StartDate: core.NewDate(2026, 1, 15),
		EndDate:   core.NewDate(2026, 12, 31),
		Active:    true,
		Lines: []core.BudgetLine{
			{
				Description: "Licencias",
				AccountCode: "510-300-000-000",
				Quantity:    decimal.NewFromInt(12),
				UnitPrice:   decimal.RequireFromString("8.33"),
				Frequency:   core.Monthly,
			},
			{
				Description: "Seguro",
				AccountCode: "510-400-000-000",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   decimal.RequireFromString("500.00"),
				Frequency:   core.Annual,
			},
		},
	}

	amortized, err := svc.AmortizeBudget(b)
	require.NoError(t, err)
	require.Len(t, amortized, 2)

	// Buckets must sum back to the line total exactly.
	sum := decimal.Zero
	for _, m := range amortized[0].Months {
		sum = sum.Add(m.Amount)
	}
	assert.True(t, sum.Equal(amortized[0].Total),
		"buckets sum %s, total %s", sum, amortized[0].Total)
	assert.Len(t, amortized[0].Months, 12)

	// Annual line lands once.
	require.Len(t, amortized[1].Months, 1)
	assert.True(t, amortized[1].Months[0].Amount.Equal(decimal.RequireFromString("500.00")))
}
