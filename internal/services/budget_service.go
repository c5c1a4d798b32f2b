package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
	"cuentas/internal/storage"
)

// BudgetService assembles the inputs of the cash-flow projection: posted
// entries inside the window plus the active budgets with their amortized
// lines. The arithmetic itself lives in core.
type BudgetService struct {
	storage *storage.SQLiteRepository
}

func NewBudgetService(storage *storage.SQLiteRepository) *BudgetService {
	return &BudgetService{storage: storage}
}

// LineAmortization pairs a budget line with its monthly buckets over the
// budget's range, for the detail and preview views.
type LineAmortization struct {
	Line   core.BudgetLine
	Months []core.MonthlyAmount
	Total  decimal.Decimal
}

// ProjectCashFlow builds the monthly projection for a company between
// from and to, starting the running balance at opening.
func (s *BudgetService) ProjectCashFlow(ctx context.Context, companyID int64, from, to core.Date, opening decimal.Decimal) ([]core.CashFlowRow, error) {
	entries, err := s.storage.ListEntries(ctx, storage.EntryFilter{
		CompanyID: companyID,
		From:      from,
		To:        to,
		Status:    string(core.EntryPosted),
	})
	if err != nil {
		return nil, fmt.Errorf("load posted entries: %w", err)
	}

	budgets, err := s.storage.ListActiveBudgets(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load active budgets: %w", err)
	}

	rows, err := core.ProjectCashFlow(entries, budgets, from, to, opening)
	if err != nil {
		return nil, fmt.Errorf("project cash flow: %w", err)
	}
	return rows, nil
}

// AmortizeBudget computes the monthly buckets of every line over the
// budget's own range. Lines that produce no occurrences are kept with an
// empty month list so the view can still show them.
func (s *BudgetService) AmortizeBudget(b core.Budget) ([]LineAmortization, error) {
	out := make([]LineAmortization, 0, len(b.Lines))
	for _, l := range b.Lines {
		months, err := l.Amortize(b.StartDate, b.EndDate)
		if err != nil {
			return nil, fmt.Errorf("amortize line %q: %w", l.Description, err)
		}
		out = append(out, LineAmortization{
			Line:   l,
			Months: months,
			Total:  l.Total(),
		})
	}
	return out, nil
}
