package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cuentas/internal/core"

	"github.com/shopspring/decimal"
)

func scanBudget(row scanner) (core.Budget, error) {
	var (
		b     core.Budget
		start string
		end   string
	)
	if err := row.Scan(&b.ID, &b.CompanyID, &b.Name, &start, &end, &b.Active); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.StartDate, err = core.ParseDate(start); err != nil {
		return core.Budget{}, fmt.Errorf("stored start date %q: %w", start, err)
	}
	if b.EndDate, err = core.ParseDate(end); err != nil {
		return core.Budget{}, fmt.Errorf("stored end date %q: %w", end, err)
	}
	return b, nil
}

func scanBudgetLine(row scanner) (core.BudgetLine, error) {
	var (
		l          core.BudgetLine
		code       string
		qty        string
		priceCents int64
		unitID     sql.NullInt64
		thirdParty sql.NullInt64
		costCenter sql.NullInt64
	)
	if err := row.Scan(&l.ID, &l.BudgetID, &l.Description, &code, &qty, &priceCents, &unitID, &l.Frequency, &thirdParty, &costCenter); err != nil {
		return core.BudgetLine{}, err
	}
	l.AccountCode = core.AccountCode(code)
	quantity, err := decimal.NewFromString(qty)
	if err != nil {
		return core.BudgetLine{}, fmt.Errorf("stored quantity %q: %w", qty, err)
	}
	l.Quantity = quantity
	l.UnitPrice = core.AmountFromCents(priceCents)
	l.UnitID = idPtr(unitID)
	l.ThirdPartyID = idPtr(thirdParty)
	l.CostCenterID = idPtr(costCenter)
	return l, nil
}

func insertBudgetLines(ctx context.Context, q dbtx, budgetID int64, lines []core.BudgetLine) error {
	const ins = `INSERT INTO budget_lines
		(budget_id, description, account_code, quantity, unit_price_cents, unit_id, frequency, third_party_id, cost_center_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for i, l := range lines {
		_, err := q.ExecContext(ctx, ins,
			budgetID, l.Description, string(l.AccountCode), l.Quantity.String(),
			core.CentsFromAmount(l.UnitPrice), nullID(l.UnitID), string(l.Frequency),
			nullID(l.ThirdPartyID), nullID(l.CostCenterID))
		if err != nil {
			return fmt.Errorf("insert budget line %d: %w", i+1, err)
		}
	}
	return nil
}

func loadBudgetLines(ctx context.Context, q dbtx, budgetIDs []int64) (map[int64][]core.BudgetLine, error) {
	if len(budgetIDs) == 0 {
		return map[int64][]core.BudgetLine{}, nil
	}

	placeholders := strings.Repeat("?,", len(budgetIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(budgetIDs))
	for i, id := range budgetIDs {
		args[i] = id
	}

	query := `SELECT id, budget_id, description, account_code, quantity, unit_price_cents, unit_id, frequency, third_party_id, cost_center_id
		FROM budget_lines WHERE budget_id IN (` + placeholders + `) ORDER BY budget_id, id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load budget lines: %w", err)
	}
	defer rows.Close()

	byBudget := make(map[int64][]core.BudgetLine, len(budgetIDs))
	for rows.Next() {
		l, err := scanBudgetLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget line: %w", err)
		}
		byBudget[l.BudgetID] = append(byBudget[l.BudgetID], l)
	}
	return byBudget, rows.Err()
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Budget{}, fmt.Errorf("begin create budget: %w", err)
	}
	defer tx.Rollback()

	const ins = `INSERT INTO budgets (company_id, name, start_date, end_date, active)
		VALUES (?, ?, ?, ?, ?) RETURNING id`
	if err := tx.QueryRowContext(ctx, ins, b.CompanyID, b.Name, b.StartDate.String(), b.EndDate.String(), b.Active).Scan(&b.ID); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}

	if err := insertBudgetLines(ctx, tx, b.ID, b.Lines); err != nil {
		return core.Budget{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.Budget{}, fmt.Errorf("commit create budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget created",
		"id", b.ID,
		"company_id", b.CompanyID,
		"name", b.Name,
		"lines", len(b.Lines))
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	const q = `SELECT id, company_id, name, start_date, end_date, active FROM budgets WHERE id = ?`
	b, err := scanBudget(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Budget{}, ErrNotFound
		}
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}

	lines, err := loadBudgetLines(ctx, r.db, []int64{b.ID})
	if err != nil {
		return core.Budget{}, err
	}
	b.Lines = lines[b.ID]
	return b, nil
}

func (r *SQLiteRepository) listBudgets(ctx context.Context, companyID int64, activeOnly bool) ([]core.Budget, error) {
	q := `SELECT id, company_id, name, start_date, end_date, active FROM budgets WHERE company_id = ?`
	if activeOnly {
		q += ` AND active = 1`
	}
	q += ` ORDER BY start_date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, companyID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	var ids []int64
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := loadBudgetLines(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range budgets {
		budgets[i].Lines = lines[budgets[i].ID]
	}
	return budgets, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, companyID int64) ([]core.Budget, error) {
	return r.listBudgets(ctx, companyID, false)
}

// ListActiveBudgets returns the budgets that feed the cash-flow
// projection.
func (r *SQLiteRepository) ListActiveBudgets(ctx context.Context, companyID int64) ([]core.Budget, error) {
	return r.listBudgets(ctx, companyID, true)
}

// UpdateBudget replaces the budget header and all of its lines.
func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update budget: %w", err)
	}
	defer tx.Rollback()

	const upd = `UPDATE budgets SET name = ?, start_date = ?, end_date = ?, active = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, upd, b.Name, b.StartDate.String(), b.EndDate.String(), b.Active, b.ID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM budget_lines WHERE budget_id = ?`, b.ID); err != nil {
		return fmt.Errorf("clear budget lines: %w", err)
	}
	if err := insertBudgetLines(ctx, tx, b.ID, b.Lines); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget updated", "id", b.ID, "lines", len(b.Lines))
	return nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Budget deleted", "id", id)
	return nil
}

func scanScheduled(row scanner) (core.ScheduledTransaction, error) {
	var (
		s           core.ScheduledTransaction
		amountCents int64
		debit       string
		credit      string
		start       string
		end         sql.NullString
		lastRun     sql.NullString
		thirdParty  sql.NullInt64
		costCenter  sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.CompanyID, &s.Description, &amountCents, &debit, &credit,
		&s.Frequency, &start, &end, &thirdParty, &costCenter, &s.Active, &lastRun)
	if err != nil {
		return core.ScheduledTransaction{}, err
	}

	s.Amount = core.AmountFromCents(amountCents)
	s.DebitAccount = core.AccountCode(debit)
	s.CreditAccount = core.AccountCode(credit)
	s.ThirdPartyID = idPtr(thirdParty)
	s.CostCenterID = idPtr(costCenter)
	if s.StartDate, err = core.ParseDate(start); err != nil {
		return core.ScheduledTransaction{}, fmt.Errorf("stored start date %q: %w", start, err)
	}
	if s.EndDate, err = storedDate(end); err != nil {
		return core.ScheduledTransaction{}, err
	}
	if s.LastRunDate, err = storedDate(lastRun); err != nil {
		return core.ScheduledTransaction{}, err
	}
	return s, nil
}

const scheduledColumns = `id, company_id, description, amount_cents, debit_account, credit_account,
	frequency, start_date, end_date, third_party_id, cost_center_id, active, last_run_date`

func (r *SQLiteRepository) CreateScheduledTransaction(ctx context.Context, s core.ScheduledTransaction) (core.ScheduledTransaction, error) {
	const ins = `INSERT INTO scheduled_transactions
		(company_id, description, amount_cents, debit_account, credit_account, frequency, start_date, end_date, third_party_id, cost_center_id, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	var endDate any
	if s.EndDate != nil {
		endDate = s.EndDate.String()
	}
	err := r.db.QueryRowContext(ctx, ins,
		s.CompanyID, s.Description, core.CentsFromAmount(s.Amount),
		string(s.DebitAccount), string(s.CreditAccount), string(s.Frequency),
		s.StartDate.String(), endDate, nullID(s.ThirdPartyID), nullID(s.CostCenterID), s.Active).Scan(&s.ID)
	if err != nil {
		return core.ScheduledTransaction{}, fmt.Errorf("create scheduled transaction: %w", err)
	}

	slog.InfoContext(ctx, "Scheduled transaction created",
		"id", s.ID,
		"company_id", s.CompanyID,
		"description", s.Description,
		"frequency", s.Frequency)
	return s, nil
}

func (r *SQLiteRepository) GetScheduledTransaction(ctx context.Context, id int64) (core.ScheduledTransaction, error) {
	s, err := scanScheduled(r.db.QueryRowContext(ctx,
		`SELECT `+scheduledColumns+` FROM scheduled_transactions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ScheduledTransaction{}, ErrNotFound
		}
		return core.ScheduledTransaction{}, fmt.Errorf("get scheduled transaction: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) ListScheduledTransactions(ctx context.Context, companyID int64) ([]core.ScheduledTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scheduledColumns+` FROM scheduled_transactions WHERE company_id = ? ORDER BY description`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list scheduled transactions: %w", err)
	}
	defer rows.Close()
	return collectScheduled(rows)
}

// ListActiveScheduledTransactions returns every active schedule across
// companies, for the background worker.
func (r *SQLiteRepository) ListActiveScheduledTransactions(ctx context.Context) ([]core.ScheduledTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+scheduledColumns+` FROM scheduled_transactions WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active scheduled transactions: %w", err)
	}
	defer rows.Close()
	return collectScheduled(rows)
}

func collectScheduled(rows *sql.Rows) ([]core.ScheduledTransaction, error) {
	var schedules []core.ScheduledTransaction
	for rows.Next() {
		s, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled transaction: %w", err)
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func (r *SQLiteRepository) UpdateScheduledTransaction(ctx context.Context, s core.ScheduledTransaction) error {
	const upd = `UPDATE scheduled_transactions
		SET description = ?, amount_cents = ?, debit_account = ?, credit_account = ?, frequency = ?,
			start_date = ?, end_date = ?, third_party_id = ?, cost_center_id = ?, active = ?
		WHERE id = ?`
	var endDate any
	if s.EndDate != nil {
		endDate = s.EndDate.String()
	}
	res, err := r.db.ExecContext(ctx, upd,
		s.Description, core.CentsFromAmount(s.Amount),
		string(s.DebitAccount), string(s.CreditAccount), string(s.Frequency),
		s.StartDate.String(), endDate, nullID(s.ThirdPartyID), nullID(s.CostCenterID), s.Active, s.ID)
	if err != nil {
		return fmt.Errorf("update scheduled transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteScheduledTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scheduled transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkScheduledRun records the date a schedule last generated an entry.
func (r *SQLiteRepository) MarkScheduledRun(ctx context.Context, id int64, runDate core.Date) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_transactions SET last_run_date = ? WHERE id = ?`, runDate.String(), id); err != nil {
		return fmt.Errorf("mark scheduled run: %w", err)
	}
	return nil
}
