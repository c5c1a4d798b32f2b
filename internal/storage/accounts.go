package storage

import (
	"context"
	"fmt"
	"log/slog"

	"cuentas/internal/core"
)

func scanAccount(row scanner) (core.Account, error) {
	var a core.Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Active)
	return a, err
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	const q = `INSERT INTO accounts (company_id, code, name, active)
		VALUES (?, ?, ?, ?) RETURNING id`
	if err := r.db.QueryRowContext(ctx, q, a.CompanyID, a.Code, a.Name, a.Active).Scan(&a.ID); err != nil {
		if isUniqueViolation(err) {
			return core.Account{}, fmt.Errorf("account %s: %w", a.Code, core.ErrDuplicateCode)
		}
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created",
		"id", a.ID,
		"company_id", a.CompanyID,
		"code", a.Code,
		"name", a.Name)
	return a, nil
}

// ListAccounts returns the company's chart ordered by code, so parents
// always precede their children.
func (r *SQLiteRepository) ListAccounts(ctx context.Context, companyID int64, activeOnly bool) ([]core.Account, error) {
	q := `SELECT id, company_id, code, name, active FROM accounts WHERE company_id = ?`
	if activeOnly {
		q += ` AND active = 1`
	}
	q += ` ORDER BY code`

	rows, err := r.db.QueryContext(ctx, q, companyID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) error {
	const q = `UPDATE accounts SET name = ?, active = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, a.Name, a.Active, a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedChart loads a chart template into a company, skipping codes that
// already exist. Returns how many accounts were inserted.
func (r *SQLiteRepository) SeedChart(ctx context.Context, companyID int64, accounts []core.Account) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed chart: %w", err)
	}
	defer tx.Rollback()

	const q = `INSERT INTO accounts (company_id, code, name, active)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (company_id, code) DO NOTHING`
	inserted := 0
	for _, a := range accounts {
		res, err := tx.ExecContext(ctx, q, companyID, string(a.Code), a.Name)
		if err != nil {
			return 0, fmt.Errorf("seed account %s: %w", a.Code, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed chart: %w", err)
	}

	slog.InfoContext(ctx, "Chart of accounts seeded",
		"company_id", companyID,
		"inserted", inserted,
		"total", len(accounts))
	return inserted, nil
}
