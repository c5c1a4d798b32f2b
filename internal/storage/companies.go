package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"cuentas/internal/core"
)

func scanCompany(row scanner) (core.Company, error) {
	var c core.Company
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.TaxID, &c.Address, &c.Active)
	return c, err
}

func (r *SQLiteRepository) CreateCompany(ctx context.Context, c core.Company) (core.Company, error) {
	const q = `INSERT INTO companies (code, name, tax_id, address, active)
		VALUES (?, ?, ?, ?, ?) RETURNING id`
	if err := r.db.QueryRowContext(ctx, q, c.Code, c.Name, c.TaxID, c.Address, c.Active).Scan(&c.ID); err != nil {
		if isUniqueViolation(err) {
			return core.Company{}, fmt.Errorf("company %q: %w", c.Code, core.ErrDuplicateCode)
		}
		return core.Company{}, fmt.Errorf("create company: %w", err)
	}

	slog.InfoContext(ctx, "Company created", "id", c.ID, "code", c.Code, "name", c.Name)
	return c, nil
}

func (r *SQLiteRepository) GetCompany(ctx context.Context, id int64) (core.Company, error) {
	const q = `SELECT id, code, name, tax_id, address, active FROM companies WHERE id = ?`
	c, err := scanCompany(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Company{}, ErrNotFound
		}
		return core.Company{}, fmt.Errorf("get company: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCompanies(ctx context.Context) ([]core.Company, error) {
	const q = `SELECT id, code, name, tax_id, address, active FROM companies ORDER BY code`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var companies []core.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (r *SQLiteRepository) UpdateCompany(ctx context.Context, c core.Company) error {
	const q = `UPDATE companies SET name = ?, tax_id = ?, address = ?, active = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, c.Name, c.TaxID, c.Address, c.Active, c.ID)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
