package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"cuentas/internal/core"
)

func scanThirdParty(row scanner) (core.ThirdParty, error) {
	var tp core.ThirdParty
	err := row.Scan(&tp.ID, &tp.CompanyID, &tp.Code, &tp.Name, &tp.TaxID, &tp.Kind, &tp.Email, &tp.Phone, &tp.Active)
	return tp, err
}

func (r *SQLiteRepository) CreateThirdParty(ctx context.Context, tp core.ThirdParty) (core.ThirdParty, error) {
	const q = `INSERT INTO third_parties (company_id, code, name, tax_id, kind, email, phone, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := r.db.QueryRowContext(ctx, q,
		tp.CompanyID, tp.Code, tp.Name, tp.TaxID, string(tp.Kind), tp.Email, tp.Phone, tp.Active).Scan(&tp.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ThirdParty{}, fmt.Errorf("third party %q: %w", tp.Code, core.ErrDuplicateCode)
		}
		return core.ThirdParty{}, fmt.Errorf("create third party: %w", err)
	}

	slog.InfoContext(ctx, "Third party created",
		"id", tp.ID,
		"company_id", tp.CompanyID,
		"code", tp.Code,
		"kind", tp.Kind)
	return tp, nil
}

func (r *SQLiteRepository) GetThirdParty(ctx context.Context, id int64) (core.ThirdParty, error) {
	const q = `SELECT id, company_id, code, name, tax_id, kind, email, phone, active
		FROM third_parties WHERE id = ?`
	tp, err := scanThirdParty(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ThirdParty{}, ErrNotFound
		}
		return core.ThirdParty{}, fmt.Errorf("get third party: %w", err)
	}
	return tp, nil
}

// ListThirdParties returns the company's third parties, optionally only
// those usable on a given side (customer, supplier). A kind filter also
// matches "both".
func (r *SQLiteRepository) ListThirdParties(ctx context.Context, companyID int64, kind core.ThirdPartyKind) ([]core.ThirdParty, error) {
	q := `SELECT id, company_id, code, name, tax_id, kind, email, phone, active
		FROM third_parties WHERE company_id = ?`
	args := []any{companyID}
	if kind != "" {
		q += ` AND kind IN (?, 'both')`
		args = append(args, string(kind))
	}
	q += ` ORDER BY code`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list third parties: %w", err)
	}
	defer rows.Close()

	var parties []core.ThirdParty
	for rows.Next() {
		tp, err := scanThirdParty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan third party: %w", err)
		}
		parties = append(parties, tp)
	}
	return parties, rows.Err()
}

func (r *SQLiteRepository) UpdateThirdParty(ctx context.Context, tp core.ThirdParty) error {
	const q = `UPDATE third_parties SET name = ?, tax_id = ?, kind = ?, email = ?, phone = ?, active = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, tp.Name, tp.TaxID, string(tp.Kind), tp.Email, tp.Phone, tp.Active, tp.ID)
	if err != nil {
		return fmt.Errorf("update third party: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCostCenter(row scanner) (core.CostCenter, error) {
	var cc core.CostCenter
	err := row.Scan(&cc.ID, &cc.CompanyID, &cc.Code, &cc.Name, &cc.Position, &cc.Active)
	return cc, err
}

// CreateCostCenter appends the new center at the end of the company's
// ordering.
func (r *SQLiteRepository) CreateCostCenter(ctx context.Context, cc core.CostCenter) (core.CostCenter, error) {
	const q = `INSERT INTO cost_centers (company_id, code, name, position, active)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM cost_centers WHERE company_id = ?), ?)
		RETURNING id, position`
	err := r.db.QueryRowContext(ctx, q, cc.CompanyID, cc.Code, cc.Name, cc.CompanyID, cc.Active).Scan(&cc.ID, &cc.Position)
	if err != nil {
		if isUniqueViolation(err) {
			return core.CostCenter{}, fmt.Errorf("cost center %q: %w", cc.Code, core.ErrDuplicateCode)
		}
		return core.CostCenter{}, fmt.Errorf("create cost center: %w", err)
	}

	slog.InfoContext(ctx, "Cost center created",
		"id", cc.ID,
		"company_id", cc.CompanyID,
		"code", cc.Code,
		"position", cc.Position)
	return cc, nil
}

func (r *SQLiteRepository) ListCostCenters(ctx context.Context, companyID int64) ([]core.CostCenter, error) {
	const q = `SELECT id, company_id, code, name, position, active
		FROM cost_centers WHERE company_id = ? ORDER BY position, id`
	rows, err := r.db.QueryContext(ctx, q, companyID)
	if err != nil {
		return nil, fmt.Errorf("list cost centers: %w", err)
	}
	defer rows.Close()

	var centers []core.CostCenter
	for rows.Next() {
		cc, err := scanCostCenter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cost center: %w", err)
		}
		centers = append(centers, cc)
	}
	return centers, rows.Err()
}

func (r *SQLiteRepository) UpdateCostCenter(ctx context.Context, cc core.CostCenter) error {
	const q = `UPDATE cost_centers SET name = ?, active = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, cc.Name, cc.Active, cc.ID)
	if err != nil {
		return fmt.Errorf("update cost center: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReorderCostCenters renumbers the company's centers to match the given
// id order. Centers missing from the list keep their relative order
// after the listed ones.
func (r *SQLiteRepository) ReorderCostCenters(ctx context.Context, companyID int64, ids []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM cost_centers WHERE company_id = ? ORDER BY position, id`, companyID)
	if err != nil {
		return fmt.Errorf("load cost center order: %w", err)
	}
	var current []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan cost center id: %w", err)
		}
		current = append(current, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load cost center order: %w", err)
	}

	listed := make(map[int64]bool, len(ids))
	order := make([]int64, 0, len(current))
	for _, id := range ids {
		listed[id] = true
		order = append(order, id)
	}
	for _, id := range current {
		if !listed[id] {
			order = append(order, id)
		}
	}

	const q = `UPDATE cost_centers SET position = ? WHERE id = ? AND company_id = ?`
	for i, id := range order {
		res, err := tx.ExecContext(ctx, q, i+1, id, companyID)
		if err != nil {
			return fmt.Errorf("reorder cost center %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("cost center %d: %w", id, ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}

	slog.InfoContext(ctx, "Cost centers reordered", "company_id", companyID, "count", len(order))
	return nil
}

func scanUnit(row scanner) (core.UnitOfMeasure, error) {
	var u core.UnitOfMeasure
	err := row.Scan(&u.ID, &u.CompanyID, &u.Code, &u.Name, &u.Symbol)
	return u, err
}

func (r *SQLiteRepository) CreateUnit(ctx context.Context, u core.UnitOfMeasure) (core.UnitOfMeasure, error) {
	const q = `INSERT INTO units_of_measure (company_id, code, name, symbol)
		VALUES (?, ?, ?, ?) RETURNING id`
	if err := r.db.QueryRowContext(ctx, q, u.CompanyID, u.Code, u.Name, u.Symbol).Scan(&u.ID); err != nil {
		if isUniqueViolation(err) {
			return core.UnitOfMeasure{}, fmt.Errorf("unit %q: %w", u.Code, core.ErrDuplicateCode)
		}
		return core.UnitOfMeasure{}, fmt.Errorf("create unit: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) ListUnits(ctx context.Context, companyID int64) ([]core.UnitOfMeasure, error) {
	const q = `SELECT id, company_id, code, name, symbol
		FROM units_of_measure WHERE company_id = ? ORDER BY code`
	rows, err := r.db.QueryContext(ctx, q, companyID)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var units []core.UnitOfMeasure
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (r *SQLiteRepository) DeleteUnit(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM units_of_measure WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("unit %d: %w", id, ErrInUse)
		}
		return fmt.Errorf("delete unit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
