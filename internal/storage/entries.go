package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"cuentas/internal/core"
)

const entryColumns = `id, company_id, reference, entry_date, description, status, void_reason, created_by, version`

func scanEntry(row scanner) (core.JournalEntry, error) {
	var (
		e       core.JournalEntry
		ref     sql.NullString
		rawDate string
		status  string
	)
	if err := row.Scan(&e.ID, &e.CompanyID, &ref, &rawDate, &e.Description, &status, &e.VoidReason, &e.CreatedBy, &e.Version); err != nil {
		return core.JournalEntry{}, err
	}
	e.Reference = ref.String
	e.Status = core.EntryStatus(status)
	d, err := core.ParseDate(rawDate)
	if err != nil {
		return core.JournalEntry{}, fmt.Errorf("stored entry date %q: %w", rawDate, err)
	}
	e.Date = d
	return e, nil
}

func scanLine(row scanner) (core.JournalLine, error) {
	var (
		l          core.JournalLine
		code       string
		debit      int64
		credit     int64
		thirdParty sql.NullInt64
		costCenter sql.NullInt64
	)
	if err := row.Scan(&l.ID, &l.EntryID, &l.LineNo, &code, &l.Description, &debit, &credit, &thirdParty, &costCenter); err != nil {
		return core.JournalLine{}, err
	}
	l.AccountCode = core.AccountCode(code)
	l.Debit = core.AmountFromCents(debit)
	l.Credit = core.AmountFromCents(credit)
	l.ThirdPartyID = idPtr(thirdParty)
	l.CostCenterID = idPtr(costCenter)
	return l, nil
}

func insertLines(ctx context.Context, q dbtx, entryID int64, lines []core.JournalLine) error {
	const ins = `INSERT INTO journal_lines
		(entry_id, line_no, account_code, description, debit_cents, credit_cents, third_party_id, cost_center_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for i, l := range lines {
		_, err := q.ExecContext(ctx, ins,
			entryID, i+1, string(l.AccountCode), l.Description,
			core.CentsFromAmount(l.Debit), core.CentsFromAmount(l.Credit),
			nullID(l.ThirdPartyID), nullID(l.CostCenterID))
		if err != nil {
			return fmt.Errorf("insert line %d: %w", i+1, err)
		}
	}
	return nil
}

// loadLines fetches the lines for a set of entries in one query.
func loadLines(ctx context.Context, q dbtx, entryIDs []int64) (map[int64][]core.JournalLine, error) {
	if len(entryIDs) == 0 {
		return map[int64][]core.JournalLine{}, nil
	}

	placeholders := strings.Repeat("?,", len(entryIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(entryIDs))
	for i, id := range entryIDs {
		args[i] = id
	}

	query := `SELECT id, entry_id, line_no, account_code, description, debit_cents, credit_cents, third_party_id, cost_center_id
		FROM journal_lines WHERE entry_id IN (` + placeholders + `) ORDER BY entry_id, line_no`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load lines: %w", err)
	}
	defer rows.Close()

	byEntry := make(map[int64][]core.JournalLine, len(entryIDs))
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		byEntry[l.EntryID] = append(byEntry[l.EntryID], l)
	}
	return byEntry, rows.Err()
}

// CreateEntry saves a new draft entry with its lines.
func (r *SQLiteRepository) CreateEntry(ctx context.Context, e core.JournalEntry) (core.JournalEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.JournalEntry{}, fmt.Errorf("begin create entry: %w", err)
	}
	defer tx.Rollback()

	const ins = `INSERT INTO journal_entries (company_id, entry_date, description, status, created_by)
		VALUES (?, ?, ?, 'draft', ?) RETURNING id, version`
	if err := tx.QueryRowContext(ctx, ins, e.CompanyID, e.Date.String(), e.Description, e.CreatedBy).Scan(&e.ID, &e.Version); err != nil {
		return core.JournalEntry{}, fmt.Errorf("create entry: %w", err)
	}

	if err := insertLines(ctx, tx, e.ID, e.Lines); err != nil {
		return core.JournalEntry{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.JournalEntry{}, fmt.Errorf("commit create entry: %w", err)
	}

	e.Status = core.EntryDraft
	slog.InfoContext(ctx, "Journal entry saved",
		"id", e.ID,
		"company_id", e.CompanyID,
		"date", e.Date.String(),
		"lines", len(e.Lines))
	return e, nil
}

// UpdateEntry replaces a draft entry's header and lines. Posted and void
// entries cannot be updated.
func (r *SQLiteRepository) UpdateEntry(ctx context.Context, e core.JournalEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update entry: %w", err)
	}
	defer tx.Rollback()

	const upd = `UPDATE journal_entries
		SET entry_date = ?, description = ?, version = version + 1, updated_at = datetime('now')
		WHERE id = ? AND status = 'draft'`
	res, err := tx.ExecContext(ctx, upd, e.Date.String(), e.Description, e.ID)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entryMissingOrFrozen(ctx, tx, e.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM journal_lines WHERE entry_id = ?`, e.ID); err != nil {
		return fmt.Errorf("clear lines: %w", err)
	}
	if err := insertLines(ctx, tx, e.ID, e.Lines); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update entry: %w", err)
	}

	slog.InfoContext(ctx, "Journal entry updated", "id", e.ID, "lines", len(e.Lines))
	return nil
}

// entryMissingOrFrozen distinguishes a missing entry from a non-draft one.
func entryMissingOrFrozen(ctx context.Context, q dbtx, id int64) error {
	var status string
	err := q.QueryRowContext(ctx, `SELECT status FROM journal_entries WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check entry status: %w", err)
	}
	return fmt.Errorf("entry %d is %s: %w", id, status, ErrNotEditable)
}

// accountPrefix cuts the zero tail segments off a code so descendants
// match with LIKE.
func accountPrefix(code string) string {
	c, err := core.ParseAccountCode(code)
	if err != nil {
		return code
	}
	return strings.Join(c.Segments()[:c.Level()], "-")
}

func getEntry(ctx context.Context, q dbtx, id int64) (core.JournalEntry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.JournalEntry{}, ErrNotFound
		}
		return core.JournalEntry{}, fmt.Errorf("get entry: %w", err)
	}

	lines, err := loadLines(ctx, q, []int64{e.ID})
	if err != nil {
		return core.JournalEntry{}, err
	}
	e.Lines = lines[e.ID]
	return e, nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (core.JournalEntry, error) {
	return getEntry(ctx, r.db, id)
}

// ListEntries returns entries matching the filter, newest first, with
// their lines loaded.
func (r *SQLiteRepository) ListEntries(ctx context.Context, f EntryFilter) ([]core.JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE company_id = ?`
	args := []any{f.CompanyID}

	if !f.From.IsZero() {
		query += ` AND entry_date >= ?`
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		query += ` AND entry_date <= ?`
		args = append(args, f.To.String())
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Search != "" {
		query += ` AND (description LIKE ? OR reference LIKE ?)`
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if f.AccountCode != "" {
		query += ` AND EXISTS (SELECT 1 FROM journal_lines l WHERE l.entry_id = journal_entries.id AND l.account_code LIKE ?)`
		args = append(args, accountPrefix(f.AccountCode)+"%")
	}
	if f.ThirdPartyID != 0 {
		query += ` AND EXISTS (SELECT 1 FROM journal_lines l WHERE l.entry_id = journal_entries.id AND l.third_party_id = ?)`
		args = append(args, f.ThirdPartyID)
	}
	if f.CostCenterID != 0 {
		query += ` AND EXISTS (SELECT 1 FROM journal_lines l WHERE l.entry_id = journal_entries.id AND l.cost_center_id = ?)`
		args = append(args, f.CostCenterID)
	}

	query += ` ORDER BY entry_date DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []core.JournalEntry
	var ids []int64
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := loadLines(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Lines = lines[entries[i].ID]
	}
	return entries, nil
}

// DeleteEntry removes a draft entry and its lines. Posted and void
// entries stay for the audit trail.
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = ? AND status = 'draft'`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entryMissingOrFrozen(ctx, r.db, id)
	}

	slog.InfoContext(ctx, "Journal entry deleted", "id", id)
	return nil
}

// nextReference allocates the next number in the company's yearly
// sequence and formats it as AST-<year>-<number>.
func nextReference(ctx context.Context, q dbtx, companyID int64, year int) (string, error) {
	const seq = `INSERT INTO entry_sequences (company_id, year, next_number) VALUES (?, ?, 2)
		ON CONFLICT (company_id, year) DO UPDATE SET next_number = next_number + 1
		RETURNING next_number - 1`
	var n int64
	if err := q.QueryRowContext(ctx, seq, companyID, year).Scan(&n); err != nil {
		return "", fmt.Errorf("allocate reference: %w", err)
	}
	return fmt.Sprintf("AST-%d-%06d", year, n), nil
}

// PostEntry validates a draft, assigns its reference and freezes it. The
// posted entry is flagged for the sheet mirror.
func (r *SQLiteRepository) PostEntry(ctx context.Context, id int64) (core.JournalEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.JournalEntry{}, fmt.Errorf("begin post entry: %w", err)
	}
	defer tx.Rollback()

	e, err := getEntry(ctx, tx, id)
	if err != nil {
		return core.JournalEntry{}, err
	}
	if err := e.Post(); err != nil {
		return core.JournalEntry{}, err
	}

	ref, err := nextReference(ctx, tx, e.CompanyID, e.Date.Year())
	if err != nil {
		return core.JournalEntry{}, err
	}
	e.Reference = ref

	const upd = `UPDATE journal_entries
		SET status = 'posted', reference = ?, sync_status = 'pending', version = version + 1, updated_at = datetime('now')
		WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, ref, id); err != nil {
		return core.JournalEntry{}, fmt.Errorf("post entry: %w", err)
	}
	e.Version++

	if err := tx.Commit(); err != nil {
		return core.JournalEntry{}, fmt.Errorf("commit post entry: %w", err)
	}

	slog.InfoContext(ctx, "Journal entry posted",
		"id", e.ID,
		"reference", e.Reference,
		"company_id", e.CompanyID)
	return e, nil
}

// VoidEntry voids a posted entry, keeping the row. The void is flagged so
// the mirror row gets removed.
func (r *SQLiteRepository) VoidEntry(ctx context.Context, id int64, reason string) (core.JournalEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.JournalEntry{}, fmt.Errorf("begin void entry: %w", err)
	}
	defer tx.Rollback()

	e, err := getEntry(ctx, tx, id)
	if err != nil {
		return core.JournalEntry{}, err
	}
	if err := e.Void(reason); err != nil {
		return core.JournalEntry{}, err
	}

	const upd = `UPDATE journal_entries
		SET status = 'void', void_reason = ?, sync_status = 'pending', version = version + 1, updated_at = datetime('now')
		WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, e.VoidReason, id); err != nil {
		return core.JournalEntry{}, fmt.Errorf("void entry: %w", err)
	}
	e.Version++

	if err := tx.Commit(); err != nil {
		return core.JournalEntry{}, fmt.Errorf("commit void entry: %w", err)
	}

	slog.InfoContext(ctx, "Journal entry voided",
		"id", e.ID,
		"reference", e.Reference,
		"reason", e.VoidReason)
	return e, nil
}

// GetPendingSyncEntries returns entries whose mirror row is out of date.
func (r *SQLiteRepository) GetPendingSyncEntries(ctx context.Context, limit int) ([]PendingSyncEntry, error) {
	const q = `SELECT id, reference, status, version, created_at
		FROM journal_entries WHERE sync_status = 'pending' ORDER BY id LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync entries: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncEntry
	for rows.Next() {
		var (
			p         PendingSyncEntry
			ref       sql.NullString
			createdAt string
		)
		if err := rows.Scan(&p.ID, &ref, &p.Status, &p.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		p.Reference = ref.String
		p.CreatedAt = parseTimestamp(createdAt)
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkSynced marks an entry's mirror row as up to date.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE journal_entries SET sync_status = 'synced' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}
	slog.InfoContext(ctx, "Entry marked as synced", "id", id)
	return nil
}

// MarkSyncError marks an entry as failed to mirror.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE journal_entries SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark entry sync error: %w", err)
	}
	slog.WarnContext(ctx, "Entry marked with sync error", "id", id)
	return nil
}

// ReadMonthOverview aggregates the dashboard numbers for one month.
func (r *SQLiteRepository) ReadMonthOverview(ctx context.Context, companyID int64, year, month int) (core.MonthOverview, error) {
	overview := core.MonthOverview{Year: year, Month: month}
	from := fmt.Sprintf("%04d-%02d-01", year, month)
	to := fmt.Sprintf("%04d-%02d-%02d", year, month, core.DaysInMonth(year, month))

	const counts = `SELECT
			COUNT(CASE WHEN status = 'posted' THEN 1 END),
			COUNT(CASE WHEN status = 'draft' THEN 1 END)
		FROM journal_entries
		WHERE company_id = ? AND entry_date BETWEEN ? AND ?`
	if err := r.db.QueryRowContext(ctx, counts, companyID, from, to).Scan(&overview.Posted, &overview.Drafts); err != nil {
		return overview, fmt.Errorf("count entries: %w", err)
	}

	const movements = `SELECT l.account_code, COALESCE(a.name, ''), SUM(l.debit_cents + l.credit_cents)
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		LEFT JOIN accounts a ON a.company_id = e.company_id AND a.code = l.account_code
		WHERE e.company_id = ? AND e.status = 'posted' AND e.entry_date BETWEEN ? AND ?
		GROUP BY l.account_code`
	rows, err := r.db.QueryContext(ctx, movements, companyID, from, to)
	if err != nil {
		return overview, fmt.Errorf("sum movements: %w", err)
	}
	defer rows.Close()

	var all []core.AccountAmount
	for rows.Next() {
		var (
			code  string
			name  string
			cents int64
		)
		if err := rows.Scan(&code, &name, &cents); err != nil {
			return overview, fmt.Errorf("scan movement: %w", err)
		}
		amount := core.AccountAmount{Code: core.AccountCode(code), Name: name, Amount: core.AmountFromCents(cents)}
		all = append(all, amount)
		if amount.Code.Direction() == core.FlowInflow {
			overview.Inflows = overview.Inflows.Add(amount.Amount)
		} else {
			overview.Outflows = overview.Outflows.Add(amount.Amount)
		}
	}
	if err := rows.Err(); err != nil {
		return overview, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Amount.GreaterThan(all[j].Amount) })
	if len(all) > 5 {
		all = all[:5]
	}
	overview.TopAccounts = all
	return overview, nil
}
