package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cuentas/internal/core"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const sqliteTimeFormat = "2006-01-02 15:04:05"

func scanUser(row scanner) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Active)
	return u, err
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User, password string) (core.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	const ins = `INSERT INTO users (email, name, role, password_hash, active)
		VALUES (?, ?, ?, ?, ?) RETURNING id`
	if err := r.db.QueryRowContext(ctx, ins, u.Email, u.Name, string(u.Role), string(hash), u.Active).Scan(&u.ID); err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("user %q: %w", u.Email, ErrEmailTaken)
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", u.ID, "email", u.Email, "role", u.Role)
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	const q = `SELECT id, email, name, role, active FROM users WHERE id = ?`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, ErrNotFound
		}
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	const q = `SELECT id, email, name, role, active FROM users ORDER BY email`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, u core.User) error {
	const q = `UPDATE users SET name = ?, role = ?, active = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, u.Name, string(u.Role), u.Active, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) SetPassword(ctx context.Context, id int64, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, string(hash), id)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Password changed", "user_id", id)
	return nil
}

// Authenticate checks the email and password against the users table.
// Unknown emails and wrong passwords both come back as
// ErrInvalidCredentials.
func (r *SQLiteRepository) Authenticate(ctx context.Context, email, password string) (core.User, error) {
	const q = `SELECT id, email, name, role, active, password_hash FROM users WHERE email = ?`
	var (
		u    core.User
		hash string
	)
	err := r.db.QueryRowContext(ctx, q, email).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Active, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, fmt.Errorf("authenticate: %w", err)
	}
	if !u.Active {
		return core.User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return core.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// EnsureAdmin creates the bootstrap admin account when the users table is
// empty. Returns true when the account was created.
func (r *SQLiteRepository) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	_, err := r.CreateUser(ctx, core.User{
		Email:  email,
		Name:   "Administrador",
		Role:   core.RoleAdmin,
		Active: true,
	}, password)
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateSession opens a session for the user and returns its token.
func (r *SQLiteRepository) CreateSession(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	expires := time.Now().UTC().Add(ttl).Format(sqliteTimeFormat)

	const ins = `INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, ins, token, userID, expires); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// GetSessionUser resolves a session token to its active user. Expired or
// unknown tokens come back as ErrNotFound.
func (r *SQLiteRepository) GetSessionUser(ctx context.Context, token string) (core.User, error) {
	const q = `SELECT u.id, u.email, u.name, u.role, u.active
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ? AND u.active = 1`
	now := time.Now().UTC().Format(sqliteTimeFormat)
	u, err := scanUser(r.db.QueryRowContext(ctx, q, token, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, ErrNotFound
		}
		return core.User{}, fmt.Errorf("get session user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions clears stale sessions and returns how many were
// removed.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(sqliteTimeFormat)
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// UpsertFilter saves a user's filter state for a page, replacing any
// previous state.
func (r *SQLiteRepository) UpsertFilter(ctx context.Context, userID, companyID int64, page, filterJSON string) error {
	const q = `INSERT INTO saved_filters (user_id, company_id, page, filter_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, company_id, page)
		DO UPDATE SET filter_json = excluded.filter_json, updated_at = datetime('now')`
	if _, err := r.db.ExecContext(ctx, q, userID, companyID, page, filterJSON); err != nil {
		return fmt.Errorf("save filter: %w", err)
	}
	return nil
}

// GetFilter returns the saved filter state for a page, or "" when none
// was saved.
func (r *SQLiteRepository) GetFilter(ctx context.Context, userID, companyID int64, page string) (string, error) {
	const q = `SELECT filter_json FROM saved_filters WHERE user_id = ? AND company_id = ? AND page = ?`
	var filterJSON string
	err := r.db.QueryRowContext(ctx, q, userID, companyID, page).Scan(&filterJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get filter: %w", err)
	}
	return filterJSON, nil
}
