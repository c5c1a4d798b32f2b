// Package storage persists the accounting data in SQLite.
package storage

import (
	"errors"
	"time"

	"cuentas/internal/core"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrNotEditable        = errors.New("only draft entries can be edited")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInUse              = errors.New("record is referenced by other data")
)

// EntryFilter narrows ListEntries. Zero values mean "any".
type EntryFilter struct {
	CompanyID    int64
	From         core.Date // zero = unbounded
	To           core.Date
	Status       string
	AccountCode  string // prefix match on line accounts
	ThirdPartyID int64
	CostCenterID int64
	Search       string // matches description or reference
	Limit        int
	Offset       int
}

// PendingSyncEntry is the minimal row the sync worker needs to queue or
// sweep an entry. Status tells the worker whether to append or remove
// the mirrored row.
type PendingSyncEntry struct {
	ID        int64
	Reference string
	Status    string
	Version   int64
	CreatedAt time.Time
}
