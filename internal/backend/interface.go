package backend

import (
	"context"

	"cuentas/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// MirrorResult contains the mirror instance and optional cleanup
// function. Mirror is nil when mirroring is disabled.
type MirrorResult struct {
	Mirror  sheets.Mirror
	Cleanup CleanupFunc
}

// Factory creates ledger mirrors based on configuration
type Factory interface {
	// CreateMirror creates a mirror instance based on the provided config
	CreateMirror(ctx context.Context, config Config) (*MirrorResult, error)
}

// Config holds configuration for mirror creation
type Config struct {
	// Mirror type
	Type MirrorType

	// Google Sheets specific
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenJSON  string
}

// MirrorType represents the type of ledger mirror
type MirrorType string

const (
	MemoryMirror MirrorType = "memory"
	SheetsMirror MirrorType = "sheets"
	NoMirror     MirrorType = "none"
)

// String implements fmt.Stringer
func (mt MirrorType) String() string {
	return string(mt)
}

// IsValid returns true if the mirror type is valid
func (mt MirrorType) IsValid() bool {
	switch mt {
	case MemoryMirror, SheetsMirror, NoMirror:
		return true
	default:
		return false
	}
}
