package backend

import (
	"context"
	"fmt"
	"log/slog"

	gsheet "cuentas/internal/sheets/google"
	"cuentas/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new mirror factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateMirror implements Factory.CreateMirror
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (*MirrorResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid mirror type: %s", config.Type)
	}

	switch config.Type {
	case MemoryMirror:
		return f.createMemoryMirror()
	case SheetsMirror:
		return f.createSheetsMirror(ctx)
	case NoMirror:
		f.logger.Info("Ledger mirror disabled")
		return &MirrorResult{}, nil
	default:
		return nil, fmt.Errorf("unsupported mirror type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsMirror(ctx context.Context) (*MirrorResult, error) {
	// The sheets client reads its spreadsheet id and OAuth material from
	// the environment, same variables Config.Validate checked.
	cli, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets mirror")

	return &MirrorResult{
		Mirror:  cli,
		Cleanup: nil, // No cleanup needed for sheets mirror
	}, nil
}

func (f *DefaultFactory) createMemoryMirror() (*MirrorResult, error) {
	store := memory.New()

	f.logger.Info("Initialized memory mirror")

	return &MirrorResult{
		Mirror:  store,
		Cleanup: nil, // No cleanup needed for memory mirror
	}, nil
}
