// Package memory is an in-process ledger mirror. It keeps the same row
// shape the Google Sheets mirror writes, which makes it a drop-in
// replacement for local development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"cuentas/internal/core"
	"cuentas/internal/sheets"
)

// Row is one mirrored ledger line, matching the spreadsheet columns
// Reference / Date / LineNo / Account / Description / Debit / Credit.
type Row struct {
	Reference   string
	Date        string
	LineNo      int
	Account     string
	Description string
	Debit       string
	Credit      string
}

type Store struct {
	mu   sync.Mutex
	rows []Row
}

var (
	_ sheets.EntryAppender = (*Store)(nil)
	_ sheets.EntryRemover  = (*Store)(nil)
	_ sheets.LedgerReader  = (*Store)(nil)
	_ sheets.Mirror        = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// AppendEntry stores one row per journal line and returns a synthetic
// row reference.
func (s *Store) AppendEntry(_ context.Context, e core.JournalEntry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	if e.Reference == "" {
		return "", errors.New("entry has no reference")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.rows) + 1
	for _, l := range e.Lines {
		desc := l.Description
		if desc == "" {
			desc = e.Description
		}
		r := Row{
			Reference:   e.Reference,
			Date:        e.Date.String(),
			LineNo:      l.LineNo,
			Account:     l.AccountCode.String(),
			Description: desc,
		}
		if !l.Debit.IsZero() {
			r.Debit = l.Debit.StringFixed(2)
		}
		if !l.Credit.IsZero() {
			r.Credit = l.Credit.StringFixed(2)
		}
		s.rows = append(s.rows, r)
	}
	return fmt.Sprintf("mem:%d", first), nil
}

// RemoveEntry drops every row carrying the reference. Removing a
// reference that was never mirrored is not an error.
func (s *Store) RemoveEntry(_ context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.Reference != reference {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	return nil
}

// ListReferences returns the distinct references mirrored for the year,
// in first-seen order.
func (s *Store) ListReferences(_ context.Context, year int) ([]string, error) {
	prefix := strconv.Itoa(year) + "-"
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	var out []string
	for _, r := range s.rows {
		if !strings.HasPrefix(r.Date, prefix) {
			continue
		}
		if _, ok := seen[r.Reference]; ok {
			continue
		}
		seen[r.Reference] = struct{}{}
		out = append(out, r.Reference)
	}
	return out, nil
}

// Rows returns a copy of the mirrored rows.
func (s *Store) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Row(nil), s.rows...)
}
