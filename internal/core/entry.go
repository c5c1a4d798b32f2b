package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrTooFewLines   = errors.New("entry needs at least two lines")
	ErrLineBothSides = errors.New("line cannot carry both debit and credit")
	ErrLineNoAmount  = errors.New("line needs a debit or a credit")
	ErrUnbalanced    = errors.New("entry is not balanced")
	ErrNotDraft      = errors.New("entry is not a draft")
	ErrNotPosted     = errors.New("entry is not posted")
	ErrEmptyReason   = errors.New("void reason cannot be empty")
)

type (
	// Account is one row of a company's chart of accounts.
	Account struct {
		ID        int64
		CompanyID int64
		Code      AccountCode
		Name      string
		Active    bool
	}

	// JournalLine is a single debit or credit movement. Exactly one of
	// Debit and Credit is positive, never both.
	JournalLine struct {
		ID           int64
		EntryID      int64
		LineNo       int
		AccountCode  AccountCode
		Description  string
		Debit        decimal.Decimal
		Credit       decimal.Decimal
		ThirdPartyID *int64
		CostCenterID *int64
	}

	// JournalEntry is a dated set of lines. Drafts can be edited freely,
	// posting freezes them, voiding keeps the row for the audit trail.
	JournalEntry struct {
		ID          int64
		CompanyID   int64
		Reference   string
		Date        Date
		Description string
		Status      EntryStatus
		VoidReason  string
		CreatedBy   int64
		Version     int64
		Lines       []JournalLine
	}
)

func (a Account) Validate() error {
	if _, err := ParseAccountCode(string(a.Code)); err != nil {
		return err
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("account: %w", ErrEmptyName)
	}
	if len(a.Name) > 200 {
		return errors.New("account: name too long (max 200 characters)")
	}
	return nil
}

// Amount returns whichever side of the line carries the value.
func (l JournalLine) Amount() decimal.Decimal {
	if l.Debit.IsPositive() {
		return l.Debit
	}
	return l.Credit
}

func (l JournalLine) Validate() error {
	if _, err := ParseAccountCode(string(l.AccountCode)); err != nil {
		return fmt.Errorf("line %d: %w", l.LineNo, err)
	}
	if l.Debit.Sign() < 0 || l.Credit.Sign() < 0 {
		return fmt.Errorf("line %d: %w: negative amount", l.LineNo, ErrInvalidAmount)
	}
	if l.Debit.IsPositive() && l.Credit.IsPositive() {
		return fmt.Errorf("line %d: %w", l.LineNo, ErrLineBothSides)
	}
	if l.Debit.IsZero() && l.Credit.IsZero() {
		return fmt.Errorf("line %d: %w", l.LineNo, ErrLineNoAmount)
	}
	amt := l.Amount()
	if !amt.Equal(amt.Round(2)) {
		return fmt.Errorf("line %d: %w: more than two decimal places", l.LineNo, ErrInvalidAmount)
	}
	return nil
}

// TotalDebit sums the debit side of every line.
func (e JournalEntry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// TotalCredit sums the credit side of every line.
func (e JournalEntry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Credit)
	}
	return total
}

// Imbalance returns |total debit - total credit|.
func (e JournalEntry) Imbalance() decimal.Decimal {
	return e.TotalDebit().Sub(e.TotalCredit()).Abs()
}

// Balanced reports whether the imbalance stays under BalanceTolerance.
func (e JournalEntry) Balanced() bool {
	return e.Imbalance().LessThan(BalanceTolerance)
}

// Validate checks the entry and all of its lines. An entry needs a valid
// date, a description, at least two valid lines and matching debit and
// credit totals.
func (e JournalEntry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Description) == "" {
		return fmt.Errorf("entry: %w", ErrEmptyDescription)
	}
	if len(e.Description) > 200 {
		return errors.New("entry: description too long (max 200 characters)")
	}
	if !e.Status.Valid() {
		return fmt.Errorf("entry: invalid status %q", e.Status)
	}
	if len(e.Lines) < 2 {
		return fmt.Errorf("entry: %w", ErrTooFewLines)
	}
	for _, l := range e.Lines {
		if err := l.Validate(); err != nil {
			return err
		}
	}
	if !e.Balanced() {
		return fmt.Errorf("%w: debit %s, credit %s",
			ErrUnbalanced, e.TotalDebit().StringFixed(2), e.TotalCredit().StringFixed(2))
	}
	return nil
}

// Post moves a draft to posted. Posted entries are immutable.
func (e *JournalEntry) Post() error {
	if e.Status != EntryDraft {
		return fmt.Errorf("%w: status is %q", ErrNotDraft, e.Status)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	e.Status = EntryPosted
	return nil
}

// Void marks a posted entry void, keeping it for the audit trail.
func (e *JournalEntry) Void(reason string) error {
	if e.Status != EntryPosted {
		return fmt.Errorf("%w: status is %q", ErrNotPosted, e.Status)
	}
	if strings.TrimSpace(reason) == "" {
		return ErrEmptyReason
	}
	e.Status = EntryVoid
	e.VoidReason = strings.TrimSpace(reason)
	return nil
}

// ClassifyFlows splits line amounts into inflows and outflows by the
// class digit of each line's account code.
func ClassifyFlows(lines []JournalLine) (inflows, outflows decimal.Decimal) {
	inflows, outflows = decimal.Zero, decimal.Zero
	for _, l := range lines {
		if l.AccountCode.Direction() == FlowInflow {
			inflows = inflows.Add(l.Amount())
		} else {
			outflows = outflows.Add(l.Amount())
		}
	}
	return inflows, outflows
}
