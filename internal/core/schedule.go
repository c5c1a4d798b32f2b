package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrSameAccount = errors.New("debit and credit accounts must differ")

// ScheduledTransaction is a recurring template that turns into a draft
// journal entry every time it comes due: rent, payroll, subscriptions.
type ScheduledTransaction struct {
	ID            int64
	CompanyID     int64
	Description   string
	Amount        decimal.Decimal
	DebitAccount  AccountCode
	CreditAccount AccountCode
	Frequency     Frequency
	StartDate     Date
	EndDate       *Date
	ThirdPartyID  *int64
	CostCenterID  *int64
	Active        bool
	LastRunDate   *Date
}

func (s ScheduledTransaction) Validate() error {
	if strings.TrimSpace(s.Description) == "" {
		return fmt.Errorf("scheduled transaction: %w", ErrEmptyDescription)
	}
	if !s.Amount.IsPositive() {
		return fmt.Errorf("scheduled transaction: %w: amount must be positive", ErrInvalidAmount)
	}
	if !s.Amount.Equal(s.Amount.Round(2)) {
		return fmt.Errorf("scheduled transaction: %w: more than two decimal places", ErrInvalidAmount)
	}
	if _, err := ParseAccountCode(string(s.DebitAccount)); err != nil {
		return fmt.Errorf("scheduled transaction: debit: %w", err)
	}
	if _, err := ParseAccountCode(string(s.CreditAccount)); err != nil {
		return fmt.Errorf("scheduled transaction: credit: %w", err)
	}
	if s.DebitAccount == s.CreditAccount {
		return fmt.Errorf("scheduled transaction: %w", ErrSameAccount)
	}
	if !s.Frequency.Valid() {
		return fmt.Errorf("scheduled transaction: %w: %q", ErrInvalidFrequency, s.Frequency)
	}
	if err := s.StartDate.Validate(); err != nil {
		return err
	}
	if s.EndDate != nil && s.EndDate.Before(s.StartDate.Time) {
		return fmt.Errorf("scheduled transaction: %w", ErrInvalidRange)
	}
	return nil
}

// ExpiredAt reports whether the schedule's end date has passed.
func (s ScheduledTransaction) ExpiredAt(d Date) bool {
	return s.EndDate != nil && d.After(s.EndDate.Time)
}

// EntryFor builds the draft entry this schedule generates on the given
// date: one debit line and one credit line over Amount.
func (s ScheduledTransaction) EntryFor(date Date) JournalEntry {
	return JournalEntry{
		CompanyID:   s.CompanyID,
		Date:        date,
		Description: s.Description,
		Status:      EntryDraft,
		Lines: []JournalLine{
			{
				LineNo:       1,
				AccountCode:  s.DebitAccount,
				Description:  s.Description,
				Debit:        s.Amount,
				Credit:       decimal.Zero,
				ThirdPartyID: s.ThirdPartyID,
				CostCenterID: s.CostCenterID,
			},
			{
				LineNo:       2,
				AccountCode:  s.CreditAccount,
				Description:  s.Description,
				Debit:        decimal.Zero,
				Credit:       s.Amount,
				ThirdPartyID: s.ThirdPartyID,
				CostCenterID: s.CostCenterID,
			},
		},
	}
}
