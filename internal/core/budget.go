package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRange = errors.New("start date must not be after end date")
	ErrNoLines      = errors.New("budget needs at least one line")
)

type (
	// BudgetLine is one planned item: a quantity of something at a unit
	// price, recurring with the given frequency over the budget's range.
	BudgetLine struct {
		ID           int64
		BudgetID     int64
		Description  string
		AccountCode  AccountCode
		Quantity     decimal.Decimal
		UnitPrice    decimal.Decimal
		UnitID       *int64
		Frequency    Frequency
		ThirdPartyID *int64
		CostCenterID *int64
	}

	// Budget groups planned lines over a date range.
	Budget struct {
		ID        int64
		CompanyID int64
		Name      string
		StartDate Date
		EndDate   Date
		Active    bool
		Lines     []BudgetLine
	}

	// MonthlyAmount is one calendar-month bucket of an amortized amount.
	MonthlyAmount struct {
		Year   int
		Month  int
		Amount decimal.Decimal
	}
)

// Total returns quantity times unit price rounded to two decimal places.
func (l BudgetLine) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice).Round(2)
}

func (l BudgetLine) Validate() error {
	if strings.TrimSpace(l.Description) == "" {
		return fmt.Errorf("budget line: %w", ErrEmptyDescription)
	}
	if _, err := ParseAccountCode(string(l.AccountCode)); err != nil {
		return fmt.Errorf("budget line: %w", err)
	}
	if !l.Quantity.IsPositive() {
		return fmt.Errorf("budget line: %w: quantity must be positive", ErrInvalidAmount)
	}
	if !l.UnitPrice.IsPositive() {
		return fmt.Errorf("budget line: %w: unit price must be positive", ErrInvalidAmount)
	}
	if !l.UnitPrice.Equal(l.UnitPrice.Round(2)) {
		return fmt.Errorf("budget line: %w: more than two decimal places", ErrInvalidAmount)
	}
	if !l.Frequency.Valid() {
		return fmt.Errorf("budget line: %w: %q", ErrInvalidFrequency, l.Frequency)
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("budget: %w", ErrEmptyName)
	}
	if err := b.StartDate.Validate(); err != nil {
		return err
	}
	if err := b.EndDate.Validate(); err != nil {
		return err
	}
	if b.EndDate.Before(b.StartDate.Time) {
		return fmt.Errorf("budget: %w", ErrInvalidRange)
	}
	if len(b.Lines) == 0 {
		return fmt.Errorf("budget: %w", ErrNoLines)
	}
	for _, l := range b.Lines {
		if err := l.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Occurrences lists the dates the line recurs on between start and end,
// inclusive. Monthly and coarser frequencies keep the start date's day of
// month, clamped to shorter months, so a Jan 31 anchor lands on Feb 28.
func (l BudgetLine) Occurrences(start, end Date) []Date {
	if end.Before(start.Time) {
		return nil
	}
	var dates []Date
	if l.Frequency == Weekly {
		for d := start; !d.After(end.Time); d = Date{Time: d.AddDate(0, 0, 7)} {
			dates = append(dates, d)
		}
		return dates
	}
	step := l.Frequency.MonthsPerPeriod()
	if step == 0 {
		return nil
	}
	for i := 0; ; i++ {
		d := addMonthsClamped(start, i*step)
		if d.After(end.Time) {
			break
		}
		dates = append(dates, d)
	}
	return dates
}

// Amortize spreads the line's total over calendar months between start
// and end. Each occurrence gets total divided by the occurrence count
// rounded to two decimals, with the final occurrence absorbing the
// rounding remainder so the buckets sum back to Total exactly.
func (l BudgetLine) Amortize(start, end Date) ([]MonthlyAmount, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if end.Before(start.Time) {
		return nil, ErrInvalidRange
	}
	occurrences := l.Occurrences(start, end)
	if len(occurrences) == 0 {
		return nil, nil
	}

	total := l.Total()
	n := int64(len(occurrences))
	per := total.Div(decimal.NewFromInt(n)).Round(2)
	last := total.Sub(per.Mul(decimal.NewFromInt(n - 1)))

	buckets := make(map[int]decimal.Decimal, len(occurrences))
	for i, d := range occurrences {
		amt := per
		if i == len(occurrences)-1 {
			amt = last
		}
		key := d.Year()*100 + d.Month()
		buckets[key] = buckets[key].Add(amt)
	}

	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	months := make([]MonthlyAmount, 0, len(keys))
	for _, k := range keys {
		months = append(months, MonthlyAmount{
			Year:   k / 100,
			Month:  k % 100,
			Amount: buckets[k],
		})
	}
	return months, nil
}

// addMonthsClamped advances d by the given number of months keeping the
// day of month, clamped to the target month's length.
func addMonthsClamped(d Date, months int) Date {
	idx := d.Year()*12 + d.Month() - 1 + months
	year, month := idx/12, idx%12+1
	day := d.Day()
	if max := DaysInMonth(year, month); day > max {
		day = max
	}
	return NewDate(year, month, day)
}
