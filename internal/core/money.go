// Package core provides the accounting domain model and its arithmetic rules.
//
// This file contains helpers for parsing monetary amounts from user input and
// converting between decimal amounts and the integer cents stored in SQLite.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BalanceTolerance is the maximum absolute difference between total debits
// and total credits for an entry to count as balanced.
var BalanceTolerance = decimal.New(1, -2) // 0.01

// ParseAmount converts a user-entered amount string to a decimal.
//
// It accepts both dot (1234.56) and comma (1234,56) decimal separators. When
// both appear the dot is treated as a thousands separator (1.234,56). The
// amount must be strictly positive and carry at most two decimal places.
//
// Examples:
//
//	ParseAmount("1234.56")  -> 1234.56, nil
//	ParseAmount("1234,56")  -> 1234.56, nil
//	ParseAmount("1.234,56") -> 1234.56, nil
//	ParseAmount("-5")       -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		// Comma is the decimal separator; any dots are thousands marks.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
		if strings.Contains(s, ",") {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.Equal(d.Round(2)) {
		return decimal.Zero, fmt.Errorf("%w: more than two decimal places", ErrInvalidAmount)
	}
	return d, nil
}

// ParseAmountOrZero behaves like ParseAmount but treats an empty string as
// zero, for form fields where only one of the debit/credit sides is filled.
func ParseAmountOrZero(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return ParseAmount(s)
}

// FormatAmount renders a decimal as a Spanish-style currency string, with a
// dot as thousands separator and a comma for decimals: 1234.5 -> "$1.234,50".
func FormatAmount(d decimal.Decimal) string {
	neg := d.Sign() < 0
	s := d.Abs().StringFixed(2)
	intPart, fracPart, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + "," + fracPart
	if neg {
		return "-" + out
	}
	return out
}

// CentsFromAmount converts a two-decimal amount to integer cents for storage.
func CentsFromAmount(d decimal.Decimal) int64 {
	return d.Mul(decimal.New(100, 0)).IntPart()
}

// AmountFromCents converts stored integer cents back to a decimal amount.
func AmountFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
