package core

import "github.com/shopspring/decimal"

// AccountAmount is an amount aggregated under one account.
type AccountAmount struct {
	Code   AccountCode
	Name   string
	Amount decimal.Decimal
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year        int
	Month       int // 1-12
	Posted      int
	Drafts      int
	Inflows     decimal.Decimal
	Outflows    decimal.Decimal
	TopAccounts []AccountAmount
}
