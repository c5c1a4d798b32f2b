package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cuentas/internal/core"
)

// CashFlowHeader is the CSV header for a cash-flow projection export.
const CashFlowHeader = "year,month,inflows,outflows,net,balance"

// AccountsHeader is the CSV header for a chart-of-accounts export.
const AccountsHeader = "code,name,active"

// WriteCashFlow writes projection rows (including header).
func WriteCashFlow(w io.Writer, rows []core.CashFlowRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(CashFlowHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, r := range rows {
		rec := []string{
			strconv.Itoa(r.Year),
			strconv.Itoa(r.Month),
			r.Inflows.StringFixed(2),
			r.Outflows.StringFixed(2),
			r.Net.StringFixed(2),
			r.Balance.StringFixed(2),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// WriteAccounts writes the chart of accounts (including header).
func WriteAccounts(w io.Writer, accounts []core.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(AccountsHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, a := range accounts {
		rec := []string{
			a.Code.String(),
			a.Name,
			strconv.FormatBool(a.Active),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}
