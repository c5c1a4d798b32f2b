package core

import (
	"github.com/shopspring/decimal"
)

// CashFlowRow is one month of the cash-flow report: actual posted
// movements plus amortized budget amounts, with a running balance.
type CashFlowRow struct {
	Year     int
	Month    int
	Inflows  decimal.Decimal
	Outflows decimal.Decimal
	Net      decimal.Decimal
	Balance  decimal.Decimal
}

// ProjectCashFlow builds one row per calendar month between from and to.
// Posted entries dated inside the window count with their real amounts,
// active budgets contribute their amortized monthly buckets, and the
// balance column runs from the opening balance. Draft and void entries
// are ignored.
func ProjectCashFlow(entries []JournalEntry, budgets []Budget, from, to Date, opening decimal.Decimal) ([]CashFlowRow, error) {
	if to.Before(from.Time) {
		return nil, ErrInvalidRange
	}

	first := from.Year()*100 + from.Month()
	lastKey := to.Year()*100 + to.Month()

	type flows struct {
		in  decimal.Decimal
		out decimal.Decimal
	}
	byMonth := make(map[int]*flows)
	monthOf := func(key int) *flows {
		f, ok := byMonth[key]
		if !ok {
			f = &flows{in: decimal.Zero, out: decimal.Zero}
			byMonth[key] = f
		}
		return f
	}

	for _, e := range entries {
		if e.Status != EntryPosted {
			continue
		}
		if e.Date.Before(from.Time) || e.Date.After(to.Time) {
			continue
		}
		in, out := ClassifyFlows(e.Lines)
		f := monthOf(e.Date.Year()*100 + e.Date.Month())
		f.in = f.in.Add(in)
		f.out = f.out.Add(out)
	}

	for _, b := range budgets {
		if !b.Active {
			continue
		}
		for _, l := range b.Lines {
			months, err := l.Amortize(b.StartDate, b.EndDate)
			if err != nil {
				return nil, err
			}
			for _, m := range months {
				key := m.Year*100 + m.Month
				if key < first || key > lastKey {
					continue
				}
				f := monthOf(key)
				if l.AccountCode.Direction() == FlowInflow {
					f.in = f.in.Add(m.Amount)
				} else {
					f.out = f.out.Add(m.Amount)
				}
			}
		}
	}

	var rows []CashFlowRow
	balance := opening
	for key := first; key <= lastKey; key = nextMonthKey(key) {
		in, out := decimal.Zero, decimal.Zero
		if f, ok := byMonth[key]; ok {
			in, out = f.in, f.out
		}
		net := in.Sub(out)
		balance = balance.Add(net)
		rows = append(rows, CashFlowRow{
			Year:     key / 100,
			Month:    key % 100,
			Inflows:  in,
			Outflows: out,
			Net:      net,
			Balance:  balance,
		})
	}
	return rows, nil
}

func nextMonthKey(key int) int {
	year, month := key/100, key%100
	if month == 12 {
		return (year+1)*100 + 1
	}
	return year*100 + month + 1
}
