// Package export holds the CSV codecs for the download endpoints:
// journal entries as an interchange file (one row per line), plus the
// cash-flow projection and the chart of accounts.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
)

// EntriesHeader is the CSV header for a journal export.
const EntriesHeader = "reference,date,status,line_no,account,description,debit,credit,third_party_id,cost_center_id"

const (
	numEntryFields = 10
	dateFormat     = "2006-01-02"
	colReference   = 0
	colDate        = 1
	colStatus      = 2
	colLineNo      = 3
	colAccount     = 4
	colDesc        = 5
	colDebit       = 6
	colCredit      = 7
	colThirdParty  = 8
	colCostCenter  = 9
)

// WriteEntries writes entries to a journal CSV writer (including header).
func WriteEntries(w io.Writer, entries []core.JournalEntry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(EntriesHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := 2
	for _, e := range entries {
		for _, rec := range MarshalEntry(e) {
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
			row++
		}
	}
	return cw.Error()
}

// MarshalEntry converts an entry to CSV rows, one per journal line. The
// description column carries the line description, falling back to the
// entry description on lines without one.
func MarshalEntry(e core.JournalEntry) [][]string {
	rows := make([][]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		row := make([]string, numEntryFields)
		row[colReference] = e.Reference
		row[colDate] = e.Date.Format(dateFormat)
		row[colStatus] = string(e.Status)
		row[colLineNo] = strconv.Itoa(l.LineNo)
		row[colAccount] = l.AccountCode.String()

		desc := l.Description
		if desc == "" {
			desc = e.Description
		}
		row[colDesc] = desc

		if !l.Debit.IsZero() {
			row[colDebit] = l.Debit.StringFixed(2)
		}
		if !l.Credit.IsZero() {
			row[colCredit] = l.Credit.StringFixed(2)
		}

		if l.ThirdPartyID != nil {
			row[colThirdParty] = strconv.FormatInt(*l.ThirdPartyID, 10)
		}
		if l.CostCenterID != nil {
			row[colCostCenter] = strconv.FormatInt(*l.CostCenterID, 10)
		}
		rows = append(rows, row)
	}
	return rows
}

// ReadEntries reads a journal CSV and regroups consecutive rows sharing
// a reference into entries. The first row of a group sets the entry's
// date, status and description.
func ReadEntries(r io.Reader) ([]core.JournalEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numEntryFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var entries []core.JournalEntry
	for i, rec := range records[1:] {
		reference, date, status, line, err := unmarshalEntryRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if len(entries) == 0 || entries[len(entries)-1].Reference != reference {
			entries = append(entries, core.JournalEntry{
				Reference:   reference,
				Date:        date,
				Status:      status,
				Description: line.Description,
			})
		}
		e := &entries[len(entries)-1]
		e.Lines = append(e.Lines, line)
	}
	return entries, nil
}

func unmarshalEntryRow(record []string) (string, core.Date, core.EntryStatus, core.JournalLine, error) {
	var line core.JournalLine

	if len(record) != numEntryFields {
		return "", core.Date{}, "", line, fmt.Errorf("expected %d fields, got %d", numEntryFields, len(record))
	}

	date, err := core.ParseDate(record[colDate])
	if err != nil {
		return "", core.Date{}, "", line, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	status := core.EntryStatus(record[colStatus])
	if !status.Valid() {
		return "", core.Date{}, "", line, fmt.Errorf("invalid status %q", record[colStatus])
	}

	lineNo, err := strconv.Atoi(record[colLineNo])
	if err != nil {
		return "", core.Date{}, "", line, fmt.Errorf("parsing line_no %q: %w", record[colLineNo], err)
	}

	code, err := core.ParseAccountCode(record[colAccount])
	if err != nil {
		return "", core.Date{}, "", line, fmt.Errorf("parsing account %q: %w", record[colAccount], err)
	}

	var debit, credit decimal.Decimal

	if record[colDebit] != "" {
		debit, err = decimal.NewFromString(record[colDebit])
		if err != nil {
			return "", core.Date{}, "", line, fmt.Errorf("parsing debit %q: %w", record[colDebit], err)
		}
	}

	if record[colCredit] != "" {
		credit, err = decimal.NewFromString(record[colCredit])
		if err != nil {
			return "", core.Date{}, "", line, fmt.Errorf("parsing credit %q: %w", record[colCredit], err)
		}
	}

	var thirdPartyID, costCenterID *int64

	if record[colThirdParty] != "" {
		id, err := strconv.ParseInt(record[colThirdParty], 10, 64)
		if err != nil {
			return "", core.Date{}, "", line, fmt.Errorf("parsing third_party_id %q: %w", record[colThirdParty], err)
		}
		thirdPartyID = &id
	}

	if record[colCostCenter] != "" {
		id, err := strconv.ParseInt(record[colCostCenter], 10, 64)
		if err != nil {
			return "", core.Date{}, "", line, fmt.Errorf("parsing cost_center_id %q: %w", record[colCostCenter], err)
		}
		costCenterID = &id
	}

	line = core.JournalLine{
		LineNo:       lineNo,
		AccountCode:  code,
		Description:  record[colDesc],
		Debit:        debit,
		Credit:       credit,
		ThirdPartyID: thirdPartyID,
		CostCenterID: costCenterID,
	}
	return record[colReference], date, status, line, nil
}
