package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"cuentas/internal/core"
	"cuentas/internal/export"
	"cuentas/internal/log"
	"cuentas/internal/storage"

	"github.com/shopspring/decimal"
)

const (
	entriesPageSize  = 50
	entriesExportMax = 10000
)

var statusLabels = map[core.EntryStatus]string{
	core.EntryDraft:  "Borrador",
	core.EntryPosted: "Contabilizado",
	core.EntryVoid:   "Anulado",
}

// entryRow is the view model for one row of the journal table.
type entryRow struct {
	ID          int64
	Reference   string
	Date        string
	Description string
	Status      string
	StatusLabel string
	Lines       int
	Total       string
	VoidReason  string
	IsDraft     bool
	IsPosted    bool
}

func entryRowsView(entries []core.JournalEntry) []entryRow {
	rows := make([]entryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, entryRow{
			ID:          e.ID,
			Reference:   e.Reference,
			Date:        e.Date.String(),
			Description: e.Description,
			Status:      string(e.Status),
			StatusLabel: statusLabels[e.Status],
			Lines:       len(e.Lines),
			Total:       core.FormatAmount(e.TotalDebit()),
			VoidReason:  e.VoidReason,
			IsDraft:     e.Status == core.EntryDraft,
			IsPosted:    e.Status == core.EntryPosted,
		})
	}
	return rows
}

// lineForm is the view model for one editable line of the entry form.
// Amounts use the plain decimal form inputs expect, not display formatting.
type lineForm struct {
	LineNo       int
	AccountCode  string
	Description  string
	Debit        string
	Credit       string
	ThirdPartyID int64
	CostCenterID int64
}

func plainAmount(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}

func lineForms(lines []core.JournalLine) []lineForm {
	forms := make([]lineForm, 0, len(lines))
	for _, l := range lines {
		f := lineForm{
			LineNo:      l.LineNo,
			AccountCode: string(l.AccountCode),
			Description: l.Description,
			Debit:       plainAmount(l.Debit),
			Credit:      plainAmount(l.Credit),
		}
		if l.ThirdPartyID != nil {
			f.ThirdPartyID = *l.ThirdPartyID
		}
		if l.CostCenterID != nil {
			f.CostCenterID = *l.CostCenterID
		}
		forms = append(forms, f)
	}
	return forms
}

// formOptions carries the select options shared by the entry forms.
type formOptions struct {
	Accounts     []core.Account
	ThirdParties []core.ThirdParty
	CostCenters  []core.CostCenter
}

func (s *Server) formOptions(ctx context.Context, companyID int64) (formOptions, error) {
	accounts, err := s.storage.ListAccounts(ctx, companyID, true)
	if err != nil {
		return formOptions{}, fmt.Errorf("list accounts: %w", err)
	}
	thirds, err := s.storage.ListThirdParties(ctx, companyID, "")
	if err != nil {
		return formOptions{}, fmt.Errorf("list third parties: %w", err)
	}
	centers, err := s.storage.ListCostCenters(ctx, companyID)
	if err != nil {
		return formOptions{}, fmt.Errorf("list cost centers: %w", err)
	}
	return formOptions{Accounts: accounts, ThirdParties: thirds, CostCenters: centers}, nil
}

var entryFilterKeys = []string{"from", "to", "status", "account", "third_party", "cost_center", "q"}

// savedOrQueryFilter returns the effective filter values for the journal:
// explicit query parameters win, otherwise the user's saved filter applies.
func (s *Server) savedOrQueryFilter(r *http.Request, userID, companyID int64) url.Values {
	q := r.URL.Query()
	for _, k := range entryFilterKeys {
		if q.Get(k) != "" {
			return q
		}
	}

	raw, err := s.storage.GetFilter(r.Context(), userID, companyID, "entries")
	if err != nil || raw == "" {
		return q
	}
	var saved map[string]string
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		s.logger.WarnContext(r.Context(), "Saved filter is not valid JSON",
			log.FieldError, err, log.FieldUserID, userID)
		return q
	}

	merged := url.Values{}
	for k, v := range saved {
		if v != "" {
			merged.Set(k, v)
		}
	}
	if v := q.Get("offset"); v != "" {
		merged.Set("offset", v)
	}
	return merged
}

// entryFilter builds the storage filter from query values. Unparsable
// dates and ids are dropped rather than rejected.
func entryFilter(companyID int64, q url.Values) storage.EntryFilter {
	f := storage.EntryFilter{
		CompanyID: companyID,
		Status:    strings.TrimSpace(q.Get("status")),
		Search:    sanitizeInput(q.Get("q")),
		Limit:     entriesPageSize,
	}
	if d, err := core.ParseDate(q.Get("from")); err == nil {
		f.From = d
	}
	if d, err := core.ParseDate(q.Get("to")); err == nil {
		f.To = d
	}
	if v := sanitizeInput(q.Get("account")); v != "" {
		f.AccountCode = v
	}
	if id, _ := strconv.ParseInt(q.Get("third_party"), 10, 64); id > 0 {
		f.ThirdPartyID = id
	}
	if id, _ := strconv.ParseInt(q.Get("cost_center"), 10, 64); id > 0 {
		f.CostCenterID = id
	}
	if off, _ := strconv.Atoi(q.Get("offset")); off > 0 {
		f.Offset = off
	}
	return f
}

// handleEntries serves the journal page and creates drafts.
func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.renderEntriesPage(w, r)
	case http.MethodPost:
		s.createEntry(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) renderEntriesPage(w http.ResponseWriter, r *http.Request) {
	pc, err := s.pageContext(r, "entries")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Entries page context error", log.FieldError, err)
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
		return
	}
	user, _ := userFromContext(r.Context())

	q := s.savedOrQueryFilter(r, user.ID, pc.Company.ID)
	filter := entryFilter(pc.Company.ID, q)

	entries, err := s.storage.ListEntries(r.Context(), filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List entries error",
			log.FieldError, err, log.FieldCompanyID, pc.Company.ID)
		InternalServerError("No se pudieron cargar los asientos").Write(w)
		return
	}
	opts, err := s.formOptions(r.Context(), pc.Company.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Entry form options error",
			log.FieldError, err, log.FieldCompanyID, pc.Company.ID)
		InternalServerError("No se pudieron cargar los datos maestros").Write(w)
		return
	}

	filterEcho := map[string]string{}
	for _, k := range entryFilterKeys {
		filterEcho[k] = q.Get(k)
	}

	data := struct {
		pageContext
		formOptions
		Rows       []entryRow
		Filter     map[string]string
		Offset     int
		PrevOffset int
		NextOffset int
		HasMore    bool
	}{
		pageContext: pc,
		formOptions: opts,
		Rows:        entryRowsView(entries),
		Filter:      filterEcho,
		Offset:      filter.Offset,
		PrevOffset:  max(0, filter.Offset-filter.Limit),
		NextOffset:  filter.Offset + filter.Limit,
		HasMore:     len(entries) == filter.Limit,
	}
	s.render(w, r, "entries.html", data)
}

// parseEntryForm builds a draft from the submitted form. Only the shape of
// the input is checked here; the accounting rules run when the draft is
// posted.
func parseEntryForm(form url.Values, companyID, userID int64) (core.JournalEntry, error) {
	date, err := formDate(form, "date")
	if err != nil {
		return core.JournalEntry{}, err
	}
	description := sanitizeInput(form.Get("description"))
	if description == "" {
		return core.JournalEntry{}, core.ErrEmptyDescription
	}
	lines, err := parseEntryLines(form)
	if err != nil {
		return core.JournalEntry{}, err
	}
	return core.JournalEntry{
		CompanyID:   companyID,
		Date:        date,
		Description: description,
		Status:      core.EntryDraft,
		CreatedBy:   userID,
		Lines:       lines,
	}, nil
}

func valueAt(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

// parseEntryLines reads the repeated line fields of the entry form. Rows
// with no account and no amount are form placeholders and are skipped.
func parseEntryLines(form url.Values) ([]core.JournalLine, error) {
	accounts := form["account"]
	descriptions := form["line_description"]
	debits := form["debit"]
	credits := form["credit"]
	thirds := form["line_third_party"]
	centers := form["line_cost_center"]

	var lines []core.JournalLine
	for i := range accounts {
		codeRaw := strings.TrimSpace(valueAt(accounts, i))
		debitRaw := strings.TrimSpace(valueAt(debits, i))
		creditRaw := strings.TrimSpace(valueAt(credits, i))
		if codeRaw == "" && debitRaw == "" && creditRaw == "" {
			continue
		}

		code, err := core.ParseAccountCode(codeRaw)
		if err != nil {
			return nil, err
		}
		line := core.JournalLine{
			LineNo:       len(lines) + 1,
			AccountCode:  code,
			Description:  sanitizeInput(valueAt(descriptions, i)),
			ThirdPartyID: optionalID(valueAt(thirds, i)),
			CostCenterID: optionalID(valueAt(centers, i)),
		}
		if debitRaw != "" {
			d, err := core.ParseAmount(debitRaw)
			if err != nil {
				return nil, err
			}
			line.Debit = d
		}
		if creditRaw != "" {
			c, err := core.ParseAmount(creditRaw)
			if err != nil {
				return nil, err
			}
			line.Credit = c
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireWriter(w, r)
	if !ok {
		return
	}
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	company, err := s.activeCompany(r)
	if err != nil {
		InternalServerError("No hay empresas configuradas").Write(w)
		return
	}

	e, err := parseEntryForm(r.Form, company.ID, user.ID)
	if err != nil {
		ValidationError(err).Write(w)
		return
	}

	created, err := s.storage.CreateEntry(r.Context(), e)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Create entry error",
			log.FieldError, err, log.FieldCompanyID, company.ID)
		InternalServerError("No se pudo guardar el asiento").Write(w)
		return
	}

	atomic.AddInt64(&s.appMetrics.entriesCreated, 1)
	s.invalidateOverview(company.ID, created.Date.Year(), created.Date.Month())

	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerEntryCreated(created.Date.Year(), created.Date.Month()).
		TriggerFormReset().
		TriggerSuccessNotification("Borrador guardado").
		BodyHTML(fmt.Sprintf(`<div class="success">Borrador #%d guardado</div>`, created.ID)).
		Write(w)
}

// handleEntryByID serves the edit form and applies draft changes.
func (s *Server) handleEntryByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError("Identificador no válido").Write(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.renderEntryForm(w, r, id)
	case http.MethodPut:
		s.updateEntry(w, r, id)
	case http.MethodDelete:
		s.deleteEntry(w, r, id)
	default:
		MethodNotAllowedError("GET, PUT, DELETE").Write(w)
	}
}

// entryForCompany loads an entry and hides rows of other companies.
func (s *Server) entryForCompany(ctx context.Context, r *http.Request, id int64) (core.JournalEntry, core.Company, error) {
	company, err := s.activeCompany(r)
	if err != nil {
		return core.JournalEntry{}, core.Company{}, err
	}
	e, err := s.storage.GetEntry(ctx, id)
	if err != nil {
		return core.JournalEntry{}, company, err
	}
	if e.CompanyID != company.ID {
		return core.JournalEntry{}, company, storage.ErrNotFound
	}
	return e, company, nil
}

// writeEntryError maps storage and validation failures of entry operations
// to the right response.
func (s *Server) writeEntryError(w http.ResponseWriter, r *http.Request, op string, id int64, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		NotFoundError("Asiento no encontrado").Write(w)
	case errors.Is(err, storage.ErrNotEditable),
		errors.Is(err, core.ErrNotDraft),
		errors.Is(err, core.ErrNotPosted),
		errors.Is(err, core.ErrEmptyReason),
		errors.Is(err, core.ErrUnbalanced),
		errors.Is(err, core.ErrTooFewLines),
		errors.Is(err, core.ErrLineBothSides),
		errors.Is(err, core.ErrLineNoAmount),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidAccountCode),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidDate):
		ValidationError(err).Write(w)
	default:
		s.logger.ErrorContext(r.Context(), "Entry operation error",
			log.FieldError, err, "operation", op, log.FieldEntryID, id)
		InternalServerError("Operación no completada").Write(w)
	}
}

func (s *Server) renderEntryForm(w http.ResponseWriter, r *http.Request, id int64) {
	e, company, err := s.entryForCompany(r.Context(), r, id)
	if err != nil {
		s.writeEntryError(w, r, log.OpRead, id, err)
		return
	}
	opts, err := s.formOptions(r.Context(), company.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Entry form options error",
			log.FieldError, err, log.FieldCompanyID, company.ID)
		InternalServerError("No se pudieron cargar los datos maestros").Write(w)
		return
	}

	data := struct {
		formOptions
		ID          int64
		Reference   string
		Date        string
		Description string
		StatusLabel string
		VoidReason  string
		IsDraft     bool
		Lines       []lineForm
	}{
		formOptions: opts,
		ID:          e.ID,
		Reference:   e.Reference,
		Date:        e.Date.String(),
		Description: e.Description,
		StatusLabel: statusLabels[e.Status],
		VoidReason:  e.VoidReason,
		IsDraft:     e.Status == core.EntryDraft,
		Lines:       lineForms(e.Lines),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "entry_form.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution error",
			log.FieldError, err, "template", "entry_form.html", log.FieldEntryID, id)
	}
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request, id int64) {
	if _, ok := s.requireWriter(w, r); !ok {
		return
	}
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	existing, company, err := s.entryForCompany(r.Context(), r, id)
	if err != nil {
		s.writeEntryError(w, r, log.OpUpdate, id, err)
		return
	}

	e, err := parseEntryForm(r.Form, company.ID, existing.CreatedBy)
	if err != nil {
		ValidationError(err).Write(w)
		return
	}
	e.ID = id

	if err := s.storage.UpdateEntry(r.Context(), e); err != nil {
		s.writeEntryError(w, r, log.OpUpdate, id, err)
		return
	}

	// The edit may have moved the entry to another month.
	s.invalidateOverview(company.ID, existing.Date.Year(), existing.Date.Month())
	s.invalidateOverview(company.ID, e.Date.Year(), e.Date.Month())

	NewHTMXResponse().
		TriggerEntryUpdated(id).
		TriggerOverviewRefresh(e.Date.Year(), e.Date.Month()).
		TriggerSuccessNotification("Borrador actualizado").
		BodyHTML(`<div class="success">Borrador actualizado</div>`).
		Write(w)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request, id int64) {
	if _, ok := s.requireWriter(w, r); !ok {
		return
	}
	existing, company, err := s.entryForCompany(r.Context(), r, id)
	if err != nil {
		s.writeEntryError(w, r, log.OpDelete, id, err)
		return
	}

	if err := s.storage.DeleteEntry(r.Context(), id); err != nil {
		s.writeEntryError(w, r, log.OpDelete, id, err)
		return
	}
	s.invalidateOverview(company.ID, existing.Date.Year(), existing.Date.Month())

	NewHTMXResponse().
		TriggerEntryDeleted(existing.Date.Year(), existing.Date.Month()).
		TriggerSuccessNotification("Borrador eliminado").
		Write(w)
}

// rowFragment renders a single journal row for in-place swaps.
func (s *Server) rowFragment(e core.JournalEntry) string {
	var buf bytes.Buffer
	data := struct{ Rows []entryRow }{entryRowsView([]core.JournalEntry{e})}
	if err := s.templates.ExecuteTemplate(&buf, "entry_rows.html", data); err != nil {
		return ""
	}
	return buf.String()
}

// handlePostEntry posts a draft, assigning its reference.
func (s *Server) handlePostEntry(w http.ResponseWriter, r *http.Request) {
	if errResp := RequirePOST(r); errResp != nil {
		errResp.Write(w)
		return
	}
	if _, ok := s.requireWriter(w, r); !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		BadRequestError("Identificador no válido").Write(w)
		return
	}
	_, company, err := s.entryForCompany(r.Context(), r, id)
	if err != nil {
		s.writeEntryError(w, r, log.OpPost, id, err)
		return
	}

	posted, err := s.entries.PostEntry(r.Context(), id)
	if err != nil {
		s.writeEntryError(w, r, log.OpPost, id, err)
		return
	}

	atomic.AddInt64(&s.appMetrics.entriesPosted, 1)
	s.invalidateOverview(company.ID, posted.Date.Year(), posted.Date.Month())
	s.structured.LogEntryPosted(r.Context(), posted.ID, posted.Reference, posted.Description)

	NewHTMXResponse().
		TriggerEntryPosted(posted.ID, posted.Reference).
		TriggerOverviewRefresh(posted.Date.Year(), posted.Date.Month()).
		TriggerSuccessNotification(fmt.Sprintf("Asiento %s contabilizado", posted.Reference)).
		BodyHTML(s.rowFragment(posted)).
		Write(w)
}

// handleVoidEntry voids a posted entry, keeping it for the audit trail.
func (s *Server) handleVoidEntry(w http.ResponseWriter, r *http.Request) {
	if errResp := RequirePOST(r); errResp != nil {
		errResp.Write(w)
		return
	}
	if _, ok := s.requireWriter(w, r); !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		BadRequestError("Identificador no válido").Write(w)
		return
	}
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	reason := sanitizeInput(r.Form.Get("reason"))

	_, company, err := s.entryForCompany(r.Context(), r, id)
	if err != nil {
		s.writeEntryError(w, r, log.OpVoid, id, err)
		return
	}

	voided, err := s.entries.VoidEntry(r.Context(), id, reason)
	if err != nil {
		s.writeEntryError(w, r, log.OpVoid, id, err)
		return
	}

	atomic.AddInt64(&s.appMetrics.entriesVoided, 1)
	s.invalidateOverview(company.ID, voided.Date.Year(), voided.Date.Month())
	s.logger.InfoContext(r.Context(), "Journal entry voided",
		log.FieldEntryID, voided.ID,
		log.FieldReference, voided.Reference,
		"reason", voided.VoidReason)

	NewHTMXResponse().
		TriggerEntryVoided(voided.ID).
		TriggerOverviewRefresh(voided.Date.Year(), voided.Date.Month()).
		TriggerSuccessNotification(fmt.Sprintf("Asiento %s anulado", voided.Reference)).
		BodyHTML(s.rowFragment(voided)).
		Write(w)
}

// handleEntryRows returns the journal rows for the current filter.
func (s *Server) handleEntryRows(w http.ResponseWriter, r *http.Request) {
	if errResp := RequireMethod(r, http.MethodGet); errResp != nil {
		errResp.Write(w)
		return
	}
	company, err := s.activeCompany(r)
	if err != nil {
		InternalServerError("No hay empresas configuradas").Write(w)
		return
	}

	filter := entryFilter(company.ID, r.URL.Query())
	entries, err := s.storage.ListEntries(r.Context(), filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List entries error",
			log.FieldError, err, log.FieldCompanyID, company.ID)
		InternalServerError("No se pudieron cargar los asientos").Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Rows []entryRow }{entryRowsView(entries)}
	if err := s.templates.ExecuteTemplate(w, "entry_rows.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution error",
			log.FieldError, err, "template", "entry_rows.html")
	}
}

// handleBalancePreview totals the lines of an in-progress form.
func (s *Server) handleBalancePreview(w http.ResponseWriter, r *http.Request) {
	if errResp := RequirePOST(r); errResp != nil {
		errResp.Write(w)
		return
	}
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}

	lines, err := parseEntryLines(r.Form)
	if err != nil {
		ValidationError(err).Write(w)
		return
	}
	e := core.JournalEntry{Lines: lines}

	data := struct {
		TotalDebit  string
		TotalCredit string
		Imbalance   string
		Lines       int
		Postable    bool
	}{
		TotalDebit:  core.FormatAmount(e.TotalDebit()),
		TotalCredit: core.FormatAmount(e.TotalCredit()),
		Imbalance:   core.FormatAmount(e.Imbalance()),
		Lines:       len(lines),
		Postable:    len(lines) >= 2 && e.Balanced(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "balance_preview.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution error",
			log.FieldError, err, "template", "balance_preview.html")
	}
}

// handleLineRow returns one empty line row for the entry form.
func (s *Server) handleLineRow(w http.ResponseWriter, r *http.Request) {
	company, err := s.activeCompany(r)
	if err != nil {
		InternalServerError("No hay empresas configuradas").Write(w)
		return
	}
	opts, err := s.formOptions(r.Context(), company.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Entry form options error",
			log.FieldError, err, log.FieldCompanyID, company.ID)
		InternalServerError("No se pudieron cargar los datos maestros").Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "line_row.html", opts); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution error",
			log.FieldError, err, "template", "line_row.html")
	}
}

// handleExportEntries streams the filtered journal as CSV.
func (s *Server) handleExportEntries(w http.ResponseWriter, r *http.Request) {
	company, err := s.activeCompany(r)
	if err != nil {
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
		return
	}

	filter := entryFilter(company.ID, r.URL.Query())
	filter.Limit = entriesExportMax
	filter.Offset = 0

	entries, err := s.storage.ListEntries(r.Context(), filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Export entries error",
			log.FieldError, err, log.FieldCompanyID, company.ID)
		http.Error(w, "No se pudieron exportar los asientos", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="asientos.csv"`)
	if err := export.WriteEntries(w, entries); err != nil {
		s.logger.ErrorContext(r.Context(), "Export entries write error",
			log.FieldError, err, log.FieldCompanyID, company.ID)
	}
}
