package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"cuentas/internal/core"
	"cuentas/internal/log"
	"cuentas/internal/storage"

	"github.com/shopspring/decimal"
)

var frequencyLabels = map[core.Frequency]string{
	core.Weekly:     "Semanal",
	core.Monthly:    "Mensual",
	core.Bimonthly:  "Bimestral",
	core.Quarterly:  "Trimestral",
	core.Semiannual: "Semestral",
	core.Annual:     "Anual",
}

// frequencyOption feeds the frequency selects of the planning forms.
type frequencyOption struct {
	Value string
	Label string
}

func frequencyOptions() []frequencyOption {
	order := []core.Frequency{
		core.Weekly, core.Monthly, core.Bimonthly,
		core.Quarterly, core.Semiannual, core.Annual,
	}
	opts := make([]frequencyOption, 0, len(order))
	for _, f := range order {
		opts = append(opts, frequencyOption{Value: string(f), Label: frequencyLabels[f]})
	}
	return opts
}

// writePlanningError maps planning failures to responses.
func (s *Server) writePlanningError(w http.ResponseWriter, r *http.Request, entity string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		NotFoundError("No encontrado").Write(w)
	case errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidRange),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidFrequency),
		errors.Is(err, core.ErrInvalidAccountCode),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNoLines),
		errors.Is(err, core.ErrSameAccount):
		ValidationError(err).Write(w)
	default:
		s.logger.ErrorContext(r.Context(), "Planning error",
			log.FieldError, err, "entity", entity)
		InternalServerError("Operación no completada").Write(w)
	}
}

// budgetRow is the view model for one budget of the planning page.
type budgetRow struct {
	ID        int64
	Name      string
	StartDate string
	EndDate   string
	Active    bool
	LineCount int
	BaseTotal string
	Lines     []budgetLineForm
}

// budgetLineForm pre-fills the inline edit form of a budget line.
type budgetLineForm struct {
	Description  string
	AccountCode  string
	Quantity     string
	UnitPrice    string
	Total        string
	UnitID       int64
	Frequency    string
	ThirdPartyID int64
	CostCenterID int64
}

func budgetLineFormsView(lines []core.BudgetLine) []budgetLineForm {
	forms := make([]budgetLineForm, 0, len(lines))
	for _, l := range lines {
		f := budgetLineForm{
			Description: l.Description,
			AccountCode: string(l.AccountCode),
			Quantity:    l.Quantity.String(),
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Total:       core.FormatAmount(l.Total()),
			Frequency:   string(l.Frequency),
		}
		if l.UnitID != nil {
			f.UnitID = *l.UnitID
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

func budgetRowsView(budgets []core.Budget) []budgetRow {
	rows := make([]budgetRow, 0, len(budgets))
	for _, b := range budgets {
		base := decimal.Zero
		for _, l := range b.Lines {
			base = base.Add(l.Total())
		}
		rows = append(rows, budgetRow{
			ID:        b.ID,
			Name:      b.Name,
			StartDate: b.StartDate.String(),
			EndDate:   b.EndDate.String(),
			Active:    b.Active,
			LineCount: len(b.Lines),
			BaseTotal: core.FormatAmount(base),
			Lines:     budgetLineFormsView(b.Lines),
		})
	}
	return rows
}

// handleBudgets serves the budgets page and creates budgets.
func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.renderBudgetsPage(w, r)
	case http.MethodPost:
		s.createBudget(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) renderBudgetsPage(w http.ResponseWriter, r *http.Request) {
	pc, err := s.pageContext(r, "budgets")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Budgets page context error", log.FieldError, err)
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
		return
	}

	budgets, err := s.storage.ListBudgets(r.Context(), pc.Company.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List budgets error",
			log.FieldError, err, log.FieldCompanyID, pc.Company.ID)
		InternalServerError("No se pudieron cargar los presupuestos").Write(w)
		return
	}
	opts, err := s.formOptions(r.Context(), pc.Company.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Budget form options error",
			log.FieldError, err, log.FieldCompanyID, pc.Company.ID)
		InternalServerError("No se pudieron cargar los datos maestros").Write(w)
		return
	}
	units, err := s.storage.ListUnits(r.Context(), pc.Company.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List units error",
			log.FieldError, err, log.FieldCompanyID, pc.Company.ID)
		InternalServerError("No se pudieron cargar las unidades").Write(w)
		return
	}

	data := struct {
		pageContext
		formOptions
		Rows        []budgetRow
		Units       []core.UnitOfMeasure
		Frequencies []frequencyOption
	}{
		pageContext: pc,
		formOptions: opts,
		Rows:        budgetRowsView(budgets),
		Units:       units,
		Frequencies: frequencyOptions(),
	}
	s.render(w, r, "budgets.html", data)
}

// parseBudgetForm builds a budget from the submitted form. Budget.Validate
// applies the full rule set before anything is stored.
func parseBudgetForm(form url.Values, companyID int64) (core.Budget, error) {
	start, err := formDate(form, "start_date")
	if err != nil {
		return core.Budget{}, err
	}
	end, err := core.ParseDate(form.Get("end_date"))
	if err != nil {
		return core.Budget{}, err
	}
	lines, err := parseBudgetLines(form)
	if err != nil {
		return core.Budget{}, err
	}

	active := true
	if form.Has("active") || form.Has("active_present") {
		active = form.Get("active") != ""
	}
	return core.Budget{
		CompanyID: companyID,
		Name:      sanitizeInput(form.Get("name")),
		StartDate: start,
		EndDate:   end,
		Active:    active,
		Lines:     lines,
	}, nil
}

func parseBudgetLines(form url.Values) ([]core.BudgetLine, error) {
	descriptions := form["line_description"]
	accounts := form["account"]
	quantities := form["quantity"]
	prices := form["unit_price"]
	units := form["unit"]
	freqs := form["frequency"]
	thirds := form["line_third_party"]
	centers := form["line_cost_center"]

	var lines []core.BudgetLine
	for i := range accounts {
		codeRaw := strings.TrimSpace(valueAt(accounts, i))
		descRaw := strings.TrimSpace(valueAt(descriptions, i))
		qtyRaw := strings.TrimSpace(valueAt(quantities, i))
		priceRaw := strings.TrimSpace(valueAt(prices, i))
		if codeRaw == "" && descRaw == "" && qtyRaw == "" && priceRaw == "" {
			continue
		}

		code, err := core.ParseAccountCode(codeRaw)
		if err != nil {
			return nil, err
		}
		qty, err := core.ParseAmount(qtyRaw)
		if err != nil {
			return nil, err
		}
		price, err := core.ParseAmount(priceRaw)
		if err != nil {
			return nil, err
		}
		freq := core.Frequency(strings.TrimSpace(valueAt(freqs, i)))
		if freq == "" {
			freq = core.Monthly
		}

		lines = append(lines, core.BudgetLine{
			Description:  sanitizeInput(descRaw),
			AccountCode:  code,
			Quantity:     qty,
			UnitPrice:    price,
			UnitID:       optionalID(valueAt(units, i)),
			Frequency:    freq,
			ThirdPartyID: optionalID(valueAt(thirds, i)),
			CostCenterID: optionalID(valueAt(centers, i)),
		})
	}
	return lines, nil
}

func (s *Server) createBudget(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireWriter(w, r); !ok {
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

	b, err := parseBudgetForm(r.Form, company.ID)
	if err != nil {
		ValidationError(err).Write(w)
		return
	}
	if err := b.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}

	created, err := s.storage.CreateBudget(r.Context(), b)
	if err != nil {
		s.writePlanningError(w, r, "budget", err)
		return
	}

	NewHTMXResponse().
		Status(http.StatusCreated).
		Trigger("budget:created", map[string]int64{"id": created.ID}).
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("Presupuesto %q creado", created.Name)).
		BodyHTML(fmt.Sprintf(`<div class="success">Presupuesto %q creado con %d líneas</div>`,
			created.Name, len(created.Lines))).
		Write(w)
}

// budgetForCompany loads a budget and hides rows of other companies.
func (s *Server) budgetForCompany(r *http.Request, id int64) (core.Budget, error) {
	company, err := s.activeCompany(r)
	if err != nil {
		return core.Budget{}, err
	}
	b, err := s.storage.GetBudget(r.Context(), id)
	if err != nil {
		return core.Budget{}, err
	}
	if b.CompanyID != company.ID {
		return core.Budget{}, storage.ErrNotFound
	}
	return b, nil
}

// handleBudgetByID updates or deletes a budget. Updates replace the whole
// line set.
func (s *Server) handleBudgetByID(w http.ResponseWriter, r *http.Request) {
	if errResp := RequireMethod(r, http.MethodPut, http.MethodDelete); errResp != nil {
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

	existing, err := s.budgetForCompany(r, id)
	if err != nil {
		s.writePlanningError(w, r, "budget", err)
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.storage.DeleteBudget(r.Context(), id); err != nil {
			s.writePlanningError(w, r, "budget", err)
			return
		}
		NewHTMXResponse().
			Trigger("budget:deleted", map[string]int64{"id": id}).
			TriggerSuccessNotification("Presupuesto eliminado").
			Write(w)
		return
	}

	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	b, err := parseBudgetForm(r.Form, existing.CompanyID)
	if err != nil {
		ValidationError(err).Write(w)
		return
	}
	b.ID = id
	if err := b.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}

	if err := s.storage.UpdateBudget(r.Context(), b); err != nil {
		s.writePlanningError(w, r, "budget", err)
		return
	}

	NewHTMXResponse().
		Trigger("budget:updated", map[string]int64{"id": id}).
		TriggerSuccessNotification("Presupuesto actualizado").
		BodyHTML(`<div class="success">Presupuesto actualizado</div>`).
		Write(w)
}

// handleBudgetAmortization renders the month-by-month distribution of a
// budget's lines over its date range.
func (s *Server) handleBudgetAmortization(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError("Identificador no válido").Write(w)
		return
	}
	b, err := s.budgetForCompany(r, id)
	if err != nil {
		s.writePlanningError(w, r, "budget", err)
		return
	}

	amortized, err := s.budgets.AmortizeBudget(b)
	if err != nil {
		s.writePlanningError(w, r, "budget", err)
		return
	}

	type amortMonth struct {
		Label  string
		Amount string
	}
	type amortLine struct {
		Description string
		Account     string
		Frequency   string
		Total       string
		Months      []amortMonth
	}

	grand := decimal.Zero
	lines := make([]amortLine, 0, len(amortized))
	for _, la := range amortized {
		months := make([]amortMonth, 0, len(la.Months))
		for _, m := range la.Months {
			months = append(months, amortMonth{
				Label:  fmt.Sprintf("%s %d", monthName(m.Month), m.Year),
				Amount: core.FormatAmount(m.Amount),
			})
		}
		grand = grand.Add(la.Total)
		lines = append(lines, amortLine{
			Description: la.Line.Description,
			Account:     string(la.Line.AccountCode),
			Frequency:   frequencyLabels[la.Line.Frequency],
			Total:       core.FormatAmount(la.Total),
			Months:      months,
		})
	}

	data := struct {
		BudgetName string
		StartDate  string
		EndDate    string
		Lines      []amortLine
		GrandTotal string
	}{
		BudgetName: b.Name,
		StartDate:  b.StartDate.String(),
		EndDate:    b.EndDate.String(),
		Lines:      lines,
		GrandTotal: core.FormatAmount(grand),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "budget_amortization.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution error",
			log.FieldError, err, "template", "budget_amortization.html")
	}
}

// scheduleRow is the view model for one scheduled transaction.
type scheduleRow struct {
	ID             int64
	Description    string
	Amount         string
	AmountPlain    string
	DebitAccount   string
	CreditAccount  string
	Frequency      string
	FrequencyLabel string
	StartDate      string
	EndDate        string
	LastRun        string
	Active         bool
	ThirdPartyID   int64
	CostCenterID   int64
}

func scheduleRowsView(schedules []core.ScheduledTransaction) []scheduleRow {
	rows := make([]scheduleRow, 0, len(schedules))
	for _, st := range schedules {
		row := scheduleRow{
			ID:             st.ID,
			Description:    st.Description,
			Amount:         core.FormatAmount(st.Amount),
			AmountPlain:    st.Amount.StringFixed(2),
			DebitAccount:   string(st.DebitAccount),
			CreditAccount:  string(st.CreditAccount),
			Frequency:      string(st.Frequency),
			FrequencyLabel: frequencyLabels[st.Frequency],
			StartDate:      st.StartDate.String(),
			Active:         st.Active,
		}
		if st.EndDate != nil {
			row.EndDate = st.EndDate.String()
		}
		if st.LastRunDate != nil {
			row.LastRun = st.LastRunDate.String()
		}
		if st.ThirdPartyID != nil {
			row.ThirdPartyID = *st.ThirdPartyID
		}
		if st.CostCenterID != nil {
			row.CostCenterID = *st.CostCenterID
		}
		rows = append(rows, row)
	}
	return rows
}

// handleSchedules serves the scheduled transactions page and creates
// schedules.
func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.renderSchedulesPage(w, r)
	case http.MethodPost:
		s.createSchedule(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) renderSchedulesPage(w http.ResponseWriter, r *http.Request) {
	pc, err := s.pageContext(r, "schedules")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Schedules page context error", log.FieldError, err)
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
		return
	}

	schedules, err := s.storage.ListScheduledTransactions(r.Context(), pc.Company.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List schedules error",
			log.FieldError, err, log.FieldCompanyID, pc.Company.ID)
		InternalServerError("No se pudieron cargar las transacciones programadas").Write(w)
		return
	}
	opts, err := s.formOptions(r.Context(), pc.Company.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Schedule form options error",
			log.FieldError, err, log.FieldCompanyID, pc.Company.ID)
		InternalServerError("No se pudieron cargar los datos maestros").Write(w)
		return
	}

	data := struct {
		pageContext
		formOptions
		Rows        []scheduleRow
		Frequencies []frequencyOption
	}{
		pageContext: pc,
		formOptions: opts,
		Rows:        scheduleRowsView(schedules),
		Frequencies: frequencyOptions(),
	}
	s.render(w, r, "schedules.html", data)
}

// parseScheduleForm builds a scheduled transaction from the form.
func parseScheduleForm(form url.Values, companyID int64) (core.ScheduledTransaction, error) {
	amount, err := core.ParseAmount(form.Get("amount"))
	if err != nil {
		return core.ScheduledTransaction{}, err
	}
	debit, err := core.ParseAccountCode(form.Get("debit_account"))
	if err != nil {
		return core.ScheduledTransaction{}, err
	}
	credit, err := core.ParseAccountCode(form.Get("credit_account"))
	if err != nil {
		return core.ScheduledTransaction{}, err
	}
	start, err := formDate(form, "start_date")
	if err != nil {
		return core.ScheduledTransaction{}, err
	}
	end, err := optionalFormDate(form, "end_date")
	if err != nil {
		return core.ScheduledTransaction{}, err
	}

	active := true
	if form.Has("active") || form.Has("active_present") {
		active = form.Get("active") != ""
	}
	return core.ScheduledTransaction{
		CompanyID:     companyID,
		Description:   sanitizeInput(form.Get("description")),
		Amount:        amount,
		DebitAccount:  debit,
		CreditAccount: credit,
		Frequency:     core.Frequency(strings.TrimSpace(form.Get("frequency"))),
		StartDate:     start,
		EndDate:       end,
		ThirdPartyID:  optionalID(form.Get("third_party")),
		CostCenterID:  optionalID(form.Get("cost_center")),
		Active:        active,
	}, nil
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireWriter(w, r); !ok {
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

	st, err := parseScheduleForm(r.Form, company.ID)
	if err != nil {
		ValidationError(err).Write(w)
		return
	}
	if err := st.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}

	created, err := s.storage.CreateScheduledTransaction(r.Context(), st)
	if err != nil {
		s.writePlanningError(w, r, "schedule", err)
		return
	}

	NewHTMXResponse().
		Status(http.StatusCreated).
		Trigger("schedule:created", map[string]int64{"id": created.ID}).
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("Programación %q creada", created.Description)).
		BodyHTML(fmt.Sprintf(`<div class="success">Programación %q creada</div>`, created.Description)).
		Write(w)
}

// handleScheduleByID updates or deletes a scheduled transaction.
func (s *Server) handleScheduleByID(w http.ResponseWriter, r *http.Request) {
	if errResp := RequireMethod(r, http.MethodPut, http.MethodDelete); errResp != nil {
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
	company, err := s.activeCompany(r)
	if err != nil {
		InternalServerError("No hay empresas configuradas").Write(w)
		return
	}

	existing, err := s.storage.GetScheduledTransaction(r.Context(), id)
	if err != nil || existing.CompanyID != company.ID {
		NotFoundError("Programación no encontrada").Write(w)
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.storage.DeleteScheduledTransaction(r.Context(), id); err != nil {
			s.writePlanningError(w, r, "schedule", err)
			return
		}
		NewHTMXResponse().
			Trigger("schedule:deleted", map[string]int64{"id": id}).
			TriggerSuccessNotification("Programación eliminada").
			Write(w)
		return
	}

	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	st, err := parseScheduleForm(r.Form, existing.CompanyID)
	if err != nil {
		ValidationError(err).Write(w)
		return
	}
	st.ID = id
	st.LastRunDate = existing.LastRunDate
	if err := st.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}

	if err := s.storage.UpdateScheduledTransaction(r.Context(), st); err != nil {
		s.writePlanningError(w, r, "schedule", err)
		return
	}

	NewHTMXResponse().
		Trigger("schedule:updated", map[string]int64{"id": id}).
		TriggerSuccessNotification("Programación actualizada").
		BodyHTML(`<div class="success">Programación actualizada</div>`).
		Write(w)
}
