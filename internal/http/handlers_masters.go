package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cuentas/internal/core"
	"cuentas/internal/log"
	"cuentas/internal/storage"

	"cuentas/assets"
)

var kindLabels = map[core.ThirdPartyKind]string{
	core.ThirdPartyCustomer: "Cliente",
	core.ThirdPartySupplier: "Proveedor",
	core.ThirdPartyBoth:     "Cliente y proveedor",
}

// writeMasterError maps master-data storage failures to responses.
func (s *Server) writeMasterError(w http.ResponseWriter, r *http.Request, entity string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		NotFoundError("No encontrado").Write(w)
	case errors.Is(err, core.ErrDuplicateCode),
		errors.Is(err, core.ErrInvalidAccountCode),
		errors.Is(err, storage.ErrInUse):
		ValidationError(err).Write(w)
	default:
		s.logger.ErrorContext(r.Context(), "Master data error",
			log.FieldError, err, "entity", entity)
		InternalServerError("Operación no completada").Write(w)
	}
}

// accountRow is the view model for one row of the chart of accounts.
type accountRow struct {
	ID       int64
	Code     string
	Name     string
	Level    int
	Active   bool
	IsInflow bool
}

func accountRowsView(accounts []core.Account) []accountRow {
	rows := make([]accountRow, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, accountRow{
			ID:       a.ID,
			Code:     string(a.Code),
			Name:     a.Name,
			Level:    a.Code.Level(),
			Active:   a.Active,
			IsInflow: a.Code.Direction() == core.FlowInflow,
		})
	}
	return rows
}

// handleAccounts serves the chart of accounts page and creates accounts.
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.renderAccountsPage(w, r)
	case http.MethodPost:
		s.createAccount(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) renderAccountsPage(w http.ResponseWriter, r *http.Request) {
	pc, err := s.pageContext(r, "accounts")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Accounts page context error", log.FieldError, err)
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
		return
	}

	showAll := r.URL.Query().Get("all") == "1"
	accounts, err := s.storage.ListAccounts(r.Context(), pc.Company.ID, !showAll)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List accounts error",
			log.FieldError, err, log.FieldCompanyID, pc.Company.ID)
		InternalServerError("No se pudo cargar el plan contable").Write(w)
		return
	}

	data := struct {
		pageContext
		Rows    []accountRow
		ShowAll bool
		Empty   bool
	}{
		pageContext: pc,
		Rows:        accountRowsView(accounts),
		ShowAll:     showAll,
		Empty:       len(accounts) == 0,
	}
	s.render(w, r, "accounts.html", data)
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
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

	code, err := core.ParseAccountCode(r.Form.Get("code"))
	if err != nil {
		ValidationError(err).Write(w)
		return
	}
	account := core.Account{
		CompanyID: company.ID,
		Code:      code,
		Name:      sanitizeInput(r.Form.Get("name")),
		Active:    true,
	}
	if err := account.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}

	created, err := s.storage.CreateAccount(r.Context(), account)
	if err != nil {
		s.writeMasterError(w, r, "account", err)
		return
	}

	NewHTMXResponse().
		Status(http.StatusCreated).
		Trigger("account:created", map[string]string{"code": string(created.Code)}).
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("Cuenta %s creada", created.Code)).
		BodyHTML(fmt.Sprintf(`<div class="success">Cuenta %s creada</div>`, created.Code)).
		Write(w)
}

// handleAccountByID renames or toggles an account.
func (s *Server) handleAccountByID(w http.ResponseWriter, r *http.Request) {
	if errResp := RequireMethod(r, http.MethodPut); errResp != nil {
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

	name := sanitizeInput(r.Form.Get("name"))
	if name == "" {
		ValidationError(core.ErrEmptyName).Write(w)
		return
	}
	account := core.Account{
		ID:     id,
		Name:   name,
		Active: r.Form.Get("active") != "",
	}
	if err := s.storage.UpdateAccount(r.Context(), account); err != nil {
		s.writeMasterError(w, r, "account", err)
		return
	}

	NewHTMXResponse().
		Trigger("account:updated", map[string]int64{"id": id}).
		TriggerSuccessNotification("Cuenta actualizada").
		BodyHTML(`<div class="success">Cuenta actualizada</div>`).
		Write(w)
}

// handleSeedChart loads the default chart template into the company.
func (s *Server) handleSeedChart(w http.ResponseWriter, r *http.Request) {
	if errResp := RequirePOST(r); errResp != nil {
		errResp.Write(w)
		return
	}
	if _, ok := s.requireWriter(w, r); !ok {
		return
	}
	company, err := s.activeCompany(r)
	if err != nil {
		InternalServerError("No hay empresas configuradas").Write(w)
		return
	}

	chart, err := assets.DefaultChart()
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Chart template error", log.FieldError, err)
		InternalServerError("Plantilla de plan contable no disponible").Write(w)
		return
	}
	inserted, err := s.storage.SeedChart(r.Context(), company.ID, chart)
	if err != nil {
		s.writeMasterError(w, r, "account", err)
		return
	}

	NewHTMXResponse().
		Trigger("account:created", map[string]int{"inserted": inserted}).
		TriggerSuccessNotification(fmt.Sprintf("Plan contable cargado: %d cuentas nuevas", inserted)).
		BodyHTML(fmt.Sprintf(`<div class="success">Plan contable cargado: %d cuentas nuevas</div>`, inserted)).
		Write(w)
}

// handleThirdParties serves the third parties page and creates records.
func (s *Server) handleThirdParties(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.renderThirdPartiesPage(w, r)
	case http.MethodPost:
		s.createThirdParty(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

type thirdPartyRow struct {
	core.ThirdParty
	KindLabel string
}

func (s *Server) renderThirdPartiesPage(w http.ResponseWriter, r *http.Request) {
	pc, err := s.pageContext(r, "third-parties")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Third parties page context error", log.FieldError, err)
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
		return
	}

	kind := core.ThirdPartyKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		kind = ""
	}
	parties, err := s.storage.ListThirdParties(r.Context(), pc.Company.ID, kind)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List third parties error",
			log.FieldError, err, log.FieldCompanyID, pc.Company.ID)
		InternalServerError("No se pudieron cargar los terceros").Write(w)
		return
	}

	rows := make([]thirdPartyRow, 0, len(parties))
	for _, tp := range parties {
		rows = append(rows, thirdPartyRow{ThirdParty: tp, KindLabel: kindLabels[tp.Kind]})
	}

	data := struct {
		pageContext
		Rows []thirdPartyRow
		Kind string
	}{pc, rows, string(kind)}
	s.render(w, r, "third_parties.html", data)
}

func (s *Server) createThirdParty(w http.ResponseWriter, r *http.Request) {
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

	tp := core.ThirdParty{
		CompanyID: company.ID,
		Code:      sanitizeInput(r.Form.Get("code")),
		Name:      sanitizeInput(r.Form.Get("name")),
		TaxID:     sanitizeInput(r.Form.Get("tax_id")),
		Kind:      core.ThirdPartyKind(r.Form.Get("kind")),
		Email:     sanitizeInput(r.Form.Get("email")),
		Phone:     sanitizeInput(r.Form.Get("phone")),
		Active:    true,
	}
	if tp.Kind == "" {
		tp.Kind = core.ThirdPartyBoth
	}
	if err := tp.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}

	created, err := s.storage.CreateThirdParty(r.Context(), tp)
	if err != nil {
		s.writeMasterError(w, r, "third_party", err)
		return
	}

	NewHTMXResponse().
		Status(http.StatusCreated).
		Trigger("thirdparty:created", map[string]int64{"id": created.ID}).
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("Tercero %s creado", created.Code)).
		BodyHTML(fmt.Sprintf(`<div class="success">Tercero %s creado</div>`, created.Code)).
		Write(w)
}

// handleThirdPartyByID updates or deactivates a third party.
func (s *Server) handleThirdPartyByID(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.storage.GetThirdParty(r.Context(), id)
	if err != nil || existing.CompanyID != company.ID {
		NotFoundError("Tercero no encontrado").Write(w)
		return
	}

	if r.Method == http.MethodDelete {
		existing.Active = false
		if err := s.storage.UpdateThirdParty(r.Context(), existing); err != nil {
			s.writeMasterError(w, r, "third_party", err)
			return
		}
		NewHTMXResponse().
			Trigger("thirdparty:updated", map[string]int64{"id": id}).
			TriggerSuccessNotification("Tercero desactivado").
			Write(w)
		return
	}

	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	updated := existing
	updated.Name = sanitizeInput(r.Form.Get("name"))
	updated.TaxID = sanitizeInput(r.Form.Get("tax_id"))
	updated.Email = sanitizeInput(r.Form.Get("email"))
	updated.Phone = sanitizeInput(r.Form.Get("phone"))
	updated.Active = r.Form.Get("active") != ""
	if kind := core.ThirdPartyKind(r.Form.Get("kind")); kind != "" {
		updated.Kind = kind
	}
	if err := updated.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}

	if err := s.storage.UpdateThirdParty(r.Context(), updated); err != nil {
		s.writeMasterError(w, r, "third_party", err)
		return
	}

	NewHTMXResponse().
		Trigger("thirdparty:updated", map[string]int64{"id": id}).
		TriggerSuccessNotification("Tercero actualizado").
		BodyHTML(`<div class="success">Tercero actualizado</div>`).
		Write(w)
}

// handleCostCenters serves the cost centers page and creates centers.
func (s *Server) handleCostCenters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.renderCostCentersPage(w, r)
	case http.MethodPost:
		s.createCostCenter(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) renderCostCentersPage(w http.ResponseWriter, r *http.Request) {
	pc, err := s.pageContext(r, "cost-centers")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Cost centers page context error", log.FieldError, err)
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
		return
	}

	centers, err := s.storage.ListCostCenters(r.Context(), pc.Company.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List cost centers error",
			log.FieldError, err, log.FieldCompanyID, pc.Company.ID)
		InternalServerError("No se pudieron cargar los centros de coste").Write(w)
		return
	}

	data := struct {
		pageContext
		Centers []core.CostCenter
	}{pc, centers}
	s.render(w, r, "cost_centers.html", data)
}

func (s *Server) createCostCenter(w http.ResponseWriter, r *http.Request) {
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

	cc := core.CostCenter{
		CompanyID: company.ID,
		Code:      sanitizeInput(r.Form.Get("code")),
		Name:      sanitizeInput(r.Form.Get("name")),
		Active:    true,
	}
	if err := cc.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}

	created, err := s.storage.CreateCostCenter(r.Context(), cc)
	if err != nil {
		s.writeMasterError(w, r, "cost_center", err)
		return
	}

	NewHTMXResponse().
		Status(http.StatusCreated).
		Trigger("costcenter:created", map[string]int64{"id": created.ID}).
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("Centro %s creado", created.Code)).
		BodyHTML(fmt.Sprintf(`<div class="success">Centro %s creado en la posición %d</div>`, created.Code, created.Position)).
		Write(w)
}

// costCenterForCompany finds a center by id within the company.
func (s *Server) costCenterForCompany(ctx context.Context, companyID, id int64) (core.CostCenter, error) {
	centers, err := s.storage.ListCostCenters(ctx, companyID)
	if err != nil {
		return core.CostCenter{}, err
	}
	for _, cc := range centers {
		if cc.ID == id {
			return cc, nil
		}
	}
	return core.CostCenter{}, storage.ErrNotFound
}

// handleCostCenterByID updates or deactivates a cost center.
func (s *Server) handleCostCenterByID(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.costCenterForCompany(r.Context(), company.ID, id)
	if err != nil {
		s.writeMasterError(w, r, "cost_center", err)
		return
	}

	if r.Method == http.MethodDelete {
		existing.Active = false
		if err := s.storage.UpdateCostCenter(r.Context(), existing); err != nil {
			s.writeMasterError(w, r, "cost_center", err)
			return
		}
		NewHTMXResponse().
			Trigger("costcenter:updated", map[string]int64{"id": id}).
			TriggerSuccessNotification("Centro de coste desactivado").
			Write(w)
		return
	}

	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	name := sanitizeInput(r.Form.Get("name"))
	if name == "" {
		ValidationError(core.ErrEmptyName).Write(w)
		return
	}
	existing.Name = name
	existing.Active = r.Form.Get("active") != ""

	if err := s.storage.UpdateCostCenter(r.Context(), existing); err != nil {
		s.writeMasterError(w, r, "cost_center", err)
		return
	}

	NewHTMXResponse().
		Trigger("costcenter:updated", map[string]int64{"id": id}).
		TriggerSuccessNotification("Centro de coste actualizado").
		BodyHTML(`<div class="success">Centro de coste actualizado</div>`).
		Write(w)
}

// handleReorderCostCenters renumbers the company's centers to match the
// submitted id order.
func (s *Server) handleReorderCostCenters(w http.ResponseWriter, r *http.Request) {
	if errResp := RequirePOST(r); errResp != nil {
		errResp.Write(w)
		return
	}
	if _, ok := s.requireWriter(w, r); !ok {
		return
	}
	company, err := s.activeCompany(r)
	if err != nil {
		InternalServerError("No hay empresas configuradas").Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Formato de solicitud no válido").Write(w)
		return
	}
	ids := parser.IDList("ids")
	if len(ids) == 0 {
		BadRequestError("Lista de orden vacía").Write(w)
		return
	}

	if err := s.storage.ReorderCostCenters(r.Context(), company.ID, ids); err != nil {
		s.writeMasterError(w, r, "cost_center", err)
		return
	}

	s.logger.InfoContext(r.Context(), "Cost centers reordered",
		log.FieldCompanyID, company.ID, "count", len(ids))
	NewHTMXResponse().
		Trigger("costcenter:reordered", map[string]int{"count": len(ids)}).
		TriggerSuccessNotification("Orden guardado").
		Write(w)
}

// handleUnits serves the units page and creates units of measure.
func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.renderUnitsPage(w, r)
	case http.MethodPost:
		s.createUnit(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) renderUnitsPage(w http.ResponseWriter, r *http.Request) {
	pc, err := s.pageContext(r, "units")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Units page context error", log.FieldError, err)
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
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
		Units []core.UnitOfMeasure
	}{pc, units}
	s.render(w, r, "units.html", data)
}

func (s *Server) createUnit(w http.ResponseWriter, r *http.Request) {
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

	u := core.UnitOfMeasure{
		CompanyID: company.ID,
		Code:      sanitizeInput(r.Form.Get("code")),
		Name:      sanitizeInput(r.Form.Get("name")),
		Symbol:    sanitizeInput(r.Form.Get("symbol")),
	}
	if err := u.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}

	created, err := s.storage.CreateUnit(r.Context(), u)
	if err != nil {
		s.writeMasterError(w, r, "unit", err)
		return
	}

	NewHTMXResponse().
		Status(http.StatusCreated).
		Trigger("unit:created", map[string]int64{"id": created.ID}).
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("Unidad %s creada", created.Code)).
		BodyHTML(fmt.Sprintf(`<div class="success">Unidad %s creada</div>`, created.Code)).
		Write(w)
}

// handleUnitByID removes a unit of measure. Units referenced by budget
// lines cannot be removed.
func (s *Server) handleUnitByID(w http.ResponseWriter, r *http.Request) {
	if errResp := RequireMethod(r, http.MethodDelete); errResp != nil {
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

	units, err := s.storage.ListUnits(r.Context(), company.ID)
	if err != nil {
		s.writeMasterError(w, r, "unit", err)
		return
	}
	found := false
	for _, u := range units {
		if u.ID == id {
			found = true
			break
		}
	}
	if !found {
		NotFoundError("Unidad no encontrada").Write(w)
		return
	}

	if err := s.storage.DeleteUnit(r.Context(), id); err != nil {
		s.writeMasterError(w, r, "unit", err)
		return
	}

	NewHTMXResponse().
		Trigger("unit:deleted", map[string]int64{"id": id}).
		TriggerSuccessNotification("Unidad eliminada").
		Write(w)
}
