package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"cuentas/internal/core"
	"cuentas/internal/log"
	"cuentas/internal/storage"
)

const minPasswordLength = 8

var roleLabels = map[core.Role]string{
	core.RoleAdmin:      "Administrador",
	core.RoleAccountant: "Contable",
	core.RoleViewer:     "Solo lectura",
}

type roleOption struct {
	Value string
	Label string
}

func roleOptions() []roleOption {
	return []roleOption{
		{Value: string(core.RoleAdmin), Label: roleLabels[core.RoleAdmin]},
		{Value: string(core.RoleAccountant), Label: roleLabels[core.RoleAccountant]},
		{Value: string(core.RoleViewer), Label: roleLabels[core.RoleViewer]},
	}
}

type userRow struct {
	ID        int64
	Email     string
	Name      string
	Role      string
	RoleLabel string
	Active    bool
	IsSelf    bool
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.renderUsersPage(w, r)
	case http.MethodPost:
		s.createUser(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) renderUsersPage(w http.ResponseWriter, r *http.Request) {
	pc, err := s.pageContext(r, "users")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Users page context error", log.FieldError, err)
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
		return
	}

	users, err := s.storage.ListUsers(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List users error", log.FieldError, err)
		InternalServerError("No se pudieron cargar los usuarios").Write(w)
		return
	}

	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{
			ID:        u.ID,
			Email:     u.Email,
			Name:      u.Name,
			Role:      string(u.Role),
			RoleLabel: roleLabels[u.Role],
			Active:    u.Active,
			IsSelf:    u.ID == pc.User.ID,
		})
	}

	data := struct {
		pageContext
		Rows  []userRow
		Roles []roleOption
	}{pageContext: pc, Rows: rows, Roles: roleOptions()}
	s.render(w, r, "users.html", data)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}

	password := r.Form.Get("password")
	if len(password) < minPasswordLength {
		UnprocessableEntityError("La contraseña debe tener al menos 8 caracteres").Write(w)
		return
	}

	u := core.User{
		Email:  sanitizeInput(r.Form.Get("email")),
		Name:   sanitizeInput(r.Form.Get("name")),
		Role:   core.Role(r.Form.Get("role")),
		Active: true,
	}
	if err := u.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}

	created, err := s.storage.CreateUser(r.Context(), u, password)
	if err != nil {
		s.writeUserError(w, r, log.OpCreate, err)
		return
	}

	NewHTMXResponse().
		Status(http.StatusCreated).
		Trigger("user:created", map[string]int64{"id": created.ID}).
		TriggerSuccessNotification("Usuario "+created.Email+" creado").
		BodyHTML(`<div class="success">Usuario creado</div>`).
		Write(w)
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	if errResp := RequireMethod(r, http.MethodPut); errResp != nil {
		errResp.Write(w)
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

	u, err := s.storage.GetUser(r.Context(), id)
	if err != nil {
		s.writeUserError(w, r, log.OpUpdate, err)
		return
	}

	if name := sanitizeInput(r.Form.Get("name")); name != "" {
		u.Name = name
	}
	if role := r.Form.Get("role"); role != "" {
		u.Role = core.Role(role)
	}
	if r.Form.Has("active") || r.Form.Has("active_present") {
		u.Active = r.Form.Get("active") != ""
	}

	// Admins cannot lock themselves out.
	current, _ := userFromContext(r.Context())
	if current.ID == u.ID && (u.Role != core.RoleAdmin || !u.Active) {
		UnprocessableEntityError("No puedes quitarte tu propio acceso de administrador").Write(w)
		return
	}

	if err := u.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}
	if err := s.storage.UpdateUser(r.Context(), u); err != nil {
		s.writeUserError(w, r, log.OpUpdate, err)
		return
	}

	s.logger.InfoContext(r.Context(), "User updated",
		log.FieldUserID, u.ID, "role", u.Role, "active", u.Active)
	NewHTMXResponse().
		Trigger("user:updated", map[string]int64{"id": u.ID}).
		TriggerSuccessNotification("Usuario actualizado").
		BodyHTML(`<div class="success">Usuario actualizado</div>`).
		Write(w)
}

func (s *Server) handleUserPassword(w http.ResponseWriter, r *http.Request) {
	if errResp := RequirePOST(r); errResp != nil {
		errResp.Write(w)
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

	password := r.Form.Get("password")
	if len(password) < minPasswordLength {
		UnprocessableEntityError("La contraseña debe tener al menos 8 caracteres").Write(w)
		return
	}

	if err := s.storage.SetPassword(r.Context(), id, password); err != nil {
		s.writeUserError(w, r, log.OpUpdate, err)
		return
	}

	NewHTMXResponse().
		TriggerSuccessNotification("Contraseña actualizada").
		BodyHTML(`<div class="success">Contraseña actualizada</div>`).
		Write(w)
}

func (s *Server) writeUserError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		NotFoundError("Usuario no encontrado").Write(w)
	case errors.Is(err, storage.ErrEmailTaken):
		ValidationError(err).Write(w)
	default:
		s.structured.LogError(r.Context(), "User operation failed", err, log.ComponentHTTP, op, nil)
		InternalServerError("Operación no completada").Write(w)
	}
}

// filterPages maps each page slug that supports saved filters to the
// form keys it persists.
var filterPages = map[string][]string{
	"entries": entryFilterKeys,
}

// handleFilters loads or stores the signed-in user's filter state for a
// page, scoped to the active company.
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	page := r.PathValue("page")
	keys, ok := filterPages[page]
	if !ok {
		NotFoundError("Página desconocida").Write(w)
		return
	}

	user, ok := userFromContext(r.Context())
	if !ok {
		ForbiddenError("Sesión no válida").Write(w)
		return
	}
	company, err := s.activeCompany(r)
	if err != nil {
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.loadFilter(w, r, user.ID, company.ID, page)
	case http.MethodPost:
		s.storeFilter(w, r, user.ID, company.ID, page, keys)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) loadFilter(w http.ResponseWriter, r *http.Request, userID, companyID int64, page string) {
	saved, err := s.storage.GetFilter(r.Context(), userID, companyID, page)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Load filter error",
			log.FieldError, err, log.FieldUserID, userID, "page", page)
		InternalServerError("No se pudo cargar el filtro").Write(w)
		return
	}
	if saved == "" {
		saved = "{}"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(saved))
}

func (s *Server) storeFilter(w http.ResponseWriter, r *http.Request, userID, companyID int64, page string, keys []string) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}

	state := make(map[string]string)
	for _, k := range keys {
		if v := sanitizeInput(r.Form.Get(k)); v != "" {
			state[k] = v
		}
	}
	payload, err := json.Marshal(state)
	if err != nil {
		InternalServerError("No se pudo guardar el filtro").Write(w)
		return
	}

	if err := s.storage.UpsertFilter(r.Context(), userID, companyID, page, string(payload)); err != nil {
		s.logger.ErrorContext(r.Context(), "Save filter error",
			log.FieldError, err, log.FieldUserID, userID, "page", page)
		InternalServerError("No se pudo guardar el filtro").Write(w)
		return
	}

	if !isHTMX(r) {
		target := "/" + page
		if q := filterQuery(state); q != "" {
			target += "?" + q
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		TriggerSuccessNotification("Filtro guardado").
		BodyHTML(`<div class="success">Filtro guardado</div>`).
		Write(w)
}

func filterQuery(state map[string]string) string {
	values := url.Values{}
	for k, v := range state {
		values.Set(k, v)
	}
	return values.Encode()
}
