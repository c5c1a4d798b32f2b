package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuentas/internal/core"
)

func adminUserID(t *testing.T, srv *Server) int64 {
	t.Helper()
	users, err := srv.storage.ListUsers(context.Background())
	require.NoError(t, err)
	for _, u := range users {
		if u.Email == testAdminEmail {
			return u.ID
		}
	}
	t.Fatal("admin user not found")
	return 0
}

func TestUsersPageAdminOnly(t *testing.T) {
	srv := newTestServer(t)

	viewer := newTestUser(t, srv, "lectura@acme.es", core.RoleViewer)
	cookie := login(t, srv, viewer.Email, "clave1234")
	rr := doRequest(srv, http.MethodGet, "/users", nil, cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "Permisos insuficientes")

	cookie = adminSession(t, srv)
	rr = doRequest(srv, http.MethodGet, "/users", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), testAdminEmail)
	assert.Contains(t, rr.Body.String(), "lectura@acme.es")
}

func TestCreateUser(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	form := url.Values{
		"email":    {"contable@acme.es"},
		"name":     {"Contable Nueva"},
		"role":     {"accountant"},
		"password": {"clave1234"},
	}
	rr := doRequest(srv, http.MethodPost, "/users", form, cookie)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), "Usuario creado")
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "contable@acme.es")

	// The new account can sign in right away.
	login(t, srv, "contable@acme.es", "clave1234")

	rr = doRequest(srv, http.MethodPost, "/users", form, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "El correo ya está registrado")
}

func TestCreateUserValidation(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	tests := []struct {
		name    string
		form    url.Values
		message string
	}{
		{
			name: "short password",
			form: url.Values{
				"email": {"u1@acme.es"}, "name": {"U"}, "role": {"viewer"}, "password": {"corta"},
			},
			message: "La contraseña debe tener al menos 8 caracteres",
		},
		{
			name: "invalid email",
			form: url.Values{
				"email": {"sin-arroba"}, "name": {"U"}, "role": {"viewer"}, "password": {"clave1234"},
			},
			message: "Correo no válido",
		},
		{
			name: "unknown role",
			form: url.Values{
				"email": {"u2@acme.es"}, "name": {"U"}, "role": {"gerente"}, "password": {"clave1234"},
			},
			message: "Rol no válido",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(srv, http.MethodPost, "/users", tt.form, cookie)
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.message)
		})
	}
}

func TestUpdateUserSelfLockoutGuard(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)
	selfPath := fmt.Sprintf("/users/%d", adminUserID(t, srv))

	rr := doRequest(srv, http.MethodPut, selfPath, url.Values{"role": {"viewer"}}, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "No puedes quitarte tu propio acceso de administrador")

	rr = doRequest(srv, http.MethodPut, selfPath, url.Values{"active_present": {"1"}}, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "No puedes quitarte tu propio acceso de administrador")

	// Renaming yourself while staying an active admin is fine.
	rr = doRequest(srv, http.MethodPut, selfPath, url.Values{"name": {"Administradora"}}, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Usuario actualizado")
}

func TestUpdateOtherUser(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)
	other := newTestUser(t, srv, "temporal@acme.es", core.RoleAccountant)

	rr := doRequest(srv, http.MethodPut, fmt.Sprintf("/users/%d", other.ID), url.Values{
		"role":           {"viewer"},
		"active_present": {"1"},
	}, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)

	updated, err := srv.storage.GetUser(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RoleViewer, updated.Role)
	assert.False(t, updated.Active)

	rr = doRequest(srv, http.MethodPut, "/users/999", url.Values{"name": {"Nadie"}}, cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Usuario no encontrado")
}

func TestSetUserPassword(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)
	other := newTestUser(t, srv, "rotada@acme.es", core.RoleViewer)
	path := fmt.Sprintf("/users/%d/password", other.ID)

	rr := doRequest(srv, http.MethodPost, path, url.Values{"password": {"corta"}}, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "al menos 8 caracteres")

	rr = doRequest(srv, http.MethodPost, path, url.Values{"password": {"renovada99"}}, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Contraseña actualizada")

	login(t, srv, other.Email, "renovada99")
}

func TestSavedFilters(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	rr := doRequest(srv, http.MethodGet, "/filters/entries", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "{}", rr.Body.String())

	form := url.Values{"status": {"posted"}, "q": {"luz"}}
	req := httptest.NewRequest(http.MethodPost, "/filters/entries", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	req.AddCookie(cookie)
	hrr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(hrr, req)
	assert.Equal(t, http.StatusOK, hrr.Code)
	assert.Contains(t, hrr.Body.String(), "Filtro guardado")

	rr = doRequest(srv, http.MethodGet, "/filters/entries", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"posted"`)
	assert.Contains(t, rr.Body.String(), `"q":"luz"`)

	// Plain form posts land back on the filtered page.
	rr = doRequest(srv, http.MethodPost, "/filters/entries", url.Values{"status": {"draft"}}, cookie)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/entries?status=draft", rr.Header().Get("Location"))

	rr = doRequest(srv, http.MethodGet, "/filters/cashflow", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Página desconocida")
}
