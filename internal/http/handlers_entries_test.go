package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuentas/internal/core"
	"cuentas/internal/storage"
)

// entryForm is a balanced two-line draft dated March 2026.
func entryForm(description string) url.Values {
	return url.Values{
		"date":             {"2026-03-15"},
		"description":      {description},
		"account":          {"510-100-000-000", "110-505-000-000"},
		"line_description": {"", ""},
		"debit":            {"150,00", ""},
		"credit":           {"", "150,00"},
	}
}

func testCompanyID(t *testing.T, srv *Server) int64 {
	t.Helper()
	companies, err := srv.storage.ListCompanies(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, companies)
	return companies[0].ID
}

func lastEntryID(t *testing.T, srv *Server) int64 {
	t.Helper()
	entries, err := srv.storage.ListEntries(context.Background(), storage.EntryFilter{
		CompanyID: testCompanyID(t, srv),
		Limit:     1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return entries[0].ID
}

// postTestEntry creates and posts a balanced draft through the handlers.
func postTestEntry(t *testing.T, srv *Server, cookie *http.Cookie, description string) core.JournalEntry {
	t.Helper()
	rr := doRequest(srv, http.MethodPost, "/entries", entryForm(description), cookie)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	id := lastEntryID(t, srv)
	rr = doRequest(srv, http.MethodPost, fmt.Sprintf("/entries/%d/post", id), url.Values{}, cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	e, err := srv.storage.GetEntry(context.Background(), id)
	require.NoError(t, err)
	return e
}

func TestCreateDraftEntry(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	rr := doRequest(srv, http.MethodPost, "/entries", entryForm("Compra de insumos"), cookie)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), "Borrador")
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "entry:created")
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "form:reset")

	e, err := srv.storage.GetEntry(context.Background(), lastEntryID(t, srv))
	require.NoError(t, err)
	assert.Equal(t, core.EntryDraft, e.Status)
	assert.Empty(t, e.Reference)
	assert.Len(t, e.Lines, 2)
}

func TestCreateEntryValidation(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	tests := []struct {
		name    string
		mutate  func(url.Values)
		message string
	}{
		{
			name:    "missing description",
			mutate:  func(f url.Values) { f.Set("description", "") },
			message: "La descripción es obligatoria",
		},
		{
			name:    "malformed account code",
			mutate:  func(f url.Values) { f["account"] = []string{"51", "110-505-000-000"} },
			message: "Cuenta no válida",
		},
		{
			name:    "negative amount",
			mutate:  func(f url.Values) { f["debit"] = []string{"-3", ""} },
			message: "Importe no válido",
		},
		{
			name:    "bad date",
			mutate:  func(f url.Values) { f.Set("date", "15/03/2026") },
			message: "Fecha no válida",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := entryForm("Asiento de prueba")
			tt.mutate(form)
			rr := doRequest(srv, http.MethodPost, "/entries", form, cookie)
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.message)
		})
	}
}

func TestEntryLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	rr := doRequest(srv, http.MethodPost, "/entries", entryForm("Factura luz"), cookie)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := lastEntryID(t, srv)
	path := fmt.Sprintf("/entries/%d", id)

	// Drafts are editable.
	edited := entryForm("Factura luz marzo")
	rr = doRequest(srv, http.MethodPut, path, edited, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "entry:updated")

	rr = doRequest(srv, http.MethodGet, path, nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Factura luz marzo")
	assert.Contains(t, rr.Body.String(), "Guardar cambios")

	// Posting assigns the yearly reference and freezes the entry.
	rr = doRequest(srv, http.MethodPost, path+"/post", url.Values{}, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "AST-2026-000001")
	assert.Contains(t, rr.Body.String(), "Contabilizado")
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "entry:posted")

	rr = doRequest(srv, http.MethodPut, path, edited, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "ya no es editable")

	// Voiding needs a reason.
	rr = doRequest(srv, http.MethodPost, path+"/void", url.Values{"reason": {""}}, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "motivo de anulación")

	rr = doRequest(srv, http.MethodPost, path+"/void", url.Values{"reason": {"Importe erróneo"}}, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Anulado")
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "entry:voided")

	// The voided entry stays readable for the audit trail.
	rr = doRequest(srv, http.MethodGet, path, nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Importe erróneo")
}

func TestPostUnbalancedEntryRejected(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	form := entryForm("Descuadrado")
	form["credit"] = []string{"", "99,00"}
	rr := doRequest(srv, http.MethodPost, "/entries", form, cookie)
	require.Equal(t, http.StatusCreated, rr.Code)

	id := lastEntryID(t, srv)
	rr = doRequest(srv, http.MethodPost, fmt.Sprintf("/entries/%d/post", id), url.Values{}, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "no está balanceado")
}

func TestDeleteDraft(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	rr := doRequest(srv, http.MethodPost, "/entries", entryForm("Para borrar"), cookie)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := lastEntryID(t, srv)
	path := fmt.Sprintf("/entries/%d", id)

	rr = doRequest(srv, http.MethodDelete, path, nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "entry:deleted")

	rr = doRequest(srv, http.MethodGet, path, nil, cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestViewerCannotWrite(t *testing.T) {
	srv := newTestServer(t)
	viewer := newTestUser(t, srv, "lectura@acme.es", core.RoleViewer)
	cookie := login(t, srv, viewer.Email, "clave1234")

	rr := doRequest(srv, http.MethodGet, "/entries", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(srv, http.MethodPost, "/entries", entryForm("No permitido"), cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "Permisos insuficientes")

	rr = doRequest(srv, http.MethodPost, "/entries/1/post", url.Values{}, cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAccountantCanWrite(t *testing.T) {
	srv := newTestServer(t)
	accountant := newTestUser(t, srv, "contable@acme.es", core.RoleAccountant)
	cookie := login(t, srv, accountant.Email, "clave1234")

	rr := doRequest(srv, http.MethodPost, "/entries", entryForm("Asiento del contable"), cookie)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = doRequest(srv, http.MethodGet, "/users", nil, cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestEntryRowsFilter(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	postTestEntry(t, srv, cookie, "Contabilizado marzo")
	rr := doRequest(srv, http.MethodPost, "/entries", entryForm("Borrador marzo"), cookie)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doRequest(srv, http.MethodGet, "/ui/entries/rows?status=draft", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Borrador marzo")
	assert.NotContains(t, rr.Body.String(), "Contabilizado marzo")

	rr = doRequest(srv, http.MethodGet, "/ui/entries/rows?q=inexistente", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Sin asientos para este filtro")
}

func TestBalancePreview(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	rr := doRequest(srv, http.MethodPost, "/ui/entries/balance", entryForm("x"), cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Cuadrado")
	assert.Contains(t, rr.Body.String(), "$150,00")

	form := entryForm("x")
	form["credit"] = []string{"", "120,00"}
	rr = doRequest(srv, http.MethodPost, "/ui/entries/balance", form, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Aún sin cuadrar")
	assert.Contains(t, rr.Body.String(), "$30,00")
}

func TestLineRowPartial(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	rr := doRequest(srv, http.MethodGet, "/ui/entries/line-row", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="account"`)
	assert.Contains(t, rr.Body.String(), `name="debit"`)
}

func TestExportEntriesCSV(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)
	posted := postTestEntry(t, srv, cookie, "Exportable")

	rr := doRequest(srv, http.MethodGet, "/export/entries.csv", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "asientos.csv")

	body := rr.Body.String()
	assert.Contains(t, body, "reference,date,status")
	assert.Contains(t, body, posted.Reference)
	assert.Contains(t, body, "Exportable")
}

func TestEntryHiddenFromOtherCompany(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)
	posted := postTestEntry(t, srv, cookie, "Solo de Acme")

	beta, err := srv.storage.CreateCompany(context.Background(), core.Company{
		Code: "BETA", Name: "Beta SL", Active: true,
	})
	require.NoError(t, err)
	betaCookie := &http.Cookie{Name: companyCookie, Value: strconv.FormatInt(beta.ID, 10)}

	rr := doRequest(srv, http.MethodGet, fmt.Sprintf("/entries/%d", posted.ID), nil, cookie, betaCookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
