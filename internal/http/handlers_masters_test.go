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
)

func TestSeedChartOfAccounts(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	rr := doRequest(srv, http.MethodPost, "/accounts/seed", url.Values{}, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Plan contable cargado")

	rr = doRequest(srv, http.MethodGet, "/accounts", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Caja general")

	// Seeding twice only reports what was actually new.
	rr = doRequest(srv, http.MethodPost, "/accounts/seed", url.Values{}, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "0 cuentas nuevas")
}

func TestCreateAccount(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	form := url.Values{
		"code": {"700-100-000-000"},
		"name": {"Ventas de servicios"},
	}
	rr := doRequest(srv, http.MethodPost, "/accounts", form, cookie)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), "Cuenta 700-100-000-000 creada")

	rr = doRequest(srv, http.MethodPost, "/accounts", form, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Código duplicado")

	form.Set("code", "700")
	rr = doRequest(srv, http.MethodPost, "/accounts", form, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Cuenta no válida")
}

func TestUpdateAccount(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	rr := doRequest(srv, http.MethodPost, "/accounts", url.Values{
		"code": {"700-100-000-000"},
		"name": {"Ventas de servicios"},
	}, cookie)
	require.Equal(t, http.StatusCreated, rr.Code)

	accounts, err := srv.storage.ListAccounts(context.Background(), testCompanyID(t, srv), false)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	path := fmt.Sprintf("/accounts/%d", accounts[0].ID)

	// Checkbox absent means deactivate.
	rr = doRequest(srv, http.MethodPut, path, url.Values{"name": {"Ventas nacionales"}}, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Cuenta actualizada")

	active, err := srv.storage.ListAccounts(context.Background(), testCompanyID(t, srv), true)
	require.NoError(t, err)
	assert.Empty(t, active)

	rr = doRequest(srv, http.MethodPut, path, url.Values{
		"name":   {"Ventas nacionales"},
		"active": {"1"},
	}, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(srv, http.MethodPut, path, url.Values{"name": {""}}, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "El nombre es obligatorio")

	rr = doRequest(srv, http.MethodGet, path, nil, cookie)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestThirdPartyLifecycle(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	form := url.Values{
		"code":   {"PROV1"},
		"name":   {"Proveedora Uno SL"},
		"tax_id": {"B12345678"},
		"kind":   {"supplier"},
		"email":  {"facturas@provuno.es"},
	}
	rr := doRequest(srv, http.MethodPost, "/third-parties", form, cookie)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), "Tercero PROV1 creado")

	rr = doRequest(srv, http.MethodPost, "/third-parties", form, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Código duplicado")

	bad := url.Values{"code": {"CLI1"}, "name": {"Cliente Uno"}, "email": {"sin-arroba"}}
	rr = doRequest(srv, http.MethodPost, "/third-parties", bad, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Correo no válido")

	parties, err := srv.storage.ListThirdParties(context.Background(), testCompanyID(t, srv), "")
	require.NoError(t, err)
	require.Len(t, parties, 1)
	path := fmt.Sprintf("/third-parties/%d", parties[0].ID)

	// Delete deactivates instead of removing, entries may reference it.
	rr = doRequest(srv, http.MethodDelete, path, nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "Tercero desactivado")

	tp, err := srv.storage.GetThirdParty(context.Background(), parties[0].ID)
	require.NoError(t, err)
	assert.False(t, tp.Active)

	rr = doRequest(srv, http.MethodPut, path, url.Values{
		"name":   {"Proveedora Uno SL"},
		"kind":   {"supplier"},
		"active": {"1"},
	}, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Tercero actualizado")

	tp, err = srv.storage.GetThirdParty(context.Background(), parties[0].ID)
	require.NoError(t, err)
	assert.True(t, tp.Active)

	rr = doRequest(srv, http.MethodDelete, "/third-parties/999", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Tercero no encontrado")
}

func TestCostCenterReorder(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	for _, c := range []struct{ code, name string }{
		{"VEN", "Ventas"},
		{"ADM", "Administración"},
	} {
		rr := doRequest(srv, http.MethodPost, "/cost-centers", url.Values{
			"code": {c.code},
			"name": {c.name},
		}, cookie)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	centers, err := srv.storage.ListCostCenters(context.Background(), testCompanyID(t, srv))
	require.NoError(t, err)
	require.Len(t, centers, 2)
	require.Equal(t, "VEN", centers[0].Code)

	form := url.Values{"ids": {
		strconv.FormatInt(centers[1].ID, 10),
		strconv.FormatInt(centers[0].ID, 10),
	}}
	rr := doRequest(srv, http.MethodPost, "/cost-centers/reorder", form, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "costcenter:reordered")

	centers, err = srv.storage.ListCostCenters(context.Background(), testCompanyID(t, srv))
	require.NoError(t, err)
	assert.Equal(t, "ADM", centers[0].Code)
	assert.Equal(t, "VEN", centers[1].Code)

	rr = doRequest(srv, http.MethodPost, "/cost-centers/reorder", url.Values{}, cookie)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Lista de orden vacía")
}

func TestUnitLifecycle(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	rr := doRequest(srv, http.MethodPost, "/units", url.Values{
		"code":   {"kg"},
		"name":   {"Kilogramo"},
		"symbol": {"kg"},
	}, cookie)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), "Unidad kg creada")

	rr = doRequest(srv, http.MethodPost, "/units", url.Values{"name": {"Sin código"}}, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "El código es obligatorio")

	rr = doRequest(srv, http.MethodDelete, "/units/999", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Unidad no encontrada")

	units, err := srv.storage.ListUnits(context.Background(), testCompanyID(t, srv))
	require.NoError(t, err)
	require.Len(t, units, 1)

	rr = doRequest(srv, http.MethodDelete, fmt.Sprintf("/units/%d", units[0].ID), nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), "unit:deleted")
}

func TestDeleteUnitInUse(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	rr := doRequest(srv, http.MethodPost, "/units", url.Values{
		"code": {"h"},
		"name": {"Hora"},
	}, cookie)
	require.Equal(t, http.StatusCreated, rr.Code)

	units, err := srv.storage.ListUnits(context.Background(), testCompanyID(t, srv))
	require.NoError(t, err)
	require.Len(t, units, 1)
	unitID := strconv.FormatInt(units[0].ID, 10)

	form := url.Values{
		"name":             {"Consultoría"},
		"start_date":       {"2026-01-01"},
		"end_date":         {"2026-12-31"},
		"line_description": {"Horas de asesoría"},
		"account":          {"620-300-000-000"},
		"quantity":         {"10"},
		"unit_price":       {"50,00"},
		"unit":             {unitID},
		"frequency":        {"monthly"},
	}
	rr = doRequest(srv, http.MethodPost, "/budgets", form, cookie)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doRequest(srv, http.MethodDelete, "/units/"+unitID, nil, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "En uso por otros registros")
}
