package http

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCashFlowPage(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)
	postTestEntry(t, srv, cookie, "Cobro de marzo")

	rr := doRequest(srv, http.MethodGet, "/cashflow?from=2026-01&to=2026-06&opening=500,00", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Saldo inicial")
	assert.Contains(t, body, "Enero 2026")
	assert.Contains(t, body, "Marzo 2026")
	assert.Contains(t, body, "Junio 2026")
	// The March entry moves 150 through both sides, so the net is zero
	// and the running balance stays at the opening.
	assert.Contains(t, body, "$150,00")
	assert.Contains(t, body, "$500,00")
}

func TestCashFlowRejectsBadRange(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	rr := doRequest(srv, http.MethodGet, "/cashflow?from=2026-05&to=2026-01", nil, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "La fecha de inicio debe ser anterior a la de fin")

	rr = doRequest(srv, http.MethodGet, "/cashflow?from=mayo", nil, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Fecha no válida")
}

func TestCashFlowIncludesBudgets(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)
	createTestBudget(t, srv, cookie, "Alquileres")

	// The 300 budget on an expense account amortizes to 100 out per month.
	rr := doRequest(srv, http.MethodGet, "/cashflow?from=2026-01&to=2026-03", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "$100,00")
	assert.Contains(t, body, "-$300,00")
	assert.Contains(t, body, "$300,00")
}

func TestCashFlowChart(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)

	rr := doRequest(srv, http.MethodGet, "/ui/cashflow-chart?from=2026-01&to=2026-03", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "cashflow_projection")
	assert.Contains(t, rr.Body.String(), "Flujo de caja")

	rr = doRequest(srv, http.MethodGet, "/ui/cashflow-chart?from=mayo", nil, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Parámetros no válidos")
}

func TestExportCashFlowCSV(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)
	postTestEntry(t, srv, cookie, "Movimiento de marzo")

	rr := doRequest(srv, http.MethodGet, "/export/cashflow.csv?from=2026-03&to=2026-03", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "flujo_caja.csv")

	body := rr.Body.String()
	assert.Contains(t, body, "year,month,inflows,outflows,net,balance")
	assert.Contains(t, body, "2026,3,150.00,150.00,0.00,0.00")
}

func TestExportAccountsCSV(t *testing.T) {
	srv := newTestServer(t)
	cookie := adminSession(t, srv)
	rr := doRequest(srv, http.MethodPost, "/accounts/seed", url.Values{}, cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(srv, http.MethodGet, "/export/accounts.csv", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "plan_contable.csv")

	body := rr.Body.String()
	assert.Contains(t, body, "code,name,active")
	assert.Contains(t, body, "100-100-100-000,Caja general,true")
}
