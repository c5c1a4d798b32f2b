package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cuentas/internal/core"
	"cuentas/internal/export"
	"cuentas/internal/log"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/shopspring/decimal"
)

// parseMonthValue parses a YYYY-MM month input.
func parseMonthValue(s string) (int, int, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, core.ErrInvalidDate
	}
	return t.Year(), int(t.Month()), nil
}

// parseOpening parses the opening balance, which unlike line amounts may
// be negative.
func parseOpening(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	d, err := core.ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if neg {
		return d.Neg(), nil
	}
	return d, nil
}

// cashFlowParams reads the projection window and opening balance from the
// query, defaulting to the current calendar year with a zero opening.
func cashFlowParams(q url.Values) (from, to core.Date, opening decimal.Decimal, err error) {
	now := time.Now()
	fromYear, fromMonth := now.Year(), 1
	toYear, toMonth := now.Year(), 12

	if v := q.Get("from"); v != "" {
		if fromYear, fromMonth, err = parseMonthValue(v); err != nil {
			return core.Date{}, core.Date{}, decimal.Zero, err
		}
	}
	if v := q.Get("to"); v != "" {
		if toYear, toMonth, err = parseMonthValue(v); err != nil {
			return core.Date{}, core.Date{}, decimal.Zero, err
		}
	}
	if opening, err = parseOpening(q.Get("opening")); err != nil {
		return core.Date{}, core.Date{}, decimal.Zero, err
	}

	from = core.NewDate(fromYear, fromMonth, 1)
	to = core.NewDate(toYear, toMonth, core.DaysInMonth(toYear, toMonth))
	if to.Before(from.Time) {
		return core.Date{}, core.Date{}, decimal.Zero, core.ErrInvalidRange
	}
	return from, to, opening, nil
}

// cashFlowRowView is one formatted row of the projection table.
type cashFlowRowView struct {
	Label       string
	Inflows     string
	Outflows    string
	Net         string
	Balance     string
	NetNegative bool
}

func cashFlowRowsView(rows []core.CashFlowRow) []cashFlowRowView {
	views := make([]cashFlowRowView, 0, len(rows))
	for _, row := range rows {
		views = append(views, cashFlowRowView{
			Label:       fmt.Sprintf("%s %d", monthName(row.Month), row.Year),
			Inflows:     core.FormatAmount(row.Inflows),
			Outflows:    core.FormatAmount(row.Outflows),
			Net:         core.FormatAmount(row.Net),
			Balance:     core.FormatAmount(row.Balance),
			NetNegative: row.Net.Sign() < 0,
		})
	}
	return views
}

// handleCashFlow renders the cash-flow projection page: posted entries
// plus amortized active budgets, month by month with a running balance.
func (s *Server) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	pc, err := s.pageContext(r, "cashflow")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Cash flow page context error", log.FieldError, err)
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	from, to, opening, err := cashFlowParams(q)
	if err != nil {
		ValidationError(err).Write(w)
		return
	}

	rows, err := s.budgets.ProjectCashFlow(r.Context(), pc.Company.ID, from, to, opening)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Cash flow projection error",
			log.FieldError, err, log.FieldCompanyID, pc.Company.ID)
		InternalServerError("No se pudo calcular la proyección").Write(w)
		return
	}

	totalIn, totalOut := decimal.Zero, decimal.Zero
	for _, row := range rows {
		totalIn = totalIn.Add(row.Inflows)
		totalOut = totalOut.Add(row.Outflows)
	}
	closing := opening
	if len(rows) > 0 {
		closing = rows[len(rows)-1].Balance
	}

	chartQuery := url.Values{}
	for _, k := range []string{"from", "to", "opening"} {
		if v := q.Get(k); v != "" {
			chartQuery.Set(k, v)
		}
	}

	data := struct {
		pageContext
		Rows          []cashFlowRowView
		FromParam     string
		ToParam       string
		OpeningParam  string
		Opening       string
		TotalInflows  string
		TotalOutflows string
		Closing       string
		ChartURL      string
		ExportURL     string
	}{
		pageContext:   pc,
		Rows:          cashFlowRowsView(rows),
		FromParam:     fmt.Sprintf("%04d-%02d", from.Year(), from.Month()),
		ToParam:       fmt.Sprintf("%04d-%02d", to.Year(), to.Month()),
		OpeningParam:  q.Get("opening"),
		Opening:       core.FormatAmount(opening),
		TotalInflows:  core.FormatAmount(totalIn),
		TotalOutflows: core.FormatAmount(totalOut),
		Closing:       core.FormatAmount(closing),
		ChartURL:      "/ui/cashflow-chart?" + chartQuery.Encode(),
		ExportURL:     "/export/cashflow.csv?" + chartQuery.Encode(),
	}
	s.render(w, r, "cashflow.html", data)
}

// handleCashFlowChart renders the projection as a line chart document,
// loaded into the page through an iframe.
func (s *Server) handleCashFlowChart(w http.ResponseWriter, r *http.Request) {
	company, err := s.activeCompany(r)
	if err != nil {
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
		return
	}
	from, to, opening, err := cashFlowParams(r.URL.Query())
	if err != nil {
		http.Error(w, "Parámetros no válidos", http.StatusUnprocessableEntity)
		return
	}

	rows, err := s.budgets.ProjectCashFlow(r.Context(), company.ID, from, to, opening)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Cash flow chart error",
			log.FieldError, err, log.FieldCompanyID, company.ID)
		http.Error(w, "No se pudo calcular la proyección", http.StatusInternalServerError)
		return
	}

	xAxis := make([]string, 0, len(rows))
	inflows := make([]opts.LineData, 0, len(rows))
	outflows := make([]opts.LineData, 0, len(rows))
	balance := make([]opts.LineData, 0, len(rows))
	for _, row := range rows {
		xAxis = append(xAxis, fmt.Sprintf("%s %d", monthName(row.Month)[:3], row.Year))
		inflows = append(inflows, opts.LineData{Value: row.Inflows.InexactFloat64()})
		outflows = append(outflows, opts.LineData{Value: row.Outflows.InexactFloat64()})
		balance = append(balance, opts.LineData{Value: row.Balance.InexactFloat64()})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:   "100%",
			Height:  "320px",
			ChartID: "cashflow_projection",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: "Flujo de caja",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{
				Rotate:      35,
				HideOverlap: opts.Bool(true),
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
		}),
	)

	line.SetXAxis(xAxis).
		AddSeries("Ingresos", inflows).
		AddSeries("Egresos", outflows).
		AddSeries("Saldo", balance).
		SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{
				Smooth:     opts.Bool(true),
				ShowSymbol: opts.Bool(true),
			}),
		)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(w); err != nil {
		s.logger.ErrorContext(r.Context(), "Chart render error",
			log.FieldError, err, log.FieldCompanyID, company.ID)
	}
}

// handleExportCashFlow streams the projection as CSV.
func (s *Server) handleExportCashFlow(w http.ResponseWriter, r *http.Request) {
	company, err := s.activeCompany(r)
	if err != nil {
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
		return
	}
	from, to, opening, err := cashFlowParams(r.URL.Query())
	if err != nil {
		http.Error(w, "Parámetros no válidos", http.StatusUnprocessableEntity)
		return
	}

	rows, err := s.budgets.ProjectCashFlow(r.Context(), company.ID, from, to, opening)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Export cash flow error",
			log.FieldError, err, log.FieldCompanyID, company.ID)
		http.Error(w, "No se pudo calcular la proyección", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="flujo_caja.csv"`)
	if err := export.WriteCashFlow(w, rows); err != nil {
		s.logger.ErrorContext(r.Context(), "Export cash flow write error",
			log.FieldError, err, log.FieldCompanyID, company.ID)
	}
}

// handleExportAccounts streams the chart of accounts as CSV.
func (s *Server) handleExportAccounts(w http.ResponseWriter, r *http.Request) {
	company, err := s.activeCompany(r)
	if err != nil {
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
		return
	}

	accounts, err := s.storage.ListAccounts(r.Context(), company.ID, false)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Export accounts error",
			log.FieldError, err, log.FieldCompanyID, company.ID)
		http.Error(w, "No se pudo exportar el plan contable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="plan_contable.csv"`)
	if err := export.WriteAccounts(w, accounts); err != nil {
		s.logger.ErrorContext(r.Context(), "Export accounts write error",
			log.FieldError, err, log.FieldCompanyID, company.ID)
	}
}
