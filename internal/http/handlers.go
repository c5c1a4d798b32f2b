package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"cuentas/internal/core"
	"cuentas/internal/log"

	"github.com/shopspring/decimal"
)

// handleHealth performs a basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.startedAt).String(),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// handleReady performs a readiness check with dependency verification.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.storage.Ping(ctx); err != nil {
		checks["database"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	checks["cache"] = map[string]interface{}{
		"overview_entries": s.overviewCache.Size(),
		"status":           "ok",
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(response)
}

// handleMetrics provides application and security metrics in plain text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.detector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	entriesCreated := atomic.LoadInt64(&s.appMetrics.entriesCreated)
	entriesPosted := atomic.LoadInt64(&s.appMetrics.entriesPosted)
	entriesVoided := atomic.LoadInt64(&s.appMetrics.entriesVoided)
	cacheHits := atomic.LoadInt64(&s.appMetrics.cacheHits)
	cacheMisses := atomic.LoadInt64(&s.appMetrics.cacheMisses)
	uptime := time.Since(s.appMetrics.startedAt)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP journal_entries_created_total Total draft entries created\n")
	fmt.Fprintf(w, "# TYPE journal_entries_created_total counter\n")
	fmt.Fprintf(w, "journal_entries_created_total %d\n\n", entriesCreated)

	fmt.Fprintf(w, "# HELP journal_entries_posted_total Total entries posted\n")
	fmt.Fprintf(w, "# TYPE journal_entries_posted_total counter\n")
	fmt.Fprintf(w, "journal_entries_posted_total %d\n\n", entriesPosted)

	fmt.Fprintf(w, "# HELP journal_entries_voided_total Total entries voided\n")
	fmt.Fprintf(w, "# TYPE journal_entries_voided_total counter\n")
	fmt.Fprintf(w, "journal_entries_voided_total %d\n\n", entriesVoided)

	fmt.Fprintf(w, "# HELP cache_hits_total Total cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total %d\n\n", cacheHits)

	fmt.Fprintf(w, "# HELP cache_misses_total Total cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total %d\n\n", cacheMisses)

	fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=\"overview\"} %d\n\n", s.overviewCache.Size())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.rateLimiter.ActiveClients())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", uptime.Seconds())
}

// handleDashboard renders the landing page; the overview section loads
// itself through /ui/month-overview.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	pc, err := s.pageContext(r, "dashboard")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Dashboard context error", log.FieldError, err)
		http.Error(w, "No hay empresas configuradas", http.StatusInternalServerError)
		return
	}

	params := ParseMonthParams(r.URL.Query())
	data := struct {
		pageContext
		Year  int
		Month int
	}{pc, params.Year, params.Month}

	s.render(w, r, "dashboard.html", data)
}

// overviewRow is one account bar of the month overview partial.
type overviewRow struct {
	Code   string
	Name   string
	Amount string
	Width  int
}

// handleMonthOverview renders the monthly overview partial.
func (s *Server) handleMonthOverview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	company, err := s.activeCompany(r)
	if err != nil {
		_, _ = w.Write([]byte(`<section id="month-overview" class="month-overview"><div class="placeholder">No hay empresas configuradas</div></section>`))
		return
	}

	now := time.Now()
	params := ParseMonthParams(r.URL.Query())
	if params.Month < 1 || params.Month > 12 {
		s.logger.WarnContext(r.Context(), "Invalid month parameter",
			log.FieldYear, params.Year,
			log.FieldMonth, params.Month,
			"corrected_to", int(now.Month()))
		params.Month = int(now.Month())
	}

	ov, err := s.getOverview(r.Context(), company.ID, params.Year, params.Month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Month overview error",
			log.FieldError, err,
			log.FieldCompanyID, company.ID,
			log.FieldYear, params.Year,
			log.FieldMonth, params.Month)
		_, _ = w.Write([]byte(`<section id="month-overview" class="month-overview"><div class="placeholder">Error cargando el resumen</div></section>`))
		return
	}

	// Compute the widest account for progress scaling.
	maxAmount := decimal.Zero
	for _, a := range ov.TopAccounts {
		if a.Amount.GreaterThan(maxAmount) {
			maxAmount = a.Amount
		}
	}

	data := struct {
		Year      int
		Month     int
		MonthName string
		Posted    int
		Drafts    int
		Inflows   string
		Outflows  string
		Net       string
		Rows      []overviewRow
	}{
		Year:      ov.Year,
		Month:     ov.Month,
		MonthName: monthName(ov.Month),
		Posted:    ov.Posted,
		Drafts:    ov.Drafts,
		Inflows:   core.FormatAmount(ov.Inflows),
		Outflows:  core.FormatAmount(ov.Outflows),
		Net:       core.FormatAmount(ov.Inflows.Sub(ov.Outflows)),
	}
	for _, a := range ov.TopAccounts {
		width := 0
		if maxAmount.IsPositive() && a.Amount.IsPositive() {
			width = int(a.Amount.Mul(decimal.NewFromInt(100)).Div(maxAmount).Round(0).IntPart())
			if width > 0 && width < 2 { // ensure visibility for very small values
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		data.Rows = append(data.Rows, overviewRow{
			Code:   string(a.Code),
			Name:   a.Name,
			Amount: core.FormatAmount(a.Amount),
			Width:  width,
		})
	}

	if err := s.templates.ExecuteTemplate(w, "month_overview.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution error",
			log.FieldError, err,
			"template", "month_overview.html",
			log.FieldYear, params.Year,
			log.FieldMonth, params.Month)
		_, _ = w.Write([]byte(`<section id="month-overview" class="month-overview"><div class="placeholder">Error mostrando el resumen</div></section>`))
		return
	}
}
