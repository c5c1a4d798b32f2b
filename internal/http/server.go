package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"cuentas/internal/cache"
	"cuentas/internal/core"
	"cuentas/internal/log"
	"cuentas/internal/middleware/ratelimit"
	"cuentas/internal/middleware/security"
	"cuentas/internal/middleware/trace"
	"cuentas/internal/services"
	"cuentas/internal/storage"
	appweb "cuentas/web"
)

// Server carries the HTTP surface: routes, templates, the middleware
// chain and the month-overview cache. It embeds http.Server so the
// binaries can run and shut it down directly.
type Server struct {
	http.Server

	storage *storage.SQLiteRepository
	entries *services.EntryService
	budgets *services.BudgetService

	templates  *template.Template
	logger     *log.Logger
	structured *log.StructuredLogger

	traceMiddleware *trace.Middleware
	headers         *security.HeadersMiddleware
	detector        *security.Detector
	rateLimiter     *ratelimit.Limiter

	sessionTTL time.Duration

	overviewCache *cache.LRUCache[core.MonthOverview]
	cacheManager  *cache.Manager

	appMetrics appMetrics

	stopSessionCleanup chan struct{}
	shutdownOnce       sync.Once
}

// appMetrics are the process-local counters behind /metrics.
type appMetrics struct {
	startedAt      time.Time
	entriesCreated int64
	entriesPosted  int64
	entriesVoided  int64
	cacheHits      int64
	cacheMisses    int64
}

// NewServer configures routes, templates and middleware, returning a
// ready-to-run server. sessionTTL bounds login sessions; zero means 12h.
func NewServer(addr string, store *storage.SQLiteRepository, entries *services.EntryService, budgets *services.BudgetService, sessionTTL time.Duration) *Server {
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}

	logger := log.New(log.ConfigFromEnv(log.ComponentHTTP))
	detector := security.NewDetector()

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr: addr,
		},
		storage:    store,
		entries:    entries,
		budgets:    budgets,
		logger:     logger,
		structured: log.NewStructuredLogger(logger),

		traceMiddleware: trace.NewMiddleware(detector.ExtractClientIP, logger),
		headers:         security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		detector:        detector,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: 60,
			CleanupInterval:   5 * time.Minute,
		}),

		sessionTTL: sessionTTL,

		overviewCache: cache.NewLRUCache[core.MonthOverview](100, 5*time.Minute),
		cacheManager:  cache.NewManager(),

		appMetrics:         appMetrics{startedAt: time.Now()},
		stopSessionCleanup: make(chan struct{}),
	}

	s.cacheManager.Register(s.overviewCache)
	s.cacheManager.StartCleanup(10 * time.Minute)
	go s.startSessionCleanup()

	// Parse embedded templates at startup.
	t, err := template.New("cuentas").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	// Static assets (served from embedded FS).
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	// Probes and metrics stay outside the session wall.
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	// Auth.
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.secured(s.handleLogout))
	mux.HandleFunc("/company/switch", s.secured(s.handleSwitchCompany))

	// Pages.
	mux.HandleFunc("/{$}", s.secured(s.handleDashboard))
	mux.HandleFunc("/entries", s.secured(s.handleEntries))
	mux.HandleFunc("/entries/{id}", s.secured(s.handleEntryByID))
	mux.HandleFunc("/entries/{id}/post", s.secured(s.handlePostEntry))
	mux.HandleFunc("/entries/{id}/void", s.secured(s.handleVoidEntry))
	mux.HandleFunc("/accounts", s.secured(s.handleAccounts))
	mux.HandleFunc("/accounts/seed", s.secured(s.handleSeedChart))
	mux.HandleFunc("/accounts/{id}", s.secured(s.handleAccountByID))
	mux.HandleFunc("/third-parties", s.secured(s.handleThirdParties))
	mux.HandleFunc("/third-parties/{id}", s.secured(s.handleThirdPartyByID))
	mux.HandleFunc("/cost-centers", s.secured(s.handleCostCenters))
	mux.HandleFunc("/cost-centers/reorder", s.secured(s.handleReorderCostCenters))
	mux.HandleFunc("/cost-centers/{id}", s.secured(s.handleCostCenterByID))
	mux.HandleFunc("/units", s.secured(s.handleUnits))
	mux.HandleFunc("/units/{id}", s.secured(s.handleUnitByID))
	mux.HandleFunc("/budgets", s.secured(s.handleBudgets))
	mux.HandleFunc("/budgets/{id}", s.secured(s.handleBudgetByID))
	mux.HandleFunc("/schedules", s.secured(s.handleSchedules))
	mux.HandleFunc("/schedules/{id}", s.secured(s.handleScheduleByID))
	mux.HandleFunc("/cashflow", s.secured(s.handleCashFlow))
	mux.HandleFunc("/users", s.adminOnly(s.handleUsers))
	mux.HandleFunc("/users/{id}", s.adminOnly(s.handleUserByID))
	mux.HandleFunc("/users/{id}/password", s.adminOnly(s.handleUserPassword))
	mux.HandleFunc("/filters/{page}", s.secured(s.handleFilters))

	// UI partials (htmx).
	mux.HandleFunc("/ui/month-overview", s.secured(s.handleMonthOverview))
	mux.HandleFunc("/ui/entries/rows", s.secured(s.handleEntryRows))
	mux.HandleFunc("/ui/entries/balance", s.secured(s.handleBalancePreview))
	mux.HandleFunc("/ui/entries/line-row", s.secured(s.handleLineRow))
	mux.HandleFunc("/ui/budgets/{id}/amortization", s.secured(s.handleBudgetAmortization))
	mux.HandleFunc("/ui/cashflow-chart", s.secured(s.handleCashFlowChart))

	// CSV exports.
	mux.HandleFunc("/export/entries.csv", s.secured(s.handleExportEntries))
	mux.HandleFunc("/export/cashflow.csv", s.secured(s.handleExportCashFlow))
	mux.HandleFunc("/export/accounts.csv", s.secured(s.handleExportAccounts))

	s.Server.Handler = s.chain(mux)
	return s
}

// chain wraps the mux with the shared middleware, outermost first:
// trace, security headers, request-scoped logger carrying the trace
// request id, suspicious-request detection, write rate limiting.
func (s *Server) chain(next http.Handler) http.Handler {
	h := s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(next)
	h = s.detectSuspicious(h)
	h = log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(h)
	h = log.Middleware(s.logger)(h)
	h = s.headers.Middleware(h)
	h = s.traceMiddleware.Middleware(h)
	return h
}

// detectSuspicious logs and counts requests matching known scanner
// patterns without blocking them.
func (s *Server) detectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request detected",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

// startSessionCleanup drops expired session rows once an hour.
func (s *Server) startSessionCleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.storage.DeleteExpiredSessions(context.Background())
			if err != nil {
				s.logger.Error("Session cleanup failed", log.FieldError, err)
			} else if n > 0 {
				s.logger.Debug("Expired sessions removed", "count", n)
			}
		case <-s.stopSessionCleanup:
			return
		}
	}
}

// Shutdown stops the cleanup goroutines, the cache manager and the rate
// limiter, then shuts the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopSessionCleanup != nil {
			close(s.stopSessionCleanup)
		}
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"amount":    core.FormatAmount,
		"monthName": monthName,
		"months":    monthOptions,
	}
}

var spanishMonths = [...]string{"", "Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre"}

type monthOption struct {
	Num  int
	Name string
}

// monthOptions feeds month selectors in templates.
func monthOptions() []monthOption {
	options := make([]monthOption, 0, 12)
	for m := 1; m <= 12; m++ {
		options = append(options, monthOption{Num: m, Name: spanishMonths[m]})
	}
	return options
}

func monthName(m int) string {
	if m < 1 || m > 12 {
		return strconv.Itoa(m)
	}
	return spanishMonths[m]
}

// pageContext is the shared data every full page template receives for
// the navigation bar and company switcher.
type pageContext struct {
	User      core.User
	Company   core.Company
	Companies []core.Company
	Section   string
}

func (s *Server) pageContext(r *http.Request, section string) (pageContext, error) {
	user, _ := userFromContext(r.Context())
	company, err := s.activeCompany(r)
	if err != nil {
		return pageContext{}, err
	}
	companies, err := s.storage.ListCompanies(r.Context())
	if err != nil {
		return pageContext{}, err
	}
	return pageContext{User: user, Company: company, Companies: companies, Section: section}, nil
}

// render executes a page template, logging and answering 500 on failure.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate,
			"error_type", log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			"template", name,
			log.FieldPath, r.URL.Path)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) overviewKey(companyID int64, year, month int) string {
	return strconv.FormatInt(companyID, 10) + "-" + strconv.Itoa(year) + "-" + strconv.Itoa(month)
}

// getOverview serves the dashboard aggregates through the LRU cache.
func (s *Server) getOverview(ctx context.Context, companyID int64, year, month int) (core.MonthOverview, error) {
	key := s.overviewKey(companyID, year, month)
	if ov, found := s.overviewCache.Get(key); found {
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
		s.logger.DebugContext(ctx, "Overview cache hit", log.FieldCompanyID, companyID, log.FieldYear, year, log.FieldMonth, month)
		return ov, nil
	}
	atomic.AddInt64(&s.appMetrics.cacheMisses, 1)

	// Small timeout so a slow query cannot hang the partial.
	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	ov, err := s.storage.ReadMonthOverview(cctx, companyID, year, month)
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("read month overview (company=%d, year=%d, month=%d): %w", companyID, year, month, err)
	}

	s.overviewCache.Set(key, ov)
	return ov, nil
}

func (s *Server) invalidateOverview(companyID int64, year, month int) {
	s.overviewCache.Delete(s.overviewKey(companyID, year, month))
}
