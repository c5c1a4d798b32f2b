package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"cuentas/internal/core"
	"cuentas/internal/log"
	"cuentas/internal/storage"
)

const (
	sessionCookie = "cuentas_session"
	companyCookie = "cuentas_company"
)

type contextKey string

const userContextKey contextKey = "user"

// userFromContext returns the session user resolved by secured().
func userFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userContextKey).(core.User)
	return u, ok
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirectToLogin sends browsers to the login page; htmx requests get an
// HX-Redirect so the partial swap becomes a full navigation.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// secured resolves the session cookie into a user and stores it in the
// request context. Requests without a valid session go to /login.
func (s *Server) secured(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value == "" {
			redirectToLogin(w, r)
			return
		}

		user, err := s.storage.GetSessionUser(r.Context(), c.Value)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				s.logger.ErrorContext(r.Context(), "Session lookup failed",
					log.FieldError, err,
					log.FieldComponent, log.ComponentAuth)
			}
			clearCookie(w, sessionCookie)
			redirectToLogin(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// adminOnly wraps secured with an admin-role check.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return s.secured(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userFromContext(r.Context())
		if user.Role != core.RoleAdmin {
			s.logger.WarnContext(r.Context(), "Admin route denied",
				log.FieldUserID, user.ID,
				log.FieldPath, r.URL.Path,
				log.FieldComponent, log.ComponentAuth)
			ForbiddenError("Permisos insuficientes").Write(w)
			return
		}
		next(w, r)
	})
}

// requireWriter rejects viewers on mutating branches. Returns the user
// and whether the request may proceed.
func (s *Server) requireWriter(w http.ResponseWriter, r *http.Request) (core.User, bool) {
	user, ok := userFromContext(r.Context())
	if !ok || !user.Role.CanWrite() {
		s.logger.WarnContext(r.Context(), "Write denied for role",
			log.FieldUserID, user.ID,
			"role", user.Role,
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentAuth)
		ForbiddenError("Permisos insuficientes").Write(w)
		return core.User{}, false
	}
	return user, true
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleLogin renders the login page on GET and checks credentials on
// POST, issuing the session cookie on success.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "login.html", nil)
	case http.MethodPost:
		if resp := ParseFormOrFail(r); resp != nil {
			resp.Write(w)
			return
		}
		email := sanitizeInput(r.Form.Get("email"))
		password := r.Form.Get("password")

		user, err := s.storage.Authenticate(r.Context(), email, password)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidCredentials) {
				ValidationError(err).Write(w)
				return
			}
			s.logger.ErrorContext(r.Context(), "Authentication failed",
				log.FieldError, err,
				log.FieldComponent, log.ComponentAuth)
			InternalServerError("Error de autenticación").Write(w)
			return
		}

		token, err := s.storage.CreateSession(r.Context(), user.ID, s.sessionTTL)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Session creation failed",
				log.FieldError, err,
				log.FieldUserID, user.ID,
				log.FieldComponent, log.ComponentAuth)
			InternalServerError("Error de autenticación").Write(w)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    token,
			Path:     "/",
			MaxAge:   int(s.sessionTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		s.logger.InfoContext(r.Context(), "User logged in",
			log.FieldUserID, user.ID,
			log.FieldComponent, log.ComponentAuth)

		if isHTMX(r) {
			NewHTMXResponse().Header("HX-Redirect", "/").Write(w)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		if err := s.storage.DeleteSession(r.Context(), c.Value); err != nil {
			s.logger.ErrorContext(r.Context(), "Session delete failed",
				log.FieldError, err,
				log.FieldComponent, log.ComponentAuth)
		}
	}
	clearCookie(w, sessionCookie)

	if isHTMX(r) {
		NewHTMXResponse().Header("HX-Redirect", "/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// activeCompany resolves the company cookie, falling back to the first
// active company when the cookie is absent or stale.
func (s *Server) activeCompany(r *http.Request) (core.Company, error) {
	if c, err := r.Cookie(companyCookie); err == nil {
		if id, err := strconv.ParseInt(c.Value, 10, 64); err == nil {
			if company, err := s.storage.GetCompany(r.Context(), id); err == nil && company.Active {
				return company, nil
			}
		}
	}

	companies, err := s.storage.ListCompanies(r.Context())
	if err != nil {
		return core.Company{}, err
	}
	for _, c := range companies {
		if c.Active {
			return c, nil
		}
	}
	return core.Company{}, storage.ErrNotFound
}

// handleSwitchCompany changes the active company cookie and asks the
// client for a full refresh.
func (s *Server) handleSwitchCompany(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id, err := strconv.ParseInt(strings.TrimSpace(r.Form.Get("company_id")), 10, 64)
	if err != nil {
		BadRequestError("Empresa no válida").Write(w)
		return
	}
	company, err := s.storage.GetCompany(r.Context(), id)
	if err != nil {
		NotFoundError("Empresa no encontrada").Write(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     companyCookie,
		Value:    strconv.FormatInt(company.ID, 10),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	s.logger.InfoContext(r.Context(), "Active company switched",
		log.FieldCompanyID, company.ID,
		log.FieldComponent, log.ComponentAuth)

	if isHTMX(r) {
		NewHTMXResponse().Header("HX-Refresh", "true").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
