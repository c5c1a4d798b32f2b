// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing HTMX responses.
// It provides a type-safe, fluent API for building HX-Trigger headers and
// consistent response formatting.

package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"cuentas/internal/core"
	"cuentas/internal/storage"
)

// HTMXResponseBuilder provides a fluent API for building HTMX responses.
// It encapsulates the construction of HX-Trigger headers and response bodies.
type HTMXResponseBuilder struct {
	triggers   map[string]interface{}
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewHTMXResponse creates a new response builder with default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]interface{}),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data interface{}) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerEntryCreated adds the entry:created trigger with year/month data.
func (b *HTMXResponseBuilder) TriggerEntryCreated(year, month int) *HTMXResponseBuilder {
	return b.Trigger("entry:created", map[string]int{"year": year, "month": month})
}

// TriggerEntryPosted adds the entry:posted trigger with the assigned reference.
func (b *HTMXResponseBuilder) TriggerEntryPosted(id int64, reference string) *HTMXResponseBuilder {
	return b.Trigger("entry:posted", map[string]interface{}{"id": id, "reference": reference})
}

// TriggerEntryUpdated adds the entry:updated trigger.
func (b *HTMXResponseBuilder) TriggerEntryUpdated(id int64) *HTMXResponseBuilder {
	return b.Trigger("entry:updated", map[string]int64{"id": id})
}

// TriggerEntryVoided adds the entry:voided trigger.
func (b *HTMXResponseBuilder) TriggerEntryVoided(id int64) *HTMXResponseBuilder {
	return b.Trigger("entry:voided", map[string]int64{"id": id})
}

// TriggerEntryDeleted adds the entry:deleted trigger with year/month data.
func (b *HTMXResponseBuilder) TriggerEntryDeleted(year, month int) *HTMXResponseBuilder {
	return b.Trigger("entry:deleted", map[string]int{"year": year, "month": month})
}

// TriggerFormReset adds the form:reset trigger.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger("form:reset", struct{}{})
}

// TriggerOverviewRefresh adds the overview:refresh trigger with year/month data.
func (b *HTMXResponseBuilder) TriggerOverviewRefresh(year, month int) *HTMXResponseBuilder {
	return b.Trigger("overview:refresh", map[string]int{"year": year, "month": month})
}

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// TriggerNotification adds a show-notification trigger with the specified parameters.
func (b *HTMXResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger("show-notification", map[string]interface{}{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

// TriggerSuccessNotification is a convenience method for success notifications.
func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

// TriggerErrorNotification is a convenience method for error notifications.
func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

// Header adds a custom header to the response.
func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the response body as bytes.
func (b *HTMXResponseBuilder) Body(content []byte) *HTMXResponseBuilder {
	b.body = content
	return b
}

// BodyString sets the response body as a string.
func (b *HTMXResponseBuilder) BodyString(content string) *HTMXResponseBuilder {
	b.body = []byte(content)
	return b
}

// BodyHTML sets the response body as HTML content.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		triggerJSON, err := json.Marshal(b.triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a standard error response with HTML formatting.
// The message is HTML-escaped.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	escapedMsg := template.HTMLEscapeString(message)
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + escapedMsg + `</div>`)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ForbiddenError creates a 403 Forbidden error response.
func ForbiddenError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusForbidden, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods)
}

// ValidationError maps a domain error to a 422 fragment with the
// user-facing message.
func ValidationError(err error) *HTMXResponseBuilder {
	return UnprocessableEntityError(errorMessage(err))
}

// errorMessage translates domain and storage sentinels into the Spanish
// messages the UI fragments show. Unknown errors pass through verbatim.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrDuplicateCode):
		return "Código duplicado"
	case errors.Is(err, core.ErrInvalidAmount):
		return "Importe no válido"
	case errors.Is(err, core.ErrInvalidDate):
		return "Fecha no válida"
	case errors.Is(err, core.ErrInvalidRange):
		return "La fecha de inicio debe ser anterior a la de fin"
	case errors.Is(err, core.ErrEmptyDescription):
		return "La descripción es obligatoria"
	case errors.Is(err, core.ErrEmptyName):
		return "El nombre es obligatorio"
	case errors.Is(err, core.ErrEmptyCode):
		return "El código es obligatorio"
	case errors.Is(err, core.ErrInvalidAccountCode):
		return "Cuenta no válida (formato NNN-NNN-NNN-NNN)"
	case errors.Is(err, core.ErrTooFewLines):
		return "El asiento necesita al menos dos líneas"
	case errors.Is(err, core.ErrLineBothSides):
		return "Una línea no puede llevar debe y haber a la vez"
	case errors.Is(err, core.ErrLineNoAmount):
		return "Cada línea necesita un importe al debe o al haber"
	case errors.Is(err, core.ErrUnbalanced):
		return "El asiento no está balanceado"
	case errors.Is(err, core.ErrNotDraft):
		return "Solo los borradores se pueden contabilizar"
	case errors.Is(err, core.ErrNotPosted):
		return "Solo los asientos contabilizados se pueden anular"
	case errors.Is(err, core.ErrEmptyReason):
		return "El motivo de anulación es obligatorio"
	case errors.Is(err, core.ErrSameAccount):
		return "Las cuentas de debe y haber deben ser distintas"
	case errors.Is(err, core.ErrInvalidFrequency):
		return "Frecuencia no válida"
	case errors.Is(err, core.ErrInvalidEmail):
		return "Correo no válido"
	case errors.Is(err, core.ErrInvalidRole):
		return "Rol no válido"
	case errors.Is(err, core.ErrNoLines):
		return "El presupuesto necesita al menos una línea"
	case errors.Is(err, storage.ErrNotFound):
		return "No encontrado"
	case errors.Is(err, storage.ErrNotEditable):
		return "El asiento ya no es editable"
	case errors.Is(err, storage.ErrEmailTaken):
		return "El correo ya está registrado"
	case errors.Is(err, storage.ErrInUse):
		return "En uso por otros registros"
	case errors.Is(err, storage.ErrInvalidCredentials):
		return "Credenciales no válidas"
	default:
		return err.Error()
	}
}
