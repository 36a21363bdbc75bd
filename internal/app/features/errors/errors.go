// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/pinboard/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// ErrorLogger wraps the zap logger for handler errors. A nil ErrorLogger
// discards everything.
type ErrorLogger struct {
	logger *zap.Logger
}

func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{logger: logger}
}

// Log records err with the request's method and path.
func (e *ErrorLogger) Log(r *http.Request, msg string, err error) {
	e.LogWithFields(r, msg, err)
}

// LogWithFields is Log with extra fields.
func (e *ErrorLogger) LogWithFields(r *http.Request, msg string, err error, fields ...zap.Field) {
	if e == nil || e.logger == nil {
		return
	}
	all := append([]zap.Field{
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	}, fields...)
	e.logger.Error(msg, all...)
}

// Handler renders the error pages.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// ErrorVM is shared by all error pages.
type ErrorVM struct {
	viewdata.BaseVM
	Status int
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request, status int, title, name string) {
	vm := ErrorVM{BaseVM: viewdata.NewBaseVM(r, title, "/"), Status: status}
	w.WriteHeader(status)
	templates.Render(w, r, name, vm)
}

// Forbidden renders the 403 page.
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusForbidden, "Access Denied", "errors/forbidden")
}

// Unauthorized renders the 401 page.
func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusUnauthorized, "Unauthorized", "errors/unauthorized")
}

// NotFound renders the 404 page. It is also the router's NotFound handler.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusNotFound, "Not Found", "errors/not_found")
}

// InternalError renders the 500 page.
func (h *Handler) InternalError(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusInternalServerError, "Server Error", "errors/internal")
}
