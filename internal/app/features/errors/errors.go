// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
	"go.uber.org/zap"
)

// GenericMessage is what users see when something fails on our side or at
// the identity provider.
const GenericMessage = "Something went wrong. Please try again."

// pageData is the basic view model for error pages.
type pageData struct {
	viewdata.BaseVM
	Message string `json:"message"`
}

// Handler serves the fallback pages mounted on every surface.
// No DB needed.
type Handler struct{}

// NewHandler constructs an errors Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// NotFound answers unmatched routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	RenderStatus(w, r, http.StatusNotFound, "Page not found.", "/")
}

// Forbidden renders a friendly "access denied" page.
// GET /forbidden
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	RenderForbidden(w, r, "You don't have permission to view this page.", "")
}

// ErrorLogger logs failures with request context and answers the user with
// a message that leaks nothing about the cause.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger creates an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	fs := []zap.Field{
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if u, ok := auth.CurrentUser(r); ok {
		fs = append(fs, zap.String("user_id", u.ID))
	}
	return fs
}

// LogServerError logs msg at error level and answers 500 with userMsg.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.Log.Error(msg, e.fields(r, err)...)
	if userMsg == "" {
		userMsg = GenericMessage
	}
	RenderStatus(w, r, http.StatusInternalServerError, userMsg, backURL)
}

// LogBadRequest logs msg at warn level and answers 400 with userMsg.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.Log.Warn(msg, e.fields(r, err)...)
	RenderStatus(w, r, http.StatusBadRequest, userMsg, backURL)
}

// LogUpstreamError is LogServerError for identity provider failures; the
// user gets the generic message and a 502.
func (e *ErrorLogger) LogUpstreamError(w http.ResponseWriter, r *http.Request, msg string, err error, backURL string) {
	e.Log.Error(msg, e.fields(r, err)...)
	RenderStatus(w, r, http.StatusBadGateway, GenericMessage, backURL)
}
