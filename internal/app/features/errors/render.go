// internal/app/features/errors/render.go
package errors

import (
	"net/http"

	"github.com/dalemusser/tenanthub/internal/app/system/ratelimit"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
)

// RenderStatus writes an error page with status and msg.
func RenderStatus(w http.ResponseWriter, r *http.Request, status int, msg, backURL string) {
	if backURL == "" {
		backURL = "/"
	}
	data := pageData{
		BaseVM:  viewdata.NewBaseVM(r, http.StatusText(status), backURL),
		Message: msg,
	}
	viewdata.Render(w, status, data)
}

// RenderUnauthorized shows a friendly "sign in required" page.
// If backURL is empty, it will default to /login.
func RenderUnauthorized(w http.ResponseWriter, r *http.Request, backURL string) {
	if backURL == "" {
		backURL = "/login"
	}
	RenderStatus(w, r, http.StatusUnauthorized, "Please sign in to continue.", backURL)
}

// RenderForbidden shows a friendly access error page with a message.
func RenderForbidden(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	RenderStatus(w, r, http.StatusForbidden, msg, backURL)
}

// RenderTooManyRequests answers a rejected rate-limit check with 429, a
// Retry-After header and the limiter's user message.
func RenderTooManyRequests(w http.ResponseWriter, r *http.Request, res ratelimit.Result) {
	w.Header().Set("Retry-After", res.RetryAfter())
	RenderStatus(w, r, http.StatusTooManyRequests, res.Message(), "")
}
