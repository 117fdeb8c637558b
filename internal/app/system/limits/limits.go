// internal/app/system/limits/limits.go
package limits

import "net/http"

// Request body size limits.
const (
	// MaxFormSize caps urlencoded form posts (login, signup, invitations).
	MaxFormSize = 64 << 10 // 64 KB

	// MaxJSONBody caps JSON bodies such as the token hand-off after an
	// implicit-flow sign-in.
	MaxJSONBody = 16 << 10 // 16 KB
)

// Body wraps every request body in http.MaxBytesReader with n bytes.
// Reads past the limit fail and ParseForm reports the error.
func Body(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
