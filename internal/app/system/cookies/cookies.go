// Package cookies is the commit layer for response cookies.
//
// Code that needs to set a cookie (the session bridge after a token refresh,
// the tenant resolver after correcting a stale selection) calls Set. Set never
// touches the ResponseWriter directly; it queues the cookie on a request-scoped
// Jar. Middleware installs the Jar and flushes the queue into the response
// headers the moment the handler starts writing, or when it returns without
// writing anything.
//
// Writes that arrive after the response has started cannot be honored and
// return ErrCommitted. Writes on a request that never passed through
// Middleware return ErrNoJar. Callers in this codebase treat both as
// non-fatal and log them.
package cookies

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrNoJar means the request was not wrapped by Middleware.
	ErrNoJar = errors.New("cookies: no jar on request; cookies.Middleware not installed")
	// ErrCommitted means response headers were already sent.
	ErrCommitted = errors.New("cookies: response already started; cookie dropped")
)

type ctxKey string

const jarKey ctxKey = "cookieJar"

// Jar holds cookies queued for one response.
type Jar struct {
	mu        sync.Mutex
	pending   []*http.Cookie
	committed bool
}

// Pending returns a copy of the cookies queued so far, in order.
// Tests use it to inspect the exact attributes handed to the commit layer.
func (j *Jar) Pending() []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*http.Cookie, len(j.pending))
	copy(out, j.pending)
	return out
}

// Committed reports whether the jar has been flushed.
func (j *Jar) Committed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.committed
}

func (j *Jar) add(c *http.Cookie) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.committed {
		return ErrCommitted
	}
	// A later write for the same name/domain/path replaces the earlier one so
	// the browser only ever sees the final value.
	for i, p := range j.pending {
		if p.Name == c.Name && p.Domain == c.Domain && p.Path == c.Path {
			j.pending[i] = c
			return nil
		}
	}
	j.pending = append(j.pending, c)
	return nil
}

// flush writes the pending cookies into h exactly once.
func (j *Jar) flush(h http.Header) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.committed {
		return
	}
	j.committed = true
	for _, c := range j.pending {
		if v := c.String(); v != "" {
			h.Add("Set-Cookie", v)
		}
	}
}

// FromRequest returns the request's Jar, or nil when Middleware is absent.
func FromRequest(r *http.Request) *Jar {
	return FromContext(r.Context())
}

// FromContext returns the Jar stored in ctx, or nil.
func FromContext(ctx context.Context) *Jar {
	if j, ok := ctx.Value(jarKey).(*Jar); ok {
		return j
	}
	return nil
}

// Set queues c on the request's Jar.
func Set(r *http.Request, c *http.Cookie) error {
	j := FromRequest(r)
	if j == nil {
		return ErrNoJar
	}
	return j.add(c)
}

// Delete queues an expiring copy of c (same name, domain and path).
func Delete(r *http.Request, c *http.Cookie) error {
	del := *c
	del.Value = ""
	del.MaxAge = -1
	return Set(r, &del)
}

// WithJar returns r carrying a fresh Jar. Middleware uses it; tests can use
// it to exercise cookie writers without a full handler chain.
func WithJar(r *http.Request) (*http.Request, *Jar) {
	j := &Jar{}
	return r.WithContext(context.WithValue(r.Context(), jarKey, j)), j
}

// Middleware installs a Jar on every request and commits it on the response.
func Middleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, jar := WithJar(r)
			cw := &commitWriter{ResponseWriter: w, jar: jar}
			next.ServeHTTP(cw, r)

			// Handler returned without writing: headers are still mutable.
			if !jar.Committed() {
				jar.flush(w.Header())
				if n := len(jar.Pending()); n > 0 {
					logger.Debug("committed cookies on empty response",
						zap.Int("count", n),
						zap.String("path", r.URL.Path))
				}
			}
		})
	}
}

// commitWriter flushes the jar right before the status line goes out.
type commitWriter struct {
	http.ResponseWriter
	jar *Jar
}

func (cw *commitWriter) WriteHeader(code int) {
	cw.jar.flush(cw.ResponseWriter.Header())
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *commitWriter) Write(b []byte) (int, error) {
	cw.jar.flush(cw.ResponseWriter.Header())
	return cw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (cw *commitWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

// Flush forwards to the underlying writer when it supports streaming.
func (cw *commitWriter) Flush() {
	cw.jar.flush(cw.ResponseWriter.Header())
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
