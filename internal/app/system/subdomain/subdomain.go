// Package subdomain maps request hosts onto the four application surfaces.
package subdomain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Surface is one of the application's subdomains.
type Surface string

const (
	WWW   Surface = "www"   // marketing site and shared login
	App   Surface = "app"   // tenant application
	Admin Surface = "admin" // tenant administration
	Ops   Surface = "ops"   // internal operations console
)

// All lists the surfaces in a stable order.
var All = []Surface{WWW, App, Admin, Ops}

// ErrUnknown is returned for hosts or names that are not one of the surfaces.
var ErrUnknown = errors.New("subdomain: unknown surface")

// Parse converts a surface name into a Surface.
func Parse(name string) (Surface, error) {
	s := Surface(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range All {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknown, name)
}

type ctxKey string

const surfaceKey ctxKey = "surface"

// Resolver matches hosts against the configured base URL of each surface.
type Resolver struct {
	hosts map[string]Surface
	apex  string
}

// NewResolver builds a Resolver from the base URL of every surface.
// The host of the www base URL with its "www." label removed is the apex,
// which is served as www.
func NewResolver(bases map[Surface]string) (*Resolver, error) {
	res := &Resolver{hosts: make(map[string]Surface, len(All))}
	for _, s := range All {
		raw, ok := bases[s]
		if !ok || raw == "" {
			return nil, fmt.Errorf("subdomain: base URL for %s is not configured", s)
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("subdomain: base URL for %s is invalid: %q", s, raw)
		}
		host := strings.ToLower(stripPort(u.Host))
		if prev, dup := res.hosts[host]; dup {
			return nil, fmt.Errorf("subdomain: %s and %s share host %q", prev, s, host)
		}
		res.hosts[host] = s
	}
	www := strings.ToLower(stripPort(mustHost(bases[WWW])))
	if apex, ok := strings.CutPrefix(www, "www."); ok && apex != "" {
		res.apex = apex
	}
	return res, nil
}

func mustHost(raw string) string {
	u, _ := url.Parse(raw)
	return u.Host
}

// Resolve returns the surface serving host. Unknown hosts yield ErrUnknown;
// there is no fallback surface.
func (res *Resolver) Resolve(host string) (Surface, error) {
	h := strings.ToLower(stripPort(host))
	if s, ok := res.hosts[h]; ok {
		return s, nil
	}
	if res.apex != "" && h == res.apex {
		return WWW, nil
	}
	return "", fmt.Errorf("%w: host %q", ErrUnknown, host)
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// Middleware puts the request's Surface in context and answers 404 for hosts
// that are not one of the configured surfaces.
func Middleware(res *Resolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := res.Resolve(r.Host)
			if err != nil {
				logger.Debug("request to unknown host", zap.String("host", r.Host))
				http.NotFound(w, r)
				return
			}
			next.ServeHTTP(w, WithSurface(r, s))
		})
	}
}

// FromRequest returns the surface set by Middleware.
func FromRequest(r *http.Request) (Surface, bool) {
	return FromContext(r.Context())
}

// FromContext returns the surface stored in ctx.
func FromContext(ctx context.Context) (Surface, bool) {
	s, ok := ctx.Value(surfaceKey).(Surface)
	return s, ok
}

// WithSurface returns r carrying s. Middleware uses it; tests call it
// directly to skip host resolution.
func WithSurface(r *http.Request, s Surface) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), surfaceKey, s))
}
