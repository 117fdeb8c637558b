package router

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
)

// Targets turns Destinations into absolute URLs using the configured base URL
// of each surface.
type Targets struct {
	bases map[subdomain.Surface]string
}

// NewTargets validates that every surface has an absolute base URL.
func NewTargets(bases map[subdomain.Surface]string) (*Targets, error) {
	t := &Targets{bases: make(map[subdomain.Surface]string, len(subdomain.All))}
	for _, s := range subdomain.All {
		u, err := url.Parse(bases[s])
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("router: base URL for %s must be absolute, got %q", s, bases[s])
		}
		t.bases[s] = strings.TrimRight(u.String(), "/")
	}
	return t, nil
}

// Base returns the base URL of s.
func (t *Targets) Base(s subdomain.Surface) string {
	return t.bases[s]
}

// URL returns the absolute URL for d.
func (t *Targets) URL(d Destination) string {
	p := d.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return t.bases[d.Surface] + p
}

// Login returns the absolute login URL for visitors on s, falling back to the
// shared www login.
func (t *Targets) Login(s subdomain.Surface) string {
	d, err := LoginTarget(s)
	if err != nil {
		d = Destination{Surface: subdomain.WWW, Path: PathLogin}
	}
	return t.URL(d)
}

// SafeReturn reports whether raw points at one of the configured surfaces,
// so it can be used as a post-login redirect without becoming an open
// redirect.
func (t *Targets) SafeReturn(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	for _, base := range t.bases {
		b, _ := url.Parse(base)
		if b != nil && strings.EqualFold(b.Host, u.Host) && b.Scheme == u.Scheme {
			return true
		}
	}
	return false
}
