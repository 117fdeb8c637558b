// Package router decides which surface a visitor belongs on.
//
// Every owner/admin/member comparison in the application goes through Landing
// and Decide. Both are pure: they take the user's flags, memberships, active
// organization and the surface being visited, and return a Destination. The
// HTTP redirect and any cookie clearing are the caller's job.
package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrUnknownSurface is returned for surfaces the router has no rules for.
// Callers answer 404; there is no fallback surface.
var ErrUnknownSurface = errors.New("router: unknown surface")

// Well-known paths.
const (
	PathRoot        = "/"
	PathLogin       = "/login"
	PathOnboarding  = "/onboarding/organization"
	invitationsPath = "/invitations/"
)

// Destination is a surface plus a relative path. It never carries a host.
type Destination struct {
	Surface subdomain.Surface
	Path    string
}

func (d Destination) String() string {
	return string(d.Surface) + ":" + d.Path
}

// Input is everything a routing decision depends on.
type Input struct {
	SignedIn    bool
	IsOps       bool
	Memberships []models.MembershipView // active memberships only
	// ActiveOrganization is the resolved current organization, or zero.
	ActiveOrganization primitive.ObjectID
	Surface            subdomain.Surface
	Path               string
}

// Decision is the outcome of Decide. When Allow is false the visitor must be
// sent to Redirect.
type Decision struct {
	Allow    bool
	Redirect Destination
}

func allow() Decision                 { return Decision{Allow: true} }
func redirect(d Destination) Decision { return Decision{Redirect: d} }

// Landing is where a signed-in user goes after authenticating.
// First match wins:
//  1. ops flag: the ops root
//  2. no memberships: organization onboarding
//  3. otherwise: the app root
//
// Owners and admins also land on the app root; the admin surface is only
// reached through admin-scoped pages.
func Landing(isOps bool, memberships []models.MembershipView) Destination {
	switch {
	case isOps:
		return Destination{Surface: subdomain.Ops, Path: PathRoot}
	case len(memberships) == 0:
		return Destination{Surface: subdomain.App, Path: PathOnboarding}
	default:
		return Destination{Surface: subdomain.App, Path: PathRoot}
	}
}

// Decide reports whether the visitor may stay on in.Surface at in.Path.
func Decide(in Input) (Decision, error) {
	login, err := LoginTarget(in.Surface)
	if err != nil {
		return Decision{}, err
	}
	if in.Surface == subdomain.WWW {
		return allow(), nil
	}
	if !in.SignedIn {
		return redirect(login), nil
	}

	switch in.Surface {
	case subdomain.Ops:
		if in.IsOps {
			return allow(), nil
		}
	case subdomain.Admin:
		if CanAdminister(in.Memberships, in.ActiveOrganization) {
			return allow(), nil
		}
		if len(in.Memberships) > 0 {
			// Members are sent to the app root, never to another admin page.
			return redirect(Destination{Surface: subdomain.App, Path: PathRoot}), nil
		}
	case subdomain.App:
		if len(in.Memberships) > 0 || membershipOptional(in.Path) {
			return allow(), nil
		}
	}
	return redirect(Landing(in.IsOps, in.Memberships)), nil
}

// CanAdminister reports whether the memberships grant admin access. With an
// active organization only that organization's role counts; without one any
// owner/admin membership does.
func CanAdminister(memberships []models.MembershipView, active primitive.ObjectID) bool {
	if !active.IsZero() {
		role, ok := RoleIn(memberships, active)
		return ok && role.CanAdminister()
	}
	for _, m := range memberships {
		if m.Role.CanAdminister() {
			return true
		}
	}
	return false
}

// RoleIn returns the user's role in org.
func RoleIn(memberships []models.MembershipView, org primitive.ObjectID) (models.Role, bool) {
	for _, m := range memberships {
		if m.OrganizationID == org {
			return m.Role, true
		}
	}
	return "", false
}

// membershipOptional lists app paths a user without organizations may visit.
func membershipOptional(path string) bool {
	return path == PathOnboarding || strings.HasPrefix(path, invitationsPath)
}

// LoginTarget is the login page for visitors on s.
func LoginTarget(s subdomain.Surface) (Destination, error) {
	switch s {
	case subdomain.Ops:
		return Destination{Surface: subdomain.Ops, Path: PathLogin}, nil
	case subdomain.WWW, subdomain.App, subdomain.Admin:
		return Destination{Surface: subdomain.WWW, Path: PathLogin}, nil
	}
	return Destination{}, fmt.Errorf("%w: %q", ErrUnknownSurface, s)
}

// LogoutTarget is where a user signing out on s is sent. Authenticated-only
// surfaces are never used as the post-logout landing page.
func LogoutTarget(s subdomain.Surface) (Destination, error) {
	return LoginTarget(s)
}
