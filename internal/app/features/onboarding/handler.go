// internal/app/features/onboarding/handler.go
package onboarding

import (
	"context"
	"fmt"
	"net/http"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	membershipstore "github.com/dalemusser/tenanthub/internal/app/store/memberships"
	organizationstore "github.com/dalemusser/tenanthub/internal/app/store/organizations"
	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/tenanthub/internal/app/system/router"
	"github.com/dalemusser/tenanthub/internal/app/system/subdomain"
	"github.com/dalemusser/tenanthub/internal/app/system/tenant"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/system/txn"
	"github.com/dalemusser/tenanthub/internal/app/system/viewdata"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MaxNameLength bounds organization names after sanitizing.
const MaxNameLength = 100

type Handler struct {
	Client      *mongo.Client
	Orgs        *organizationstore.Store
	Memberships *membershipstore.Store
	Tenants     *tenant.Resolver
	Targets     *router.Targets
	AuditLog    *auditlog.Logger
	ErrLog      *uierrors.ErrorLogger
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, tenants *tenant.Resolver, targets *router.Targets, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Client:      db.Client(),
		Orgs:        organizationstore.New(db),
		Memberships: membershipstore.New(db),
		Tenants:     tenants,
		Targets:     targets,
		AuditLog:    audit,
		ErrLog:      errLog,
		Log:         logger,
	}
}

type formData struct {
	viewdata.BaseVM
	Name  string `json:"name,omitempty"`
	Error string `json:"error,omitempty"`
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, name, msg string) {
	viewdata.Render(w, status, formData{
		BaseVM: viewdata.NewBaseVM(r, "Create your organization", "/"),
		Name:   name,
		Error:  msg,
	})
}

// ServeNew handles GET /onboarding/organization. Company name from sign-up
// metadata pre-fills the form.
func (h *Handler) ServeNew(w http.ResponseWriter, r *http.Request) {
	name := ""
	if u, ok := auth.CurrentUser(r); ok {
		name = u.Metadata.CompanyName
	}
	h.renderForm(w, r, http.StatusOK, name, "")
}

// HandleCreate handles POST /onboarding/organization.
//
// The organization and the owner membership are two writes. If the second
// fails the organization is deleted again so nobody is left with an
// organization they cannot reach.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, h.Targets.Login(subdomain.App))
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "onboarding: parse form failed", err, "Invalid form data.", router.PathOnboarding)
		return
	}
	name := htmlsanitize.PlainText(r.PostFormValue("name"), MaxNameLength)
	if name == "" {
		h.renderForm(w, r, http.StatusBadRequest, "", "Organization name is required.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create organization")
	defer cancel()

	// The organization and its owner membership are written together. Without
	// transaction support a failed membership insert deletes the organization.
	var org models.Organization
	err := txn.Run(ctx, h.Client, h.Log, func(ctx context.Context) error {
		var err error
		org, err = h.Orgs.Create(ctx, models.Organization{Name: name, CreatedBy: u.ID})
		if err != nil {
			return fmt.Errorf("create organization: %w", err)
		}
		if _, err := h.Memberships.Add(ctx, org.ID, u.ID, models.RoleOwner); err != nil {
			if delErr := h.Orgs.Delete(ctx, org.ID); delErr != nil {
				h.Log.Warn("onboarding: organization cleanup failed",
					zap.String("org_id", org.ID.Hex()),
					zap.Error(delErr))
			}
			return fmt.Errorf("add owner: %w", err)
		}
		return nil
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "onboarding: create failed", err, "", router.PathOnboarding)
		return
	}

	if err := h.Tenants.SetActive(r, org.ID); err != nil {
		h.Log.Warn("onboarding: organization cookie dropped", zap.Error(err))
	}
	h.AuditLog.OrgCreated(r.Context(), r, u.ID, org.ID, org.Name)
	h.Log.Info("organization created",
		zap.String("org_id", org.ID.Hex()),
		zap.String("slug", org.Slug),
		zap.String("owner", u.ID))

	http.Redirect(w, r, h.Targets.URL(router.Destination{Surface: subdomain.App, Path: router.PathRoot}), http.StatusSeeOther)
}
