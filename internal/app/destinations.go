package app

import (
	"fmt"
	"net/http"

	"github.com/ngo-fms/fms/internal/platform/httpx"
	"github.com/ngo-fms/fms/internal/rbac"
	"github.com/ngo-fms/fms/internal/session"
)

// Capability is a permission-gated action a screen may offer.
type Capability struct {
	Name       string
	Permission rbac.Permission
}

// Destination is a navigable screen and the guard declaration protecting it.
type Destination struct {
	Path         string
	Screen       string
	Declaration  rbac.Declaration
	Capabilities []Capability
}

// Destinations returns the navigable screens of the application.
func Destinations() []Destination {
	return []Destination{
		{Path: "/dashboard", Screen: "dashboard"},
		{
			Path: "/users", Screen: "users",
			Declaration: rbac.Declaration{RequiredRole: string(rbac.RoleSuperAdmin)},
			Capabilities: []Capability{
				{Name: "promoteUsers", Permission: rbac.PermPromoteUsers},
				{Name: "demoteUsers", Permission: rbac.PermDemoteUsers},
				{Name: "deleteUsers", Permission: rbac.PermDeleteUsers},
			},
		},
		{
			Path: "/invoices", Screen: "invoices",
			Declaration: rbac.Declaration{RequiredPermission: string(rbac.PermViewAllInvoices)},
			Capabilities: []Capability{
				{Name: "createInvoices", Permission: rbac.PermCreateInvoices},
				{Name: "editInvoices", Permission: rbac.PermEditInvoices},
				{Name: "approveInvoices", Permission: rbac.PermApproveInvoices},
				{Name: "deleteInvoices", Permission: rbac.PermDeleteInvoices},
			},
		},
		{
			Path: "/invoices/new", Screen: "new-invoice",
			Declaration: rbac.Declaration{RequiredPermission: string(rbac.PermCreateInvoices)},
		},
		{
			Path: "/reports", Screen: "reports",
			Declaration: rbac.Declaration{RequiredPermission: string(rbac.PermViewAllReports)},
			Capabilities: []Capability{
				{Name: "editReports", Permission: rbac.PermEditReports},
			},
		},
		{
			Path: "/accounts", Screen: "accounts",
			Declaration: rbac.Declaration{RequiredPermission: string(rbac.PermViewAllFunds)},
			Capabilities: []Capability{
				{Name: "editFunds", Permission: rbac.PermEditFunds},
			},
		},
		{
			Path: "/my-invoices", Screen: "my-invoices",
			Declaration: rbac.Declaration{RequiredPermission: string(rbac.PermCreateInvoices)},
			Capabilities: []Capability{
				{Name: "createInvoices", Permission: rbac.PermCreateInvoices},
			},
		},
		{
			Path: "/my-reports", Screen: "my-reports",
			Declaration: rbac.Declaration{RequiredPermission: string(rbac.PermViewOwnReports)},
			Capabilities: []Capability{
				{Name: "createReports", Permission: rbac.PermCreateReports},
			},
		},
		{
			Path: "/accounts/add", Screen: "add-account",
			Declaration: rbac.Declaration{RequiredRole: string(rbac.RoleAdmin)},
		},
		{
			Path: "/reports/generate", Screen: "generate-report",
			Declaration: rbac.Declaration{RequiredRole: string(rbac.RoleSuperAdmin)},
		},
	}
}

// Requirement parses the destination's declaration. An empty declaration only
// requires a signed-in session.
func (d Destination) Requirement() (rbac.Requirement, error) {
	req, err := rbac.ParseRequirement(d.Declaration)
	if err != nil {
		return rbac.Requirement{}, fmt.Errorf("destination %s: %w", d.Path, err)
	}
	return req, nil
}

type screenResponse struct {
	Screen       string          `json:"screen"`
	Capabilities map[string]bool `json:"capabilities"`
}

// screenHandler answers an allowed navigation with the screen name and the
// actions the session may expose on it.
func screenHandler(d Destination) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := session.PrincipalFromRequest(r)
		caps := make(map[string]bool, len(d.Capabilities))
		for _, c := range d.Capabilities {
			caps[c.Name] = rbac.HasPermission(principal, c.Permission)
		}
		httpx.JSON(w, http.StatusOK, screenResponse{Screen: d.Screen, Capabilities: caps})
	}
}
