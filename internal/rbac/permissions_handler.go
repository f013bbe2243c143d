package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ngo-fms/fms/internal/platform/httpx"
)

// PermissionsHandler exposes the grant table to user administrators.
type PermissionsHandler struct {
	rbac Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAPI(RequirePermission(PermManageUsers)))
		r.Get("/", h.listPermissions)
	})
}

type roleGrants struct {
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	grants := make([]roleGrants, 0, len(Roles()))
	for _, role := range Roles() {
		grants = append(grants, roleGrants{Role: role, Permissions: PermissionsOf(role)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"permissions": Permissions(),
		"roles":       grants,
	})
}
