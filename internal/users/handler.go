package users

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ngo-fms/fms/internal/platform/httpx"
	"github.com/ngo-fms/fms/internal/rbac"
	"github.com/ngo-fms/fms/internal/shared"
)

// Handler exposes the user administration API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user administration routes. Only super admins reach them.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAPI(rbac.RequireRole(rbac.RoleSuperAdmin)))
		r.Get("/", h.listUsers)
		r.Post("/{email}/approve", h.approveUser)
		r.Post("/{email}/reject", h.rejectUser)
		r.Put("/{email}/role", h.changeRole)
		r.Delete("/{email}", h.deleteUser)
	})
}

// userView is the public shape of a registry entry. The credential never leaves
// the service.
type userView struct {
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Role      rbac.Role `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func viewOf(u User) userView {
	return userView{FullName: u.FullName, Email: u.Email, Role: u.Role, Status: u.Status, CreatedAt: u.CreatedAt}
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, err := rbac.ParseRole(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown role")
			return
		}
		filter.Role = role
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.Status = status
	}
	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]userView, len(list))
	for i, u := range list {
		views[i] = viewOf(u)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": views})
}

func (h *Handler) approveUser(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "approve user", func(email string) (User, error) {
		return h.service.Approve(r.Context(), email)
	})
}

func (h *Handler) rejectUser(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "reject user", func(email string) (User, error) {
		return h.service.Reject(r.Context(), email)
	})
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown role")
		return
	}
	h.respond(w, r, "change role", func(email string) (User, error) {
		return h.service.ChangeRole(r.Context(), email, role)
	})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "delete user", func(email string) (User, error) {
		return h.service.Delete(r.Context(), email)
	})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, action string, fn func(email string) (User, error)) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || email == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "email required")
		return
	}
	user, err := fn(email)
	if err != nil {
		if errors.Is(err, shared.ErrPersistence) {
			h.logger.Error(action, slog.String("email", email), slog.Any("error", err))
		} else {
			h.logger.Info(action+" refused", slog.String("email", email), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": viewOf(user)})
}
