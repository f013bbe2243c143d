package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/ngo-fms/fms/internal/platform/httpx"
	"github.com/ngo-fms/fms/internal/rbac"
	"github.com/ngo-fms/fms/internal/session"
	"github.com/ngo-fms/fms/internal/shared"
	"github.com/ngo-fms/fms/internal/users"
)

// Login outcomes reported to the LoginRecorder.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// LoginRecorder observes login attempts.
type LoginRecorder interface {
	ObserveLogin(outcome string)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger     *slog.Logger
	verifier   *Verifier
	users      *users.Service
	validator  *validator.Validate
	recorder   LoginRecorder
	loginLimit int
}

// NewHandler constructs a Handler instance. loginLimit caps login attempts per
// client IP per minute; zero disables the cap.
func NewHandler(logger *slog.Logger, verifier *Verifier, service *users.Service, recorder LoginRecorder, loginLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		verifier:   verifier,
		users:      service,
		validator:  validator.New(),
		recorder:   recorder,
		loginLimit: loginLimit,
	}
}

// MountPages registers the public-only form endpoints.
func (h *Handler) MountPages(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Get("/signup", h.showSignup)
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	login := http.HandlerFunc(h.handleLogin)
	if h.loginLimit > 0 {
		limiter := httprate.Limit(h.loginLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "too many login attempts, try again later")
			}),
		)
		r.With(limiter).Post("/login", login)
	} else {
		r.Post("/login", login)
	}
	r.Post("/logout", h.handleLogout)
	r.Post("/signup", h.handleSignup)
	r.Get("/me", h.showMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required"`
	From     string `json:"from"`
}

type loginResponse struct {
	Role     rbac.Role `json:"role"`
	Redirect string    `json:"redirect"`
}

type formResponse struct {
	Form  string      `json:"form"`
	From  string      `json:"from,omitempty"`
	Email string      `json:"email,omitempty"`
	Roles []rbac.Role `json:"roles,omitempty"`
}

type meResponse struct {
	Session     session.Session   `json:"session"`
	Permissions []rbac.Permission `json:"permissions"`
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if h.redirectAuthenticated(w, r) {
		return
	}
	q := r.URL.Query()
	httpx.JSON(w, http.StatusOK, formResponse{
		Form:  "login",
		From:  rbac.ResumePath(q.Get(rbac.FromParam), ""),
		Email: q.Get("email"),
		Roles: rbac.Roles(),
	})
}

func (h *Handler) showSignup(w http.ResponseWriter, r *http.Request) {
	if h.redirectAuthenticated(w, r) {
		return
	}
	httpx.JSON(w, http.StatusOK, formResponse{Form: "signup"})
}

// redirectAuthenticated sends signed-in sessions away from public-only forms.
func (h *Handler) redirectAuthenticated(w http.ResponseWriter, r *http.Request) bool {
	if !session.PrincipalFromRequest(r).IsAuthenticated() {
		return false
	}
	http.Redirect(w, r, rbac.DefaultLandingPath, http.StatusSeeOther)
	return true
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	store := session.StoreFromContext(r.Context())
	if store == nil {
		h.logger.Error("session missing during login")
		h.observe(OutcomeError)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "session unavailable")
		return
	}

	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email, password and role are required")
		return
	}

	claimed, err := rbac.ParseRole(req.Role)
	if err != nil {
		h.reject(w, r, req.Email)
		return
	}
	role, err := h.verifier.Verify(r.Context(), req.Email, req.Password, claimed)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			h.reject(w, r, req.Email)
			return
		}
		h.logger.ErrorContext(r.Context(), "verify credentials", slog.Any("error", err))
		h.observe(OutcomeError)
		httpx.RespondError(w, err)
		return
	}

	if err := session.HandleFromContext(r.Context()).Renew(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "renew session", slog.Any("error", err))
		h.observe(OutcomeError)
		httpx.RespondError(w, err)
		return
	}
	if err := store.Login(r.Context(), role, req.Email); err != nil {
		h.logger.ErrorContext(r.Context(), "start session", slog.Any("error", err))
		h.observe(OutcomeError)
		httpx.RespondError(w, err)
		return
	}
	h.observe(OutcomeSuccess)
	httpx.JSON(w, http.StatusOK, loginResponse{
		Role:     role,
		Redirect: rbac.ResumePath(req.From, rbac.DefaultLandingPath),
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, email string) {
	h.logger.InfoContext(r.Context(), "login rejected", slog.String("email", email))
	h.observe(OutcomeRejected)
	httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.CredentialRejectedMessage)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	store := session.StoreFromContext(r.Context())
	if store != nil {
		if err := store.Logout(r.Context()); err != nil {
			h.logger.ErrorContext(r.Context(), "end session", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"redirect": rbac.DefaultLoginPath})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in users.SignupInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	user, err := h.users.Signup(r.Context(), in)
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			httpx.Problem(w, http.StatusConflict, "Conflict", "email already registered")
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"email":    user.Email,
		"status":   user.Status,
		"redirect": rbac.DefaultLoginPath,
	})
}

func (h *Handler) showMe(w http.ResponseWriter, r *http.Request) {
	resp := meResponse{Session: session.Anonymous(), Permissions: []rbac.Permission{}}
	if store := session.StoreFromContext(r.Context()); store != nil {
		resp.Session = store.Current()
		resp.Permissions = store.Permissions()
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) observe(outcome string) {
	if h.recorder != nil {
		h.recorder.ObserveLogin(outcome)
	}
}
