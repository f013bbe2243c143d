package rbac

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ngo-fms/fms/internal/platform/httpx"
)

const (
	// DefaultLoginPath is where unauthenticated navigation is sent.
	DefaultLoginPath = "/login"
	// DefaultForbiddenPath is where unauthorized navigation is sent.
	DefaultForbiddenPath = "/not-authorized"
	// DefaultLandingPath is where navigation resumes when no destination was carried.
	DefaultLandingPath = "/dashboard"
	// FromParam is the query parameter carrying the destination to resume.
	FromParam = "from"
)

// DecisionRecorder receives every guard decision. observability.Metrics implements it.
type DecisionRecorder interface {
	ObserveGuardDecision(destination string, outcome string)
}

// Middleware wires guard decisions into HTTP handlers.
type Middleware struct {
	// Principal resolves the acting session for a request.
	Principal     func(r *http.Request) Principal
	Logger        *slog.Logger
	Recorder      DecisionRecorder
	LoginPath     string
	ForbiddenPath string
}

// Require guards a navigable destination. Denials become redirects.
func (m Middleware) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			destination := r.URL.RequestURI()
			decision := m.decide(r, req, destination)
			switch decision.Outcome {
			case Allow:
				next.ServeHTTP(w, r)
			case RedirectLogin:
				http.Redirect(w, r, LoginURL(m.loginPath(), decision.From), http.StatusSeeOther)
			default:
				http.Redirect(w, r, m.forbiddenPath(), http.StatusSeeOther)
			}
		})
	}
}

// RequireAPI guards a JSON endpoint. Denials become 401/403 problem responses.
func (m Middleware) RequireAPI(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := m.decide(r, req, r.URL.RequestURI())
			switch decision.Outcome {
			case Allow:
				next.ServeHTTP(w, r)
			case RedirectLogin:
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			default:
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have permission to perform this action")
			}
		})
	}
}

func (m Middleware) decide(r *http.Request, req Requirement, destination string) Decision {
	var principal Principal
	if m.Principal != nil {
		principal = m.Principal(r)
	}
	decision := Decide(principal, req, destination)
	if m.Recorder != nil {
		m.Recorder.ObserveGuardDecision(routeLabel(r), decision.Outcome.String())
	}
	if decision.Outcome == RedirectForbidden && m.Logger != nil {
		m.Logger.Info("rbac denied navigation", slog.String("path", r.URL.Path), slog.String("requirement", describe(req)))
	}
	return decision
}

func (m Middleware) loginPath() string {
	if m.LoginPath != "" {
		return m.LoginPath
	}
	return DefaultLoginPath
}

func (m Middleware) forbiddenPath() string {
	if m.ForbiddenPath != "" {
		return m.ForbiddenPath
	}
	return DefaultForbiddenPath
}

// LoginURL builds the login redirect carrying the destination to resume.
func LoginURL(loginPath, from string) string {
	if from == "" {
		return loginPath
	}
	return loginPath + "?" + url.Values{FromParam: []string{from}}.Encode()
}

// ResumePath validates a carried destination. Only local absolute paths are
// accepted; anything else resumes at fallback.
func ResumePath(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.IsAbs() || parsed.Host != "" {
		return fallback
	}
	return raw
}

func routeLabel(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

func describe(req Requirement) string {
	switch req.kind {
	case RequireRoleKind:
		return "role:" + string(req.role)
	case RequirePermissionKind:
		return "permission:" + string(req.permission)
	default:
		return "authenticated"
	}
}
