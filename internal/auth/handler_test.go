package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngo-fms/fms/internal/auth"
	"github.com/ngo-fms/fms/internal/rbac"
	"github.com/ngo-fms/fms/internal/session"
	"github.com/ngo-fms/fms/internal/shared"
	"github.com/ngo-fms/fms/internal/users"
	_ "github.com/ngo-fms/fms/testing"
)

type countingRecorder struct {
	outcomes map[string]int
}

func (c *countingRecorder) ObserveLogin(outcome string) {
	c.outcomes[outcome]++
}

type authFixture struct {
	router   http.Handler
	recorder *countingRecorder
	manager  *session.Manager
}

func newAuthFixture(t *testing.T, loginLimit int) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	manager := session.NewManager(client, "fms_session", "secret", time.Hour, false, nil, nil)
	service := users.NewService(users.NewMemoryRepository(), auth.PlainMatcher{}, nil)
	verifier := auth.NewVerifier(users.SeedAccounts(), service, auth.PlainMatcher{}, auth.RequireApproved)
	recorder := &countingRecorder{outcomes: map[string]int{}}
	handler := auth.NewHandler(nil, verifier, service, recorder, loginLimit)
	guard := rbac.Middleware{Principal: session.PrincipalFromRequest}

	r := chi.NewRouter()
	r.Use(manager.Middleware)
	handler.MountPages(r)
	r.Route("/auth", handler.MountRoutes)
	r.With(guard.Require(rbac.RequirePermission(rbac.PermViewAllInvoices))).Get("/invoices", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("invoices"))
	})
	return &authFixture{router: r, recorder: recorder, manager: manager}
}

func (f *authFixture) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, strings.NewReader(string(payload)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func (f *authFixture) sessionCookie(t *testing.T, res *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range res.Result().Cookies() {
		if c.Name == f.manager.CookieName() {
			return c
		}
	}
	t.Fatalf("session cookie not set")
	return nil
}

func loginBody(email, password string, role rbac.Role, from string) map[string]string {
	return map[string]string{"email": email, "password": password, "role": string(role), "from": from}
}

func TestLoginResumesRequestedDestination(t *testing.T) {
	f := newAuthFixture(t, 0)

	res := f.do(t, http.MethodGet, "/invoices", nil, nil)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login?from=%2Finvoices", res.Header().Get("Location"))
	cookie := f.sessionCookie(t, res)

	res = f.do(t, http.MethodPost, "/auth/login", loginBody("admin@gmail.com", "password123", rbac.RoleAdmin, "/invoices"), cookie)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var payload struct {
		Role     string `json:"role"`
		Redirect string `json:"redirect"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	assert.Equal(t, "admin", payload.Role)
	assert.Equal(t, "/invoices", payload.Redirect)

	signedIn := f.sessionCookie(t, res)
	assert.NotEqual(t, cookie.Value, signedIn.Value)

	res = f.do(t, http.MethodGet, "/invoices", nil, signedIn)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "invoices", res.Body.String())
	assert.Equal(t, 1, f.recorder.outcomes[auth.OutcomeSuccess])

	res = f.do(t, http.MethodGet, "/invoices", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, res.Code)
}

func TestLoginFallsBackToLandingForForeignDestination(t *testing.T) {
	f := newAuthFixture(t, 0)

	res := f.do(t, http.MethodPost, "/auth/login", loginBody("volunteer@gmail.com", "password123", rbac.RoleVolunteer, "https://evil.example/phish"), nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"redirect":"/dashboard"`)
}

func TestLoginRoleMismatchIsRejectedGenerically(t *testing.T) {
	f := newAuthFixture(t, 0)

	res := f.do(t, http.MethodPost, "/auth/login", loginBody("admin@gmail.com", "password123", rbac.RoleVolunteer, ""), nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), shared.CredentialRejectedMessage)
	cookie := f.sessionCookie(t, res)

	wrongPassword := f.do(t, http.MethodPost, "/auth/login", loginBody("admin@gmail.com", "nope", rbac.RoleAdmin, ""), cookie)
	require.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, res.Body.String(), wrongPassword.Body.String())

	me := f.do(t, http.MethodGet, "/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"isAuthenticated":false`)
	assert.Equal(t, 2, f.recorder.outcomes[auth.OutcomeRejected])
}

func TestLoginRequiresFields(t *testing.T) {
	f := newAuthFixture(t, 0)

	res := f.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "admin@gmail.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLoginRateLimited(t *testing.T) {
	f := newAuthFixture(t, 2)
	body := loginBody("admin@gmail.com", "wrong-password", rbac.RoleAdmin, "")

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/auth/login", body, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/auth/login", body, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/auth/login", body, nil).Code)
}

func TestPublicOnlyPagesRedirectAuthenticatedSessions(t *testing.T) {
	f := newAuthFixture(t, 0)

	res := f.do(t, http.MethodGet, "/login?from=/reports", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"from":"/reports"`)

	res = f.do(t, http.MethodPost, "/auth/login", loginBody("superadmin@gmail.com", "password123", rbac.RoleSuperAdmin, ""), nil)
	require.Equal(t, http.StatusOK, res.Code)
	cookie := f.sessionCookie(t, res)

	for _, path := range []string{"/login", "/signup"} {
		res = f.do(t, http.MethodGet, path, nil, cookie)
		assert.Equal(t, http.StatusSeeOther, res.Code, path)
		assert.Equal(t, rbac.DefaultLandingPath, res.Header().Get("Location"), path)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	f := newAuthFixture(t, 0)

	res := f.do(t, http.MethodPost, "/auth/login", loginBody("volunteer@gmail.com", "password123", rbac.RoleVolunteer, ""), nil)
	require.Equal(t, http.StatusOK, res.Code)
	cookie := f.sessionCookie(t, res)

	me := f.do(t, http.MethodGet, "/auth/me", nil, cookie)
	assert.Contains(t, me.Body.String(), `"create_invoices"`)

	res = f.do(t, http.MethodPost, "/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, res.Code)

	res = f.do(t, http.MethodGet, "/invoices", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, res.Code)
}

func TestSignupCreatesPendingEntry(t *testing.T) {
	f := newAuthFixture(t, 0)
	body := map[string]string{
		"fullName":        "Amina Yusuf",
		"email":           "amina@ngo.org",
		"password":        "longenough",
		"confirmPassword": "longenough",
	}

	res := f.do(t, http.MethodPost, "/auth/signup", body, nil)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	assert.Contains(t, res.Body.String(), `"email":"amina@ngo.org"`)
	assert.Contains(t, res.Body.String(), `"status":"pending"`)

	res = f.do(t, http.MethodPost, "/auth/signup", body, nil)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = f.do(t, http.MethodPost, "/auth/login", loginBody("amina@ngo.org", "longenough", rbac.RoleVolunteer, ""), nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestSignupValidation(t *testing.T) {
	f := newAuthFixture(t, 0)

	res := f.do(t, http.MethodPost, "/auth/signup", map[string]string{
		"fullName":        "Amina Yusuf",
		"email":           "amina@ngo.org",
		"password":        "longenough",
		"confirmPassword": "different1",
	}, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "passwords do not match")
}

func TestSessionCookieSignatureIsChecked(t *testing.T) {
	f := newAuthFixture(t, 0)

	res := f.do(t, http.MethodPost, "/auth/login", loginBody("admin@gmail.com", "password123", rbac.RoleAdmin, ""), nil)
	require.Equal(t, http.StatusOK, res.Code)
	cookie := f.sessionCookie(t, res)

	id, _, ok := strings.Cut(cookie.Value, ".")
	require.True(t, ok)
	forged := &http.Cookie{Name: cookie.Name, Value: id + ".forged"}

	me := f.do(t, http.MethodGet, "/auth/me", nil, forged)
	assert.Contains(t, me.Body.String(), `"isAuthenticated":false`)
}
