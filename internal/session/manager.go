package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ngo-fms/fms/internal/shared"
)

// Manager binds browser cookies to Redis backed session stores.
type Manager struct {
	client     *redis.Client
	cookieName string
	secret     []byte
	ttl        time.Duration
	secure     bool
	notifier   Notifier
	logger     *slog.Logger
}

// Handle is the per-request binding between a cookie id and its Store.
type Handle struct {
	ID        string
	Store     *Store
	persister *RedisPersister
	manager   *Manager
	isNew     bool
}

// NewManager constructs a Manager. Cookie values are signed with secret.
func NewManager(client *redis.Client, cookieName, secret string, ttl time.Duration, secure bool, notifier Notifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client:     client,
		cookieName: cookieName,
		secret:     []byte(secret),
		ttl:        ttl,
		secure:     secure,
		notifier:   notifier,
		logger:     logger,
	}
}

// Load resolves the request cookie and hydrates its store. Requests without a
// valid cookie get a fresh anonymous session. A hydration failure leaves the
// store anonymous and is logged rather than returned.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Handle, error) {
	id := ""
	cookie, err := r.Cookie(m.cookieName)
	switch {
	case err == nil:
		id, _ = m.verify(cookie.Value)
	case errors.Is(err, http.ErrNoCookie):
	default:
		return nil, err
	}
	isNew := id == ""
	if isNew {
		id = generateSessionID()
	}

	persister := NewRedisPersister(m.client, id, m.ttl)
	store := NewStore(persister, m.notifier, m.logger)
	if !isNew {
		if _, err := store.Hydrate(ctx); err != nil {
			m.logger.WarnContext(ctx, "session hydrate failed", slog.Any("error", err))
		}
	}
	return &Handle{ID: id, Store: store, persister: persister, manager: m, isNew: isNew}, nil
}

// Commit writes the session cookie and extends the lifetime of an authenticated
// session. The snapshot itself was already persisted by the Store.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, h *Handle) error {
	if h == nil {
		return nil
	}
	if h.Store.IsAuthenticated() {
		if err := h.persister.Touch(ctx); err != nil {
			return err
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    m.sign(h.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(m.ttl),
	})
	return nil
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// IsNew reports whether the request arrived without a usable session cookie.
func (h *Handle) IsNew() bool {
	return h != nil && h.isNew
}

// Renew moves the handle to a fresh session id and drops the hash stored under
// the old one. The cookie written on commit carries the new id.
func (h *Handle) Renew(ctx context.Context) error {
	if h == nil || h.manager == nil {
		return nil
	}
	if !h.isNew {
		if err := h.persister.Delete(ctx); err != nil {
			return fmt.Errorf("session: renew: %w: %w", shared.ErrPersistence, err)
		}
	}
	h.ID = generateSessionID()
	h.persister = NewRedisPersister(h.manager.client, h.ID, h.manager.ttl)
	h.Store.rebind(h.persister)
	return nil
}

func (m *Manager) sign(id string) string {
	if len(m.secret) == 0 {
		return id
	}
	return id + "." + m.mac(id)
}

func (m *Manager) verify(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	if len(m.secret) == 0 {
		return value, true
	}
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(m.mac(id))) {
		return "", false
	}
	return id, true
}

func (m *Manager) mac(id string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
