package session

import (
	"context"
	"net/http"

	"github.com/ngo-fms/fms/internal/rbac"
)

type handleContextKey struct{}

// ContextWithHandle stores the request session binding in context.
func ContextWithHandle(ctx context.Context, h *Handle) context.Context {
	return context.WithValue(ctx, handleContextKey{}, h)
}

// HandleFromContext extracts the session binding from context.
func HandleFromContext(ctx context.Context) *Handle {
	h, _ := ctx.Value(handleContextKey{}).(*Handle)
	return h
}

// StoreFromContext returns the request's Store, or nil when no session middleware ran.
func StoreFromContext(ctx context.Context) *Store {
	if h := HandleFromContext(ctx); h != nil {
		return h.Store
	}
	return nil
}

// PrincipalFromRequest resolves the acting principal for the guard. A request
// without a store is anonymous.
func PrincipalFromRequest(r *http.Request) rbac.Principal {
	if store := StoreFromContext(r.Context()); store != nil {
		return store
	}
	return Anonymous()
}
