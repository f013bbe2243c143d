package perf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ngo-fms/fms/internal/rbac"
	"github.com/ngo-fms/fms/internal/session"
)

type staticPrincipal rbac.Role

func (p staticPrincipal) IsAuthenticated() bool { return p != "" }

func (p staticPrincipal) CurrentRole() (rbac.Role, bool) { return rbac.Role(p), p != "" }

func BenchmarkDecide(b *testing.B) {
	p := staticPrincipal(rbac.RoleAdmin)
	req := rbac.RequirePermission(rbac.PermViewAllFunds)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if rbac.Decide(p, req, "/accounts").Outcome != rbac.Allow {
			b.Fatal("admin must reach /accounts")
		}
	}
}

func BenchmarkGuardedRequest(b *testing.B) {
	guard := rbac.Middleware{Principal: func(*http.Request) rbac.Principal { return staticPrincipal(rbac.RoleVolunteer) }}
	h := guard.Require(rbac.RequirePermission(rbac.PermViewAllInvoices))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/invoices", nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req)
	}
}

func BenchmarkSessionHydrate(b *testing.B) {
	mr := miniredis.RunT(b)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	persister := session.NewRedisPersister(client, "bench", time.Hour)
	require.NoError(b, session.NewStore(persister, nil, nil).Login(ctx, rbac.RoleAdmin, "admin@gmail.com"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store := session.NewStore(persister, nil, nil)
		if _, err := store.Hydrate(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func TestDecideStaysWithinBudget(t *testing.T) {
	result := testing.Benchmark(BenchmarkDecide)
	if result.N == 0 {
		t.Skip("benchmark did not run")
	}
	if perOp := time.Duration(result.NsPerOp()); perOp > 50*time.Microsecond {
		t.Fatalf("guard decision too slow: %s per op", perOp)
	}
}
