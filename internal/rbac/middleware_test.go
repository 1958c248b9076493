package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldops/internal/shared"
)

func requestAs(t *testing.T, userID string) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	if userID != "" {
		sess.SetUser(userID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestMiddlewareRequireAll(t *testing.T) {
	loader := &stubLoader{subjects: map[int64]*Subject{}}
	loader.setRole(1, Document{"roles": Group{"read": Leaf(true)}})
	m := Middleware{Gate: NewGate(loader, nil)}

	cases := []struct {
		name   string
		user   string
		caps   []string
		status int
	}{
		{"no session user", "", []string{CapRolesRead}, http.StatusUnauthorized},
		{"malformed user id", "abc", []string{CapRolesRead}, http.StatusUnauthorized},
		{"granted", "1", []string{CapRolesRead}, http.StatusOK},
		{"denied", "1", []string{CapRolesRead, CapRolesDelete}, http.StatusForbidden},
		{"unknown user", "2", []string{CapRolesRead}, http.StatusForbidden},
		{"nothing required", "", []string{" "}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			m.RequireAll(tc.caps...)(okHandler).ServeHTTP(rr, requestAs(t, tc.user))
			require.Equal(t, tc.status, rr.Code)
		})
	}
}

func TestMiddlewareRequireAny(t *testing.T) {
	loader := &stubLoader{subjects: map[int64]*Subject{}}
	loader.setRole(1, Document{"roles": Group{"read": Leaf(true)}})
	m := Middleware{Gate: NewGate(loader, nil)}

	rr := httptest.NewRecorder()
	m.RequireAny(CapRolesDelete, CapRolesRead)(okHandler).ServeHTTP(rr, requestAs(t, "1"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	m.RequireAny(CapRolesDelete, CapUsersRead)(okHandler).ServeHTTP(rr, requestAs(t, "1"))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestMiddlewareLoaderFailure(t *testing.T) {
	m := Middleware{Gate: NewGate(&stubLoader{err: errors.New("db down")}, nil)}

	rr := httptest.NewRecorder()
	m.RequireAll(CapRolesRead)(okHandler).ServeHTTP(rr, requestAs(t, "1"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestMiddlewareRequireUser(t *testing.T) {
	m := Middleware{}

	rr := httptest.NewRecorder()
	m.RequireUser(okHandler).ServeHTTP(rr, requestAs(t, ""))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	m.RequireUser(okHandler).ServeHTTP(rr, requestAs(t, "7"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	m.RequireUser(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestNormalizeCapabilities(t *testing.T) {
	require.Equal(t, []string{"roles:read", "roles:update"},
		normalizeCapabilities([]string{" roles:read ", "", "roles:update", "roles:read"}))
}
