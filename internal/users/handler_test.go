package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldops/internal/rbac"
	"github.com/fieldops/fieldops/internal/shared"
)

const (
	managerUser int64 = 1
	viewerUser  int64 = 2
	techUser    int64 = 3
	staffUser   int64 = 4
)

type handlerFixture struct {
	router   http.Handler
	repo     *fakeRepo
	sessions *shared.SessionManager
	roleID   uuid.UUID
	superID  uuid.UUID
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newFakeRepo()
	repo.addUser(managerUser, "manager@fieldops.local", StatusActive)
	repo.addUser(viewerUser, "viewer@fieldops.local", StatusActive)
	repo.addUser(techUser, "tech@fieldops.local", StatusActive)
	repo.addUser(staffUser, "staff@fieldops.local", StatusActive)
	roleID := uuid.New()
	repo.roles[roleID] = "Technician"
	superID := uuid.New()
	repo.roles[superID] = "Super Admin"

	subjects := map[int64]*rbac.Subject{
		managerUser: {UserID: managerUser, Role: &rbac.Role{Name: "Manager", Permissions: rbac.Document{
			"users": rbac.Group{"read": rbac.Leaf(true), "update": rbac.Leaf(true)},
			"roles": rbac.Group{"update": rbac.Leaf(true)},
		}}},
		staffUser: {UserID: staffUser, Role: &rbac.Role{Name: "Admin", Permissions: rbac.Document{
			"users": rbac.Leaf(true),
		}}},
		viewerUser: {UserID: viewerUser, Role: &rbac.Role{Name: "Viewer", Permissions: rbac.Document{
			"users": rbac.Group{"read": rbac.Leaf(true)},
		}}},
		techUser: {UserID: techUser},
	}
	loader := subjectLoaderFunc(func(ctx context.Context, userID int64) (*rbac.Subject, error) {
		subject, ok := subjects[userID]
		if !ok {
			return nil, rbac.ErrSubjectNotFound
		}
		return subject, nil
	})

	handler := NewHandler(nil, NewService(repo, nil, nil), rbac.Middleware{Gate: rbac.NewGate(loader, nil)})
	r := chi.NewRouter()
	r.Route("/users", handler.MountRoutes)

	return &handlerFixture{
		router:   r,
		repo:     repo,
		sessions: shared.NewSessionManager(client, "test_session", "secret", time.Hour, false),
		roleID:   roleID,
		superID:  superID,
	}
}

func (f *handlerFixture) do(t *testing.T, userID int64, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := f.sessions.Load(req.Context(), req)
	require.NoError(t, err)
	if userID > 0 {
		sess.SetUser(strconv.FormatInt(userID, 10))
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestHandlerListUsers(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, viewerUser, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		Users []User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Users, 4)
	require.Equal(t, "manager@fieldops.local", body.Users[0].Email)

	rr = f.do(t, techUser, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, 0, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandlerAssignRole(t *testing.T) {
	f := newHandlerFixture(t)
	body := `{"role_id":"` + f.roleID.String() + `"}`

	rr := f.do(t, viewerUser, http.MethodPut, "/users/3/role", body)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, managerUser, http.MethodPut, "/users/3/role", body)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	require.NotNil(t, f.repo.users[techUser].RoleID)
	require.Equal(t, f.roleID, *f.repo.users[techUser].RoleID)

	rr = f.do(t, managerUser, http.MethodPut, "/users/3/role", `{"role_id":null}`)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Nil(t, f.repo.users[techUser].RoleID)
}

func TestHandlerErrors(t *testing.T) {
	f := newHandlerFixture(t)

	cases := []struct {
		name     string
		target   string
		body     string
		wantCode int
	}{
		{"non numeric id", "/users/abc/role", `{"role_id":null}`, http.StatusNotFound},
		{"zero id", "/users/0/role", `{"role_id":null}`, http.StatusNotFound},
		{"unknown user", "/users/42/role", `{"role_id":null}`, http.StatusNotFound},
		{"unknown role", "/users/3/role", `{"role_id":"` + uuid.NewString() + `"}`, http.StatusBadRequest},
		{"unknown field", "/users/3/role", `{"role":"admin"}`, http.StatusBadRequest},
		{"malformed uuid", "/users/3/role", `{"role_id":"nope"}`, http.StatusBadRequest},
		{"unknown status", "/users/3/status", `{"status":"archived"}`, http.StatusBadRequest},
		{"status unknown user", "/users/42/status", `{"status":"active"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := f.do(t, managerUser, http.MethodPut, tc.target, tc.body)
			require.Equal(t, tc.wantCode, rr.Code, rr.Body.String())
			require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestHandlerSetStatus(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, managerUser, http.MethodPut, "/users/3/status", `{"status":"suspended"}`)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	require.Equal(t, StatusSuspended, f.repo.users[techUser].Status)
}

func TestHandlerAssignRoleRequiresRoleUpdate(t *testing.T) {
	f := newHandlerFixture(t)
	body := `{"role_id":"` + f.superID.String() + `"}`

	rr := f.do(t, staffUser, http.MethodPut, "/users/4/role", body)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Nil(t, f.repo.users[staffUser].RoleID)

	rr = f.do(t, staffUser, http.MethodPut, "/users/3/role", body)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Nil(t, f.repo.users[techUser].RoleID)

	rr = f.do(t, staffUser, http.MethodPut, "/users/3/status", `{"status":"suspended"}`)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, managerUser, http.MethodPut, "/users/3/role", body)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, f.superID, *f.repo.users[techUser].RoleID)
}
