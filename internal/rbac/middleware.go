package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/fieldops/fieldops/internal/platform/httpx"
	"github.com/fieldops/fieldops/internal/shared"
)

// Middleware wires Gate checks into HTTP handlers.
type Middleware struct {
	Gate   *Gate
	Logger *slog.Logger
}

// RequireUser rejects requests without an authenticated session user.
func (m Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.currentUserID(r); !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAny ensures the current user holds at least one of the capabilities.
func (m Middleware) RequireAny(capabilities ...string) func(http.Handler) http.Handler {
	required := normalizeCapabilities(capabilities)
	return m.require(required, "rbac require any", m.Gate.AuthorizeAny)
}

// RequireAll ensures the current user holds every capability.
func (m Middleware) RequireAll(capabilities ...string) func(http.Handler) http.Handler {
	required := normalizeCapabilities(capabilities)
	return m.require(required, "rbac require all", m.Gate.AuthorizeAll)
}

type authorizeFunc func(ctx context.Context, userID int64, capabilities ...string) (bool, error)

func (m Middleware) require(required []string, op string, authorize authorizeFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := m.currentUserID(r)
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			granted, err := authorize(r.Context(), userID, required...)
			if err != nil {
				m.logger().Error(op, slog.Int64("user_id", userID), slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			if !granted {
				m.logger().Info("rbac denied",
					slog.Int64("user_id", userID),
					slog.String("required", strings.Join(required, ",")),
					slog.String("path", r.URL.Path),
				)
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentUserID returns the session user id, if any.
func (m Middleware) CurrentUserID(r *http.Request) (int64, bool) {
	return m.currentUserID(r)
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		m.logger().Error("rbac parse user id", slog.String("value", raw))
		return 0, false
	}
	return id, true
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// normalizeCapabilities trims and deduplicates, preserving order.
func normalizeCapabilities(capabilities []string) []string {
	seen := make(map[string]struct{}, len(capabilities))
	normalized := make([]string, 0, len(capabilities))
	for _, c := range capabilities {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		normalized = append(normalized, c)
	}
	return normalized
}
