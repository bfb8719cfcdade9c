package permission

import (
	"log/slog"
	"net/http"

	"github.com/consortia/consortia/internal/platform/httpx"
	"github.com/consortia/consortia/internal/principal"
	"github.com/consortia/consortia/internal/rule"
)

// Middleware composes permission checks in front of HTTP handlers. It runs
// after the principal guard, which must already have stored a principal in
// the request context.
type Middleware struct {
	Engine *Engine
	Logger *slog.Logger
}

// Require admits only user principals holding the rule at any of the given
// scopes. Node and container principals pass through untouched: their access
// is decided by the guard's allow-set, not the rule catalog.
func (m Middleware) Require(resource string, operation rule.Operation, scopes ...rule.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principal.FromContext(r.Context())
			if !ok {
				httpx.RespondError(w, principal.ErrMissingCredential)
				return
			}
			if p.Kind != principal.KindUser {
				next.ServeHTTP(w, r)
				return
			}
			_, allowed, err := m.Engine.AuthorizeAny(r.Context(), p, resource, operation, scopes...)
			if err != nil {
				m.Logger.Error("permission check",
					slog.String("resource", resource),
					slog.String("operation", string(operation)),
					slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !allowed {
				httpx.RespondError(w, httpx.ErrAuthorizationDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
