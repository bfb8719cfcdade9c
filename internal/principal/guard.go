package principal

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/consortia/consortia/internal/platform/httpx"
)

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal in the context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// FromContext extracts the principal placed by the guard middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// Guard wires principal resolution in front of HTTP handlers.
type Guard struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// Allow returns middleware that resolves the bearer credential and admits
// only the given kinds. A missing or invalid credential yields a 401; a
// resolved principal of the wrong kind yields a 403. Both are deterministic
// typed rejections, never faults.
func (g Guard) Allow(kinds ...Kind) func(http.Handler) http.Handler {
	allowed := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		allowed[k] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := g.Resolver.Resolve(r.Context(), BearerToken(r))
			if err != nil {
				g.Logger.Info("credential rejected",
					slog.String("path", r.URL.Path),
					slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			if _, ok := allowed[p.Kind]; !ok {
				g.Logger.Info("principal kind not allowed",
					slog.String("path", r.URL.Path),
					slog.String("kind", string(p.Kind)))
				httpx.RespondError(w, ErrKindNotAllowed)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// BearerToken extracts the bearer credential from the Authorization header.
// Returns the empty string when the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
