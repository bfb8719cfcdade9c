package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/consortia/consortia/internal/organization"
	"github.com/consortia/consortia/internal/permission"
	"github.com/consortia/consortia/internal/platform/httpx"
	"github.com/consortia/consortia/internal/principal"
	"github.com/consortia/consortia/internal/role"
	"github.com/consortia/consortia/internal/rule"
	"github.com/consortia/consortia/internal/task"
	"github.com/consortia/consortia/internal/token"
)

// RouterParams groups dependencies for building the coordinator router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *CoordinatorConfig
	Guard               principal.Guard
	Permissions         permission.Middleware
	Catalog             *rule.Catalog
	TokenHandler        *token.Handler
	OrganizationHandler *organization.Handler
	RoleHandler         *role.Handler
	TaskHandler         *task.Handler
}

// NewRouter constructs the coordinator's chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(params.Config.IsProduction(), params.Config.RequestTimeout) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/token", func(r chi.Router) {
		r.Use(httprate.LimitByIP(params.Config.TokenRateLimit, params.Config.TokenRateWindow))
		params.TokenHandler.MountRoutes(r)
	})

	r.Route("/organization", func(r chi.Router) {
		r.Use(params.Guard.Allow(principal.KindUser, principal.KindNode, principal.KindContainer))
		params.OrganizationHandler.MountRoutes(r)
	})

	r.Route("/role", func(r chi.Router) {
		r.Use(params.Guard.Allow(principal.KindUser))
		params.RoleHandler.MountRoutes(r)
	})

	// The catalog is immutable; expose it read-only for administration.
	r.Route("/rule", func(r chi.Router) {
		r.Use(params.Guard.Allow(principal.KindUser))
		r.Use(params.Permissions.Require("rule", rule.OperationRead, rule.ScopeGlobal))
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			type ruleView struct {
				ID          int64  `json:"id"`
				Resource    string `json:"resource"`
				Scope       string `json:"scope"`
				Operation   string `json:"operation"`
				Description string `json:"description,omitempty"`
			}
			views := make([]ruleView, 0, params.Catalog.Len())
			for _, item := range params.Catalog.All() {
				views = append(views, ruleView{
					ID:          item.ID,
					Resource:    item.Resource,
					Scope:       string(item.Scope),
					Operation:   string(item.Operation),
					Description: item.Description,
				})
			}
			httpx.JSON(w, http.StatusOK, views)
		})
	})

	r.Route("/task", params.TaskHandler.MountTaskRoutes)
	r.Route("/result", params.TaskHandler.MountResultRoutes)

	return r
}
