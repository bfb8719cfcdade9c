package role

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/consortia/consortia/internal/permission"
	"github.com/consortia/consortia/internal/platform/httpx"
	"github.com/consortia/consortia/internal/rule"
)

// Handler manages role endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	perms   permission.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, perms permission.Middleware) *Handler {
	return &Handler{logger: logger, service: service, perms: perms}
}

// MountRoutes registers role routes. The principal guard (user-only) is
// applied by the router; rule checks happen here.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.perms.Require("role", rule.OperationRead, rule.ScopeGlobal, rule.ScopeOrganization))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.perms.Require("role", rule.OperationCreate, rule.ScopeGlobal, rule.ScopeOrganization))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.perms.Require("role", rule.OperationUpdate, rule.ScopeGlobal, rule.ScopeOrganization))
		r.Patch("/{id}", h.update)
		r.Put("/{id}/rules", h.setRules)
		r.Post("/{id}/user/{userID}", h.assign)
		r.Delete("/{id}/user/{userID}", h.unassign)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.perms.Require("role", rule.OperationDelete, rule.ScopeGlobal, rule.ScopeOrganization))
		r.Delete("/{id}", h.remove)
	})
}

type roleView struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Rules       []ruleView `json:"rules,omitempty"`
}

type ruleView struct {
	ID        int64  `json:"id"`
	Resource  string `json:"resource"`
	Scope     string `json:"scope"`
	Operation string `json:"operation"`
}

func toView(role Role) roleView {
	v := roleView{ID: role.ID, Name: role.Name, Description: role.Description}
	for _, r := range role.Rules {
		v.Rules = append(v.Rules, ruleView{ID: r.ID, Resource: r.Resource, Scope: string(r.Scope), Operation: string(r.Operation)})
	}
	return v
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]roleView, 0, len(roles))
	for _, role := range roles {
		views = append(views, toView(role))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(*role))
}

type roleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrMalformedPayload)
		return
	}
	role, err := h.service.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toView(*role))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrMalformedPayload)
		return
	}
	role, err := h.service.Update(r.Context(), id, req.Name, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(*role))
}

func (h *Handler) setRules(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req struct {
		RuleIDs []int64 `json:"rule_ids"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrMalformedPayload)
		return
	}
	if err := h.service.SetRules(r.Context(), id, req.RuleIDs); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(*role))
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	roleID, userID, err := pathUserRole(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Assign(r.Context(), userID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	roleID, userID, err := pathUserRole(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Remove(r.Context(), userID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathUserRole(r *http.Request) (roleID, userID int64, err error) {
	roleID, err = pathID(r)
	if err != nil {
		return 0, 0, err
	}
	userID, err = strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		return 0, 0, httpx.ErrValidation
	}
	return roleID, userID, nil
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, httpx.ErrValidation
	}
	return id, nil
}
