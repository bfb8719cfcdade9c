package organization

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/consortia/consortia/internal/permission"
	"github.com/consortia/consortia/internal/platform/httpx"
	"github.com/consortia/consortia/internal/principal"
	"github.com/consortia/consortia/internal/rule"
	"github.com/consortia/consortia/internal/sealbox"
)

// Handler manages organization endpoints.
type Handler struct {
	logger *slog.Logger
	repo   Repository
	perms  permission.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, repo Repository, perms permission.Middleware) *Handler {
	return &Handler{logger: logger, repo: repo, perms: perms}
}

// MountRoutes registers organization routes. The router guards this subtree
// for all three principal kinds: nodes read keys of collaborating parties,
// the relay reads keys on behalf of containers, and users administer.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.perms.Require("organization", rule.OperationRead, rule.ScopeGlobal, rule.ScopeOrganization, rule.ScopeCollaboration))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.perms.Require("organization", rule.OperationCreate, rule.ScopeGlobal))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.perms.Require("organization", rule.OperationUpdate, rule.ScopeGlobal, rule.ScopeOrganization))
		r.Patch("/{id}", h.update)
	})
}

// organizationView is the wire shape; public_key is the field the relay's
// key lookup client reads.
type organizationView struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	Domain    string `json:"domain,omitempty"`
	PublicKey string `json:"public_key"`
}

func toView(org Organization) organizationView {
	return organizationView{ID: org.ID, Name: org.Name, Address: org.Address, Domain: org.Domain, PublicKey: org.PublicKey}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.repo.ListOrganizations(r.Context())
	if err != nil {
		h.logger.Error("list organizations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]organizationView, 0, len(orgs))
	for _, org := range orgs {
		views = append(views, toView(org))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	org, err := h.repo.GetOrganization(r.Context(), id)
	if err != nil {
		h.logger.Error("get organization", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if org == nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(*org))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		Domain  string `json:"domain"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Name == "" {
		httpx.RespondError(w, httpx.ErrMalformedPayload)
		return
	}
	org, err := h.repo.CreateOrganization(r.Context(), req.Name, req.Address, req.Domain)
	if err != nil {
		h.logger.Error("create organization", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toView(*org))
}

// update sets the organization's public key. Nodes may rotate their own
// organization's key; users need the update rule.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req struct {
		PublicKey string `json:"public_key"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.PublicKey == "" {
		httpx.RespondError(w, httpx.ErrMalformedPayload)
		return
	}
	if err := sealbox.ValidatePublicKey(req.PublicKey); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	p, _ := principal.FromContext(r.Context())
	if p.Kind == principal.KindNode && p.OrganizationID != id {
		httpx.RespondError(w, httpx.ErrAuthorizationDenied)
		return
	}
	org, err := h.repo.SetPublicKey(r.Context(), id, req.PublicKey)
	if err != nil {
		h.logger.Error("set public key", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if org == nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	h.logger.Info("organization key rotated", slog.Int64("id", id))
	httpx.JSON(w, http.StatusOK, toView(*org))
}
