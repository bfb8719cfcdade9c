package token

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/consortia/consortia/internal/platform/httpx"
	"github.com/consortia/consortia/internal/principal"
)

// Handler manages credential issuance endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   principal.Guard
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard principal.Guard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers token routes. User and node issuance are
// unauthenticated (they are how a credential is obtained); container
// issuance requires an authenticated node.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/user", h.userToken)
	r.Post("/node", h.nodeToken)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Allow(principal.KindNode))
		r.Post("/container", h.containerToken)
	})
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *Handler) userToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Username == "" || req.Password == "" {
		httpx.RespondError(w, httpx.ErrMalformedPayload)
		return
	}
	token, err := h.service.UserToken(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Info("user login rejected", slog.String("username", req.Username), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) nodeToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.APIKey == "" {
		httpx.RespondError(w, httpx.ErrMalformedPayload)
		return
	}
	token, err := h.service.NodeToken(r.Context(), req.APIKey)
	if err != nil {
		h.logger.Info("node login rejected", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) containerToken(w http.ResponseWriter, r *http.Request) {
	node, ok := principal.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, principal.ErrMissingCredential)
		return
	}
	var req struct {
		TaskID int64 `json:"task_id"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.TaskID == 0 {
		httpx.RespondError(w, httpx.ErrMalformedPayload)
		return
	}
	token, err := h.service.ContainerToken(r.Context(), node, req.TaskID)
	if err != nil {
		h.logger.Info("container token rejected",
			slog.Int64("node_id", node.NodeID),
			slog.Int64("task_id", req.TaskID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}
