package task

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/consortia/consortia/internal/permission"
	"github.com/consortia/consortia/internal/platform/httpx"
	"github.com/consortia/consortia/internal/principal"
	"github.com/consortia/consortia/internal/rule"
)

// Handler manages task and result endpoints. The routes mirror what the
// relay forwards to: POST /task, GET /task/{id}, GET /result/{id}, and the
// node-only PATCH /result/{id}.
type Handler struct {
	logger   *slog.Logger
	repo     Repository
	perms    permission.Middleware
	guard    principal.Guard
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, repo Repository, perms permission.Middleware, guard principal.Guard) *Handler {
	return &Handler{
		logger:   logger,
		repo:     repo,
		perms:    perms,
		guard:    guard,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountTaskRoutes registers /task routes.
func (h *Handler) MountTaskRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Allow(principal.KindUser, principal.KindContainer))
		r.Use(h.perms.Require("task", rule.OperationCreate, rule.ScopeGlobal, rule.ScopeOrganization, rule.ScopeCollaboration, rule.ScopeOwn))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Allow(principal.KindUser, principal.KindNode, principal.KindContainer))
		r.Use(h.perms.Require("task", rule.OperationRead, rule.ScopeGlobal, rule.ScopeOrganization, rule.ScopeCollaboration, rule.ScopeOwn))
		r.Get("/{id}", h.get)
	})
}

// MountResultRoutes registers /result routes.
func (h *Handler) MountResultRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Allow(principal.KindUser, principal.KindNode, principal.KindContainer))
		r.Use(h.perms.Require("result", rule.OperationRead, rule.ScopeGlobal, rule.ScopeOrganization, rule.ScopeOwn))
		r.Get("/{id}", h.getResult)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Allow(principal.KindNode))
		r.Patch("/{id}", h.storeResult)
	})
}

// createTaskRequest is the wire shape shared with the relay: each
// organization entry carries that organization's (sealed) input.
type createTaskRequest struct {
	Name          string `json:"name"`
	Image         string `json:"image" validate:"required"`
	Description   string `json:"description"`
	Organizations []struct {
		ID    int64  `json:"id" validate:"required"`
		Input string `json:"input" validate:"required"`
	} `json:"organizations" validate:"required,min=1,dive"`
}

type assignmentView struct {
	OrganizationID int64  `json:"organization_id"`
	ResultID       int64  `json:"result_id"`
	Input          string `json:"input,omitempty"`
}

type taskView struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	Image         string           `json:"image"`
	Description   string           `json:"description,omitempty"`
	Completed     bool             `json:"completed"`
	Organizations []assignmentView `json:"organizations"`
}

func toTaskView(t Task, includeInput bool) taskView {
	v := taskView{ID: t.ID, Name: t.Name, Image: t.Image, Description: t.Description, Completed: t.Completed}
	for _, a := range t.Organizations {
		av := assignmentView{OrganizationID: a.OrganizationID, ResultID: a.ResultID}
		if includeInput {
			av.Input = a.Input
		}
		v.Organizations = append(v.Organizations, av)
	}
	return v
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, principal.ErrMissingCredential)
		return
	}
	var req createTaskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrMalformedPayload)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrMalformedPayload, err))
		return
	}
	// A container may only spawn subtasks within its own task's scope.
	t := &Task{
		Name:          req.Name,
		Image:         req.Image,
		Description:   req.Description,
		InitiatorKind: string(p.Kind),
	}
	switch p.Kind {
	case principal.KindUser:
		t.InitiatorID = p.UserID
	case principal.KindContainer:
		t.InitiatorID = p.NodeID
		t.ParentTaskID = p.TaskID
	}
	for _, org := range req.Organizations {
		t.Organizations = append(t.Organizations, Assignment{OrganizationID: org.ID, Input: org.Input})
	}
	created, err := h.repo.CreateTask(r.Context(), t)
	if err != nil {
		h.logger.Error("create task", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("task created",
		slog.Int64("task_id", created.ID),
		slog.String("initiator_kind", created.InitiatorKind),
		slog.Int("organizations", len(created.Organizations)))
	httpx.JSON(w, http.StatusCreated, toTaskView(*created, false))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	t, err := h.repo.GetTask(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if t == nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	p, _ := principal.FromContext(r.Context())
	// Only the executing node sees the sealed input of its own assignment.
	includeInput := p.Kind == principal.KindNode
	httpx.JSON(w, http.StatusOK, toTaskView(*t, includeInput))
}

type resultView struct {
	ID             int64  `json:"id"`
	TaskID         int64  `json:"task_id"`
	OrganizationID int64  `json:"organization_id"`
	Result         string `json:"result,omitempty"`
	Log            string `json:"log,omitempty"`
	Finished       bool   `json:"finished"`
}

func toResultView(res Result) resultView {
	return resultView{
		ID:             res.ID,
		TaskID:         res.TaskID,
		OrganizationID: res.OrganizationID,
		Result:         res.Result,
		Log:            res.Log,
		Finished:       !res.FinishedAt.IsZero() && res.FinishedAt.Unix() != 0,
	}
}

func (h *Handler) getResult(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	res, err := h.repo.GetResult(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if res == nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, toResultView(*res))
}

func (h *Handler) storeResult(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, principal.ErrMissingCredential)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req struct {
		Result string `json:"result"`
		Log    string `json:"log"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Result == "" {
		httpx.RespondError(w, httpx.ErrMalformedPayload)
		return
	}
	existing, err := h.repo.GetResult(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if existing == nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if existing.OrganizationID != p.OrganizationID {
		httpx.RespondError(w, httpx.ErrAuthorizationDenied)
		return
	}
	res, err := h.repo.StoreResult(r.Context(), id, req.Result, req.Log, time.Now().UTC())
	if err != nil {
		h.logger.Error("store result", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if res == nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, toResultView(*res))
}
