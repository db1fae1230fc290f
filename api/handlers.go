// Package api exposes the target-planning surface over REST. Handlers
// stay thin: decode, delegate to the planner or a repository, encode.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fundwise/fundsheet/entity"
	"github.com/fundwise/fundsheet/pkg/di"
	"github.com/fundwise/fundsheet/repository"
	"github.com/fundwise/fundsheet/service"
	"github.com/fundwise/fundsheet/store"
)

// Handler holds the container and planner every endpoint works through.
type Handler struct {
	container *di.Container
	planner   *service.TargetPlanner
	log       *zap.Logger
}

// NewHandler builds the handler set over one container.
func NewHandler(c *di.Container, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		container: c,
		planner:   service.NewTargetPlanner(c, log),
		log:       log,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			h.log.Warn("failed to encode response", zap.Error(err))
		}
	}
}

// respondError maps domain and store errors onto HTTP statuses.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var (
		validationErr *repository.ValidationError
		notFoundErr   *repository.NotFoundError
		duplicateErr  *repository.DuplicateError
		rateErr       *store.RateLimitError
		authErr       *store.AuthError
		permErr       *store.PermissionError
		connErr       *store.ConnectionError
		storeErr      *store.StoreError
	)
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	case errors.As(err, &duplicateErr):
		status = http.StatusConflict
	case errors.As(err, &rateErr):
		status = http.StatusTooManyRequests
	case errors.As(err, &authErr), errors.As(err, &permErr),
		errors.As(err, &connErr), errors.As(err, &storeErr):
		status = http.StatusBadGateway
	}

	if status >= 500 {
		h.log.Error("request failed", zap.Error(err))
	}
	h.respond(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// Health reports per-table store health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	results := h.container.HealthCheckAll(r.Context())
	status := http.StatusOK
	if !results["overall"] {
		status = http.StatusServiceUnavailable
	}
	h.respond(w, status, results)
}

// ListTargets lists targets, optionally filtered by fiscal_year and
// state query parameters.
func (h *Handler) ListTargets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	repo := h.container.StateTargets()

	var (
		targets []entity.StateTarget
		err     error
	)
	fiscalYear := r.URL.Query().Get("fiscal_year")
	stateCode := r.URL.Query().Get("state")
	switch {
	case stateCode != "" && fiscalYear != "":
		var target entity.StateTarget
		target, err = repo.FindByStateAndYear(ctx, stateCode, fiscalYear)
		if err == nil {
			targets = []entity.StateTarget{target}
		}
	case fiscalYear != "":
		targets, err = repo.FindByFiscalYear(ctx, fiscalYear)
	case stateCode != "":
		targets, err = repo.FindByState(ctx, stateCode)
	default:
		targets, err = repo.GetAll(ctx)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, toTargetResponses(targets))
}

// CreateTarget creates a target through the planner, so a missing
// amount defaults from the previous year's funding.
func (h *Handler) CreateTarget(w http.ResponseWriter, r *http.Request) {
	var req createTargetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.StateCode == "" || req.FiscalYear == "" {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "state_code and fiscal_year are required"})
		return
	}

	var custom *decimal.Decimal
	if req.TargetAmount != nil {
		d := decimal.NewFromFloat(*req.TargetAmount)
		custom = &d
	}

	target, err := h.planner.EnsureTarget(r.Context(), req.StateCode, req.FiscalYear, custom, req.Description, req.Priority)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, toTargetResponse(target))
}

// GetTarget fetches one target by id.
func (h *Handler) GetTarget(w http.ResponseWriter, r *http.Request) {
	target, err := h.container.StateTargets().GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, toTargetResponse(target))
}

// UpdateTarget applies a partial update to one target.
func (h *Handler) UpdateTarget(w http.ResponseWriter, r *http.Request) {
	var req updateTargetRequest
	if !h.decode(w, r, &req) {
		return
	}

	target, err := h.container.StateTargets().Update(r.Context(), chi.URLParam(r, "id"),
		func(t entity.StateTarget) (entity.StateTarget, error) {
			if req.TargetAmount != nil {
				t.TargetAmount = decimal.NewFromFloat(*req.TargetAmount).Round(2)
			}
			if req.Description != nil {
				t.Description = *req.Description
			}
			if req.Priority != nil {
				t.Priority = *req.Priority
			}
			t.Touch()
			return t, nil
		})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, toTargetResponse(target))
}

// DeleteTarget removes one target by id.
func (h *Handler) DeleteTarget(w http.ResponseWriter, r *http.Request) {
	if err := h.container.StateTargets().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

// Comparison reports target vs actual per state for a fiscal year.
func (h *Handler) Comparison(w http.ResponseWriter, r *http.Request) {
	results, err := h.planner.TargetVsActual(r.Context(), chi.URLParam(r, "fiscalYear"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, toComparisonResponses(results))
}

// Attention lists states under the achievement threshold. threshold is
// an optional query parameter in (0, 1].
func (h *Handler) Attention(w http.ResponseWriter, r *http.Request) {
	threshold := 0.0
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 || parsed > 1 {
			h.respond(w, http.StatusBadRequest, errorResponse{Error: "threshold must be a number in (0, 1]"})
			return
		}
		threshold = parsed
	}

	items, err := h.planner.StatesNeedingAttention(r.Context(), chi.URLParam(r, "fiscalYear"), threshold)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, toAttentionResponses(items))
}

// InitializeTargets seeds one target per known state for a fiscal year.
func (h *Handler) InitializeTargets(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.FiscalYear == "" {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "fiscal_year is required"})
		return
	}

	results, err := h.planner.InitializeTargets(r.Context(), req.FiscalYear, req.Force)
	if err != nil {
		h.respondError(w, err)
		return
	}

	out := make(map[string]targetResponse, len(results))
	for code, target := range results {
		out[code] = toTargetResponse(target)
	}
	h.respond(w, http.StatusOK, out)
}

// ClearCaches drops every cached table so the next reads hit the store.
func (h *Handler) ClearCaches(w http.ResponseWriter, r *http.Request) {
	if err := h.container.ClearAllCaches(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]string{"status": "cleared"})
}
