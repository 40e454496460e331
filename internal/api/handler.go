package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/planweave/tally/internal/config"
	"github.com/planweave/tally/internal/engine"
	"github.com/planweave/tally/internal/relgraph"
	"github.com/planweave/tally/internal/variable"
)

const maxBatchItems = 500

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	loader *config.Loader
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine, loader *config.Loader) http.Handler {
	h := &Handler{eng: eng, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /v1/items/{id}/summary", h.itemSummary)
	h.mux.HandleFunc("GET /v1/items/{id}/summary/breakdown", h.itemBreakdown)
	h.mux.HandleFunc("POST /v1/items/{id}/variables", h.setVariables)
	h.mux.HandleFunc("POST /v1/relationships", h.createRelationship)
	h.mux.HandleFunc("PATCH /v1/relationships/{id}", h.updateMultiplier)
	h.mux.HandleFunc("DELETE /v1/relationships/{id}", h.removeRelationship)
	h.mux.HandleFunc("POST /v1/updates/batch", h.batchUpdate)
	h.mux.HandleFunc("POST /v1/updates/validate", h.validateUpdate)
	h.mux.HandleFunc("POST /v1/sync", h.synchronize)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /v1/stats", h.stats)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// GET /v1/items/{id}/summary — aggregated summary (cached).
func (h *Handler) itemSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"item_id": id,
		"summary": h.eng.Summary(id),
	})
}

// GET /v1/items/{id}/summary/breakdown — per-relationship contributions.
func (h *Handler) itemBreakdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.Breakdown(r.PathValue("id")))
}

type setVariablesRequest struct {
	Variables  []variable.Variable `json:"variables"`
	ChangeType string              `json:"change_type"`
}

// POST /v1/items/{id}/variables — replace declared variables and
// propagate.
func (h *Handler) setVariables(w http.ResponseWriter, r *http.Request) {
	var req setVariablesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.ChangeType == "" {
		req.ChangeType = "variables"
	}
	updated, err := h.eng.SetVariables(r.Context(), r.PathValue("id"), req.Variables, req.ChangeType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeUpdated(w, updated)
}

type createRelationshipRequest struct {
	RelationshipID string   `json:"relationship_id"`
	ParentItemID   string   `json:"parent_item_id"`
	ChildItemID    string   `json:"child_item_id"`
	Multiplier     *float64 `json:"multiplier"`
}

// POST /v1/relationships — insert an edge; the server fills the ID
// when omitted.
func (h *Handler) createRelationship(w http.ResponseWriter, r *http.Request) {
	var req createRelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.RelationshipID == "" {
		req.RelationshipID = uuid.New().String()
	}
	multiplier := 1.0
	if req.Multiplier != nil {
		multiplier = *req.Multiplier
	}
	rel, err := h.eng.CreateRelationship(req.RelationshipID, req.ParentItemID, req.ChildItemID, multiplier)
	if err != nil {
		writeError(w, structuralStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

type updateMultiplierRequest struct {
	Multiplier float64 `json:"multiplier"`
}

// PATCH /v1/relationships/{id} — change the multiplier and return
// recomputed summaries.
func (h *Handler) updateMultiplier(w http.ResponseWriter, r *http.Request) {
	var req updateMultiplierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	updated, err := h.eng.UpdateMultiplier(r.Context(), r.PathValue("id"), req.Multiplier)
	if err != nil {
		writeError(w, structuralStatus(err), err.Error())
		return
	}
	writeUpdated(w, updated)
}

// DELETE /v1/relationships/{id}
func (h *Handler) removeRelationship(w http.ResponseWriter, r *http.Request) {
	if !h.eng.RemoveRelationship(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "relationship not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

type batchUpdateRequest struct {
	ItemIDs []string `json:"item_ids"`
}

// POST /v1/updates/batch — recompute the union of affected sets.
func (h *Handler) batchUpdate(w http.ResponseWriter, r *http.Request) {
	var req batchUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(req.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, "item_ids must not be empty")
		return
	}
	if len(req.ItemIDs) > maxBatchItems {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(req.ItemIDs), maxBatchItems))
		return
	}
	updated, err := h.eng.BatchUpdate(r.Context(), req.ItemIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeUpdated(w, updated)
}

type validateUpdateRequest struct {
	ItemID   string           `json:"item_id"`
	Expected variable.Summary `json:"expected"`
}

// POST /v1/updates/validate — diff a fresh recomputation against an
// expected summary.
func (h *Handler) validateUpdate(w http.ResponseWriter, r *http.Request) {
	var req validateUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}
	writeJSON(w, http.StatusOK, h.eng.ValidateUpdate(req.ItemID, req.Expected))
}

// POST /v1/sync — ensure every declared parent reference has an edge.
func (h *Handler) synchronize(w http.ResponseWriter, r *http.Request) {
	created := h.eng.SynchronizeRelationships()
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

// POST /v1/config/reload — re-read the seed config from disk and
// reseed the engine.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeError(w, http.StatusServiceUnavailable, "no config loader attached")
		return
	}
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.eng.LoadSeed(cfg)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"items":    len(cfg.Items),
	})
}

// GET /v1/stats — graph metrics and cache stats.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.Stats())
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func structuralStatus(err error) int {
	switch {
	case errors.Is(err, relgraph.ErrRelationshipNotFound):
		return http.StatusNotFound
	case errors.Is(err, relgraph.ErrCircularReference), errors.Is(err, relgraph.ErrSelfReference):
		return http.StatusConflict
	case errors.Is(err, relgraph.ErrInvalidParameters):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
