package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/VoidMesh/voxelstore/internal/db"
	"github.com/VoidMesh/voxelstore/internal/world"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type Handler struct {
	manager   *world.Manager
	service   *world.Service
	generator world.Generator
}

func NewHandler(manager *world.Manager, service *world.Service, generator world.Generator) *Handler {
	return &Handler{
		manager:   manager,
		service:   service,
		generator: generator,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "voxelstore",
		"version":   "1.0.0",
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, h.manager.Stats())
}

func (h *Handler) GetChunk(w http.ResponseWriter, r *http.Request) {
	pos, err := parsePosition(r)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid position", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	snap, ok, err := h.manager.Snapshot(ctx, pos)
	if err != nil {
		log.Error("failed to load chunk", "error", err, "x", pos.X, "y", pos.Y, "z", pos.Z)
		h.renderStoreError(w, r, "failed to load chunk", err)
		return
	}
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "chunk not found", nil)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, summarize(snap))
}

func (h *Handler) GetColumn(w http.ResponseWriter, r *http.Request) {
	x, err := strconv.ParseInt(chi.URLParam(r, "x"), 10, 32)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid x coordinate", err)
		return
	}
	z, err := strconv.ParseInt(chi.URLParam(r, "z"), 10, 32)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid z coordinate", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pos := chunk.Position{X: int32(x), Z: int32(z)}
	column, err := h.manager.ColumnSnapshots(ctx, pos)
	if err != nil {
		log.Error("failed to load column", "error", err, "x", x, "z", z)
		h.renderStoreError(w, r, "failed to load column", err)
		return
	}

	origin := chunk.CoordOf(pos)
	response := ColumnResponse{X: origin.X, Z: origin.Z, Chunks: make([]ChunkSummary, len(column))}
	for i, snap := range column {
		response.Chunks[i] = summarize(snap)
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

func (h *Handler) GetBlock(w http.ResponseWriter, r *http.Request) {
	pos, err := parsePosition(r)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid position", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	block, ok, err := h.manager.BlockAt(ctx, pos)
	if err != nil {
		log.Error("failed to load chunk", "error", err, "x", pos.X, "y", pos.Y, "z", pos.Z)
		h.renderStoreError(w, r, "failed to load chunk", err)
		return
	}
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "chunk not found", nil)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, BlockResponse{Position: pos, Block: block})
}

func (h *Handler) SetBlock(w http.ResponseWriter, r *http.Request) {
	pos, err := parsePosition(r)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid position", err)
		return
	}

	var block chunk.Block
	if err := render.DecodeJSON(r.Body, &block); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	old, ok, err := h.manager.SetBlock(ctx, pos, block)
	if err != nil {
		log.Error("failed to set block", "error", err, "x", pos.X, "y", pos.Y, "z", pos.Z)
		h.renderStoreError(w, r, "failed to set block", err)
		return
	}
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "chunk not found", nil)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, BlockResponse{Position: pos, Block: block, Previous: &old})
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	center := chunk.Position{X: req.X, Y: req.Y, Z: req.Z}

	columns, err := h.manager.GenerateMissing(r.Context(), center, h.generator)
	if err != nil {
		log.Error("failed to generate chunks", "error", err, "x", center.X, "z", center.Z)
		h.renderStoreError(w, r, "failed to generate chunks", err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, GenerateResponse{Center: center, Columns: columns})
}

func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Flush(r.Context()); err != nil {
		log.Error("failed to flush world", "error", err)
		h.renderStoreError(w, r, "failed to flush world", err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, h.manager.Stats())
}

func (h *Handler) ListAnchors(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, h.service.Anchors())
}

func (h *Handler) WatchAnchor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var pos chunk.Position
	if err := render.DecodeJSON(r.Body, &pos); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	h.service.Watch(name, pos)
	log.Info("Watching anchor", "name", name, "position", pos)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]interface{}{
		"name":     name,
		"position": pos,
	})
}

func (h *Handler) UnwatchAnchor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	h.service.Unwatch(name)
	log.Info("Stopped watching anchor", "name", name)
	w.WriteHeader(http.StatusNoContent)
}

func parsePosition(r *http.Request) (chunk.Position, error) {
	var v [3]int32
	for i, key := range []string{"x", "y", "z"} {
		n, err := strconv.ParseInt(chi.URLParam(r, key), 10, 32)
		if err != nil {
			return chunk.Position{}, err
		}
		v[i] = int32(n)
	}
	return chunk.Position{X: v[0], Y: v[1], Z: v[2]}, nil
}

// renderStoreError maps cache and store failures onto response codes.
func (h *Handler) renderStoreError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		h.renderError(w, r, http.StatusGatewayTimeout, message, err)
	case errors.Is(err, db.ErrStorageUnavailable):
		h.renderError(w, r, http.StatusServiceUnavailable, message, err)
	case errors.Is(err, chunk.ErrCorruptData):
		h.renderError(w, r, http.StatusInternalServerError, "stored chunk is corrupt", err)
	default:
		h.renderError(w, r, http.StatusInternalServerError, message, err)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	errorResponse := ErrorResponse{
		Error:   message,
		Code:    status,
		Message: message,
	}

	if err != nil {
		log.Error("API error", "error", err, "message", message, "status", status)
		// Don't expose internal errors to the client
		if status >= 500 {
			errorResponse.Error = "Internal server error"
		}
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse)
}
