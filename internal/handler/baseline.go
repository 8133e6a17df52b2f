package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/service"
)

// BaselineHandler exposes the reference photos of each property.
type BaselineHandler struct {
	baselines service.BaselineService
	maxBytes  int64
	logger    *slog.Logger
}

// NewBaselineHandler creates a new BaselineHandler.
func NewBaselineHandler(baselines service.BaselineService, maxBytes int64, logger *slog.Logger) *BaselineHandler {
	if maxBytes <= 0 {
		maxBytes = domain.MaxImageSize
	}
	return &BaselineHandler{
		baselines: baselines,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// RegisterRoutes registers the baseline routes.
//
// Routes:
// - GET /properties/{id}/baselines        -> List
// - PUT /properties/{id}/baselines/{room} -> Register
func (h *BaselineHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /properties/{id}/baselines", h.List)
	mux.HandleFunc("PUT /properties/{id}/baselines/{room}", h.Register)
}

// BaselinesResponse is returned by GET /properties/{id}/baselines.
type BaselinesResponse struct {
	PropertyID string             `json:"propertyId"`
	Baselines  domain.BaselineSet `json:"baselines"`
	Missing    []domain.Room      `json:"missing,omitempty"`
}

// List returns the resolved baseline of every room.
func (h *BaselineHandler) List(w http.ResponseWriter, r *http.Request) {
	propertyID := r.PathValue("id")

	set, err := h.baselines.Get(r.Context(), propertyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, BaselinesResponse{
		PropertyID: propertyID,
		Baselines:  set,
		Missing:    set.Missing(),
	})
}

// Register uploads the photo in the "image" field as the room's new
// baseline.
func (h *BaselineHandler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handler.register_baseline"

	room, err := pathRoom(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := parseImageForm(w, r, h.maxBytes, 1); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	img, found, err := formImage(r, imageField, h.maxBytes)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if !found {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "No image uploaded: send the photo in the \"image\" field"))
		return
	}

	asset, err := h.baselines.Register(r.Context(), r.PathValue("id"), room, img)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}
