package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/service"
)

// CompareHandler compares already uploaded photos without a session.
type CompareHandler struct {
	compare service.CompareService
	logger  *slog.Logger
}

// NewCompareHandler creates a new CompareHandler.
func NewCompareHandler(compare service.CompareService, logger *slog.Logger) *CompareHandler {
	return &CompareHandler{
		compare: compare,
		logger:  logger,
	}
}

// RegisterRoutes registers the compare route.
//
// Routes:
// - POST /compare -> Compare
func (h *CompareHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /compare", h.Compare)
}

// CompareRequest is the body of POST /compare.
type CompareRequest struct {
	KitchenFilename    string `json:"kitchenFilename"`
	BathroomFilename   string `json:"bathroomFilename"`
	LivingRoomFilename string `json:"livingRoomFilename"`
	BedroomFilename    string `json:"bedroomFilename"`
	PropertyID         string `json:"propertyId,omitempty"`
}

// Filenames maps the request fields to rooms.
func (c CompareRequest) Filenames() map[domain.Room]string {
	return map[domain.Room]string{
		domain.RoomKitchen:    c.KitchenFilename,
		domain.RoomBathroom:   c.BathroomFilename,
		domain.RoomLivingRoom: c.LivingRoomFilename,
		domain.RoomBedroom:    c.BedroomFilename,
	}
}

// Compare runs the four room comparisons and the summary.
func (h *CompareHandler) Compare(w http.ResponseWriter, r *http.Request) {
	const op = "handler.compare"

	var req CompareRequest
	if err := decodeJSON(r, &req, false); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	filenames := req.Filenames()
	var verr *domain.ValidationError
	for _, room := range domain.AllRooms() {
		if strings.TrimSpace(filenames[room]) == "" {
			field := room.Key() + "Filename"
			if verr == nil {
				verr = domain.NewValidationError(op, field, "required")
			} else {
				verr.Fields[field] = "required"
			}
		}
	}
	if verr != nil {
		ValidationErrorResponse(w, r, h.logger, verr)
		return
	}

	result, err := h.compare.Compare(r.Context(), service.CompareRequest{
		PropertyID: strings.TrimSpace(req.PropertyID),
		Filenames:  filenames,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
