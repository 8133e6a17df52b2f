package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/service"
)

// SessionHandler exposes the inspection session flow.
type SessionHandler struct {
	sessions service.SessionService
	maxBytes int64
	logger   *slog.Logger
}

// NewSessionHandler creates a new SessionHandler. maxBytes limits each
// uploaded photo.
func NewSessionHandler(sessions service.SessionService, maxBytes int64, logger *slog.Logger) *SessionHandler {
	if maxBytes <= 0 {
		maxBytes = domain.MaxImageSize
	}
	return &SessionHandler{
		sessions: sessions,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// RegisterRoutes registers all session routes with the provided mux.
//
// Routes:
// - POST   /sessions                              -> Create
// - GET    /sessions/{id}                         -> Show
// - DELETE /sessions/{id}                         -> Discard
// - POST   /sessions/{id}/rooms                   -> CaptureAll
// - PUT    /sessions/{id}/rooms/{room}            -> CaptureRoom
// - GET    /sessions/{id}/rooms/{room}/thumbnail  -> Thumbnail
// - POST   /sessions/{id}/analyze                 -> Analyze
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /sessions", h.Create)
	mux.HandleFunc("GET /sessions/{id}", h.Show)
	mux.HandleFunc("DELETE /sessions/{id}", h.Discard)
	mux.HandleFunc("POST /sessions/{id}/rooms", h.CaptureAll)
	mux.HandleFunc("PUT /sessions/{id}/rooms/{room}", h.CaptureRoom)
	mux.HandleFunc("GET /sessions/{id}/rooms/{room}/thumbnail", h.Thumbnail)
	mux.HandleFunc("POST /sessions/{id}/analyze", h.Analyze)
}

// CreateSessionRequest is the optional body of POST /sessions.
type CreateSessionRequest struct {
	PropertyID string `json:"propertyId"`
}

// =============================================================================
// POST /sessions - Start an inspection
// =============================================================================

// Create starts a session for the property. An empty body uses the
// default property.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	session, err := h.sessions.Start(r.Context(), req.PropertyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", "/sessions/"+session.ID.String())
	writeJSON(w, http.StatusCreated, session)
}

// Show returns the session, including the result once analysis finished.
func (h *SessionHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	session, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Discard drops the session.
func (h *SessionHandler) Discard(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.sessions.Discard(r.Context(), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Capture
// =============================================================================

// CaptureRoom records the photo in the "image" field for one room.
func (h *SessionHandler) CaptureRoom(w http.ResponseWriter, r *http.Request) {
	const op = "handler.capture_room"

	id, err := sessionID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
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

	session, err := h.sessions.CaptureRoom(r.Context(), id, room, img)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// CaptureAll records several rooms at once. Each photo is sent in a field
// named after its room, in any form ParseRoom accepts (kitchen,
// living-room, livingRoom).
func (h *SessionHandler) CaptureAll(w http.ResponseWriter, r *http.Request) {
	const op = "handler.capture_all"

	id, err := sessionID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := parseImageForm(w, r, h.maxBytes, domain.RoomCount); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	images := make(map[domain.Room]domain.CapturedImage)
	for field := range r.MultipartForm.File {
		room, err := domain.ParseRoom(field)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.EINVALID, op, "unknown room field %q", field))
			return
		}
		if _, dup := images[room]; dup {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.EINVALID, op, "%s sent more than once", room))
			return
		}
		img, _, err := formImage(r, field, h.maxBytes)
		if err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		images[room] = img
	}
	if len(images) == 0 {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "No images uploaded: send one field per room"))
		return
	}

	session, err := h.sessions.CaptureAll(r.Context(), id, images)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Thumbnail streams the archived thumbnail of a room's current photo.
func (h *SessionHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	room, err := pathRoom(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	body, info, err := h.sessions.Thumbnail(r.Context(), id, room)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defer body.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("thumbnail write failed", "session_id", id, "room", room, "error", err)
	}
}

// =============================================================================
// POST /sessions/{id}/analyze
// =============================================================================

// Analyze runs the analysis. With ?async=true the analysis is queued and
// the session is returned with 202; poll GET /sessions/{id} for the result.
func (h *SessionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if queryBool(r, "async") {
		session, err := h.sessions.EnqueueAnalysis(r.Context(), id)
		if err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		w.Header().Set("Location", "/sessions/"+id.String())
		writeJSON(w, http.StatusAccepted, session)
		return
	}

	result, err := h.sessions.StartAnalysis(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
