package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/DukeRupert/turnover/internal/domain"
)

// Uploader sends a photo to the remote file store and waits until it is
// ready. *ingest.Client implements it.
type Uploader interface {
	Upload(ctx context.Context, img domain.CapturedImage, displayName string) (domain.RemoteAsset, error)
	MaxBytes() int64
}

// UploadHandler handles single photo uploads.
type UploadHandler struct {
	uploader Uploader
	logger   *slog.Logger
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(uploader Uploader, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		uploader: uploader,
		logger:   logger,
	}
}

// RegisterRoutes registers the upload route.
//
// Routes:
// - POST /upload -> Upload
func (h *UploadHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /upload", h.Upload)
}

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	FileName string `json:"fileName"`
	URI      string `json:"uri,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
}

// Upload accepts one jpeg or png in the "image" field and returns the
// remote file name once the store has processed it.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	const op = "handler.upload"
	maxBytes := h.uploader.MaxBytes()

	if err := parseImageForm(w, r, maxBytes, 1); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	img, found, err := formImage(r, imageField, maxBytes)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if !found {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "No image uploaded: send the photo in the \"image\" field"))
		return
	}

	displayName := "upload-" + uuid.NewString() + domain.ExtensionForImageType(img.MIMEType)
	asset, err := h.uploader.Upload(r.Context(), img, displayName)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("photo uploaded", "file_name", asset.Name, "size", img.Size(), "mime_type", img.MIMEType)

	writeJSON(w, http.StatusOK, UploadResponse{
		FileName: asset.Name,
		URI:      asset.URI,
		MIMEType: asset.MIMEType,
	})
}
