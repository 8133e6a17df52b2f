// Package domain contains core business types and interfaces.
//
// This file defines captured room photos and the image constraints shared
// by the capture gate, the ingestion client, and the HTTP upload handlers.
package domain

import (
	"mime"
	"strings"
	"time"
)

// SupportedImageTypes maps MIME types to their human-readable names.
// Only JPEG and PNG are accepted by the remote file store pipeline.
var SupportedImageTypes = map[string]string{
	"image/jpeg": "JPEG",
	"image/png":  "PNG",
}

const (
	// MaxImageSize is the maximum allowed size for uploaded images (10MB).
	MaxImageSize = 10 * 1024 * 1024

	// CaptureJPEGQuality is the JPEG quality used when a still is taken from
	// the camera feed (0-100).
	CaptureJPEGQuality = 95

	// ThumbnailMaxWidth is the maximum width for generated thumbnails.
	ThumbnailMaxWidth = 320

	// ThumbnailMaxHeight is the maximum height for generated thumbnails.
	ThumbnailMaxHeight = 320

	// ThumbnailJPEGQuality is the JPEG quality for thumbnail generation (0-100).
	ThumbnailJPEGQuality = 85
)

// CapturedImage is a single still photo of a room.
type CapturedImage struct {
	Data       []byte    // Encoded image bytes
	MIMEType   string    // image/jpeg or image/png
	CapturedAt time.Time // When the still was taken
}

// Size returns the payload size in bytes.
func (c CapturedImage) Size() int64 {
	return int64(len(c.Data))
}

// NormalizeMIMEType lowercases a content type, strips parameters, and
// maps the non-standard image/jpg alias to image/jpeg.
func NormalizeMIMEType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	mt = strings.ToLower(mt)
	if mt == "image/jpg" || mt == "image/pjpeg" {
		return "image/jpeg"
	}
	return mt
}

// IsSupportedImageType returns true if the content type is JPEG or PNG.
func IsSupportedImageType(contentType string) bool {
	_, ok := SupportedImageTypes[NormalizeMIMEType(contentType)]
	return ok
}

// ExtensionForImageType returns the file extension for a supported image type.
func ExtensionForImageType(contentType string) string {
	if NormalizeMIMEType(contentType) == "image/png" {
		return ".png"
	}
	return ".jpg"
}
