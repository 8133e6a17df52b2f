package storage

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/DukeRupert/turnover/internal/domain"
)

// DetectContentType determines the MIME type of an uploaded file.
//
// Detection priority:
// 1. providedType, unless empty or the generic application/octet-stream
// 2. the file extension, via mime.TypeByExtension
// 3. sniffing the first 512 bytes of data
// 4. application/octet-stream
//
// The result is normalized, so "image/jpg" comes back as "image/jpeg".
func DetectContentType(providedType, filename string, data []byte) string {
	if providedType != "" && !isOctetStream(providedType) {
		return domain.NormalizeMIMEType(providedType)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return domain.NormalizeMIMEType(contentType)
	}

	if len(data) > 0 {
		return domain.NormalizeMIMEType(http.DetectContentType(data))
	}

	return "application/octet-stream"
}

// IsAllowedImageType checks if a content type may be archived as room
// evidence. Only JPEG and PNG are accepted.
func IsAllowedImageType(contentType string) bool {
	return domain.IsSupportedImageType(contentType)
}

func isOctetStream(contentType string) bool {
	return domain.NormalizeMIMEType(contentType) == "application/octet-stream"
}
