package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/turnover/internal/domain"
)

const (
	// imageField is the multipart field carrying a single photo.
	imageField = "image"

	// multipartOverhead is allowed on top of the image bytes for form
	// boundaries and headers.
	multipartOverhead = 1 << 20

	// multipartMemory is held in memory before parts spill to disk.
	multipartMemory = 32 << 20

	// maxJSONBody limits JSON request bodies.
	maxJSONBody = 1 << 20
)

// parseImageForm limits the body to files images of maxBytes each and
// parses the multipart form.
func parseImageForm(w http.ResponseWriter, r *http.Request, maxBytes int64, files int) error {
	const op = "handler.parse_form"

	r.Body = http.MaxBytesReader(w, r.Body, int64(files)*maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Errorf(domain.ETOOLARGE, op, "request exceeds %d bytes", tooLarge.Limit)
		}
		return domain.Wrap(err, domain.EINVALID, op, "expected a multipart/form-data body")
	}
	return nil
}

// formImage reads the named file from a parsed multipart form. found is
// false when the field is absent.
func formImage(r *http.Request, field string, maxBytes int64) (img domain.CapturedImage, found bool, err error) {
	const op = "handler.form_image"

	if r.MultipartForm == nil {
		return img, false, nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return img, false, nil
	}
	fh := headers[0]

	if fh.Size > maxBytes {
		return img, true, domain.Errorf(domain.ETOOLARGE, op,
			"%s is %d bytes; the limit is %d bytes", fh.Filename, fh.Size, maxBytes)
	}

	data, err := readPart(fh, maxBytes)
	if err != nil {
		return img, true, err
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	return domain.CapturedImage{
		Data:       data,
		MIMEType:   domain.NormalizeMIMEType(contentType),
		CapturedAt: capturedAt(r),
	}, true, nil
}

func readPart(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	const op = "handler.read_part"

	f, err := fh.Open()
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "failed to read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "failed to read uploaded file")
	}
	if int64(len(data)) > maxBytes {
		return nil, domain.Errorf(domain.ETOOLARGE, op, "%s exceeds %d bytes", fh.Filename, maxBytes)
	}
	return data, nil
}

// capturedAt honors an RFC 3339 capturedAt form value from clients that
// timestamp their stills, and falls back to the receive time.
func capturedAt(r *http.Request) time.Time {
	if v := r.FormValue("capturedAt"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// decodeJSON decodes a JSON request body into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	const op = "handler.decode_json"

	err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && allowEmpty:
		return nil
	case errors.Is(err, io.EOF):
		return domain.Invalid(op, "request body is required")
	default:
		return domain.Wrap(err, domain.EINVALID, op, fmt.Sprintf("invalid JSON body: %v", err))
	}
}

func sessionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, domain.Errorf(domain.EINVALID, "handler.session_id", "invalid session id %q", r.PathValue("id"))
	}
	return id, nil
}

func pathRoom(r *http.Request) (domain.Room, error) {
	room, err := domain.ParseRoom(r.PathValue("room"))
	if err != nil {
		return "", domain.Wrap(err, domain.EINVALID, "handler.room", fmt.Sprintf("unknown room %q", r.PathValue("room")))
	}
	return room, nil
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
