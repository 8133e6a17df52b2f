package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"strings"
	"time"

	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/handler"
)

type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

var newAPIClient = func() *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// apiError is a non-2xx response decoded from the server's error envelope.
type apiError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

func (e *apiError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, key := range slices.Sorted(maps.Keys(e.Fields)) {
			parts = append(parts, key+" "+e.Fields[key])
		}
		msg += " (" + strings.Join(parts, ", ") + ")"
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, msg)
}

func (c *apiClient) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable at %s (%w)", c.baseURL, err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, "", nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	if body == nil {
		return c.do(ctx, http.MethodPost, path, "", nil)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(data))
}

func (c *apiClient) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodDelete, path, "", nil)
}

// imagePart is one file field of a multipart upload.
type imagePart struct {
	Field    string
	FileName string
	Image    domain.CapturedImage
}

// sendImages sends the parts as a multipart form. The capture time of the
// first part is sent as the capturedAt field.
func (c *apiClient) sendImages(ctx context.Context, method, path string, parts ...imagePart) (*http.Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if len(parts) > 0 && !parts[0].Image.CapturedAt.IsZero() {
		if err := mw.WriteField("capturedAt", parts[0].Image.CapturedAt.UTC().Format(time.RFC3339)); err != nil {
			return nil, err
		}
	}

	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.Field, p.FileName))
		h.Set("Content-Type", p.Image.MIMEType)
		w, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(p.Image.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return c.do(ctx, method, path, mw.FormDataContentType(), &buf)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func decodeError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
	}

	var envelope handler.JSONError
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Message == "" {
		return &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return &apiError{
		Status:  resp.StatusCode,
		Code:    envelope.Error.Code,
		Message: envelope.Error.Message,
		Fields:  envelope.Error.Fields,
	}
}
