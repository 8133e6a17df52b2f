package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/turnover/internal/ai/mock"
	"github.com/DukeRupert/turnover/internal/baseline"
	"github.com/DukeRupert/turnover/internal/filestore/memory"
	"github.com/DukeRupert/turnover/internal/ingest"
	"github.com/DukeRupert/turnover/internal/inspection"
	"github.com/DukeRupert/turnover/internal/jobs"
	"github.com/DukeRupert/turnover/internal/service"
	"github.com/DukeRupert/turnover/internal/storage"
	"github.com/DukeRupert/turnover/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 90, G: 120, B: 150, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

var gifBytes = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\xff\xff\xff\x00\x00\x00!\xf9\x04\x01\x00\x00\x00\x00,\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02D\x01\x00;")

// testServer wires the real services over the in-memory file store and the
// mock AI provider.
type testServer struct {
	files    *memory.Store
	provider *mock.Provider
	sessions service.SessionService
	mux      *http.ServeMux
}

func newTestServer(t *testing.T, maxBytes int64) *testServer {
	t.Helper()
	logger := testLogger()

	files := memory.New()
	for _, name := range baseline.DefaultSet() {
		files.Seed(name, "image/jpeg", testJPEG(t, 8, 8))
	}

	client, err := ingest.New(files, ingest.Config{
		MaxBytes:        maxBytes,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 5,
	}, logger)
	require.NoError(t, err)

	evidence, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir(), BaseURL: "/files"}, logger)
	require.NoError(t, err)

	queue, err := worker.New(worker.Config{
		Concurrency:     1,
		QueueSize:       4,
		JobTimeout:      10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		MaxAttempts:     1,
		RetryBaseDelay:  time.Millisecond,
	}, logger)
	require.NoError(t, err)

	provider := mock.New(logger)
	engine := inspection.New(provider, nil, logger)
	resolver := baseline.NewStaticResolver("", baseline.DefaultSet())

	sessions := service.NewSessionService(service.SessionServiceParams{
		Ingest:    client,
		Files:     files,
		Engine:    engine,
		Baselines: resolver,
		Evidence:  evidence,
		Queue:     queue,
		TTL:       time.Hour,
		Logger:    logger,
	})

	queue.Register(jobs.NewAnalyzeSessionHandler(sessions, logger))
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", Health)
	NewUploadHandler(client, logger).RegisterRoutes(mux)
	NewCompareHandler(service.NewCompareService(files, resolver, engine, logger), logger).RegisterRoutes(mux)
	NewSessionHandler(sessions, maxBytes, logger).RegisterRoutes(mux)
	NewBaselineHandler(service.NewBaselineService(resolver, client, logger), maxBytes, logger).RegisterRoutes(mux)

	return &testServer{files: files, provider: provider, sessions: sessions, mux: mux}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

// filePart is one file field of a multipart request.
type filePart struct {
	field       string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, method, target string, parts ...filePart) *http.Request {
	t.Helper()
	return multipartForm(t, method, target, nil, parts...)
}

func multipartForm(t *testing.T, method, target string, values map[string]string, parts ...filePart) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.field+".bin"))
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, v any) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}
