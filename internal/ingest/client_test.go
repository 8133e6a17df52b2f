package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/filestore/memory"
)

var (
	jpegBytes = []byte("\xFF\xD8\xFF\xE0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")
	gifBytes  = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00")
)

var capturedAt = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() Config {
	return Config{
		MaxBytes:        domain.MaxImageSize,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 5,
	}
}

func newClient(t *testing.T, store *memory.Store, cfg Config) *Client {
	t.Helper()
	c, err := New(store, cfg, testLogger())
	require.NoError(t, err)
	return c
}

func jpeg() domain.CapturedImage {
	return domain.CapturedImage{Data: jpegBytes, MIMEType: "image/jpeg", CapturedAt: capturedAt}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero max bytes", Config{MaxBytes: 0, PollInterval: time.Second, MaxPollAttempts: 1}},
		{"zero interval", Config{MaxBytes: 1, PollInterval: 0, MaxPollAttempts: 1}},
		{"zero attempts", Config{MaxBytes: 1, PollInterval: time.Second, MaxPollAttempts: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestClient_Validate(t *testing.T) {
	c := newClient(t, memory.New(), Config{MaxBytes: 64, PollInterval: time.Millisecond, MaxPollAttempts: 1})

	tests := []struct {
		name    string
		img     domain.CapturedImage
		wantErr error
		code    string
	}{
		{"jpeg", domain.CapturedImage{Data: jpegBytes, MIMEType: "image/jpeg"}, nil, ""},
		{"jpg alias", domain.CapturedImage{Data: jpegBytes, MIMEType: "image/jpg"}, nil, ""},
		{"png", domain.CapturedImage{Data: pngBytes, MIMEType: "image/png"}, nil, ""},
		{"gif", domain.CapturedImage{Data: gifBytes, MIMEType: "image/gif"}, ErrUnsupportedType, domain.EINVALID},
		{"empty", domain.CapturedImage{MIMEType: "image/jpeg"}, ErrEmpty, domain.EINVALID},
		{"too large", domain.CapturedImage{Data: append(append([]byte{}, jpegBytes...), make([]byte, 64)...), MIMEType: "image/jpeg"}, ErrTooLarge, domain.ETOOLARGE},
		{"gif bytes labelled jpeg", domain.CapturedImage{Data: gifBytes, MIMEType: "image/jpeg"}, ErrUnsupportedType, domain.EINVALID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Validate(tt.img)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.code, domain.ErrorCode(err))
		})
	}
}

func TestClient_Upload_RejectsBeforeRemoteCall(t *testing.T) {
	store := memory.New()
	c := newClient(t, store, fastConfig())

	_, err := c.Upload(context.Background(), domain.CapturedImage{Data: gifBytes, MIMEType: "image/gif"}, "kitchen.gif")
	require.ErrorIs(t, err, ErrUnsupportedType)

	uploads, gets := store.Counts()
	assert.Zero(t, uploads)
	assert.Zero(t, gets)
}

func TestClient_Upload_PollsUntilReady(t *testing.T) {
	store := memory.New()
	store.ReadyAfter = 3
	c := newClient(t, store, fastConfig())

	asset, err := c.Upload(context.Background(), jpeg(), "kitchen.jpg")
	require.NoError(t, err)
	assert.True(t, asset.IsReady())
	assert.Equal(t, "image/jpeg", asset.MIMEType)

	uploads, gets := store.Counts()
	assert.Equal(t, 1, uploads)
	assert.Equal(t, 3, gets)
}

func TestClient_Upload_ReadyImmediatelySkipsPolling(t *testing.T) {
	store := memory.New()
	c := newClient(t, store, fastConfig())

	_, err := c.Upload(context.Background(), jpeg(), "kitchen.jpg")
	require.NoError(t, err)

	_, gets := store.Counts()
	assert.Zero(t, gets)
}

func TestClient_Upload_ProcessingFailed(t *testing.T) {
	store := memory.New()
	store.ReadyAfter = 1
	store.FailNames["kitchen.jpg"] = true
	c := newClient(t, store, fastConfig())

	_, err := c.Upload(context.Background(), jpeg(), "kitchen.jpg")
	require.ErrorIs(t, err, ErrProcessingFailed)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestClient_Upload_ProcessingTimeout(t *testing.T) {
	store := memory.New()
	store.ReadyAfter = -1
	c := newClient(t, store, fastConfig())

	_, err := c.Upload(context.Background(), jpeg(), "kitchen.jpg")
	require.ErrorIs(t, err, ErrProcessingTimeout)
	assert.Equal(t, domain.ETIMEOUT, domain.ErrorCode(err))

	_, gets := store.Counts()
	assert.Equal(t, 5, gets)
}

func TestClient_Upload_StoreError(t *testing.T) {
	store := memory.New()
	store.UploadErr = errors.New("connection reset")
	c := newClient(t, store, fastConfig())

	_, err := c.Upload(context.Background(), jpeg(), "kitchen.jpg")
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestClient_Upload_ContextCancelledWhilePolling(t *testing.T) {
	store := memory.New()
	store.ReadyAfter = -1
	c := newClient(t, store, Config{MaxBytes: domain.MaxImageSize, PollInterval: time.Hour, MaxPollAttempts: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Upload(ctx, jpeg(), "kitchen.jpg")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_UploadAll_IndependentOutcomes(t *testing.T) {
	store := memory.New()
	store.ReadyAfter = 2
	store.FailNames[DisplayName(domain.RoomBathroom, jpeg())] = true
	c := newClient(t, store, fastConfig())

	images := map[domain.Room]domain.CapturedImage{
		domain.RoomKitchen:    jpeg(),
		domain.RoomBathroom:   jpeg(),
		domain.RoomLivingRoom: {Data: pngBytes, MIMEType: "image/png", CapturedAt: capturedAt},
		domain.RoomBedroom:    {Data: gifBytes, MIMEType: "image/gif", CapturedAt: capturedAt},
	}

	outcomes := c.UploadAll(context.Background(), images)
	require.Len(t, outcomes, 4)

	assert.NoError(t, outcomes[domain.RoomKitchen].Err)
	assert.True(t, outcomes[domain.RoomKitchen].Asset.IsReady())
	assert.NoError(t, outcomes[domain.RoomLivingRoom].Err)
	assert.Equal(t, "image/png", outcomes[domain.RoomLivingRoom].Asset.MIMEType)
	assert.ErrorIs(t, outcomes[domain.RoomBathroom].Err, ErrProcessingFailed)
	assert.ErrorIs(t, outcomes[domain.RoomBedroom].Err, ErrUnsupportedType)

	uploads, _ := store.Counts()
	assert.Equal(t, 3, uploads)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "living-room-20260314T103000Z.jpg", DisplayName(domain.RoomLivingRoom, jpeg()))
	assert.Equal(t, "kitchen-20260314T103000Z.png",
		DisplayName(domain.RoomKitchen, domain.CapturedImage{MIMEType: "image/png", CapturedAt: capturedAt}))
}
