package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/filestore"
)

func upload(t *testing.T, s *Store, name string) domain.RemoteAsset {
	t.Helper()
	asset, err := s.Upload(context.Background(), filestore.UploadParams{
		Data:        bytes.NewReader([]byte("img")),
		MIMEType:    "image/jpeg",
		DisplayName: name,
	})
	require.NoError(t, err)
	return asset
}

func TestStore_BecomesReadyAfterChecks(t *testing.T) {
	s := New()
	s.ReadyAfter = 2

	asset := upload(t, s, "kitchen.jpg")
	assert.Equal(t, domain.AssetStatePending, asset.State)

	got, err := s.Get(context.Background(), asset.Name)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStatePending, got.State)

	got, err = s.Get(context.Background(), asset.Name)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStateReady, got.State)

	data, ok := s.Data(asset.Name)
	require.True(t, ok)
	assert.Equal(t, []byte("img"), data)
}

func TestStore_ImmediateAndFailing(t *testing.T) {
	s := New()
	s.FailNames["bad.jpg"] = true

	assert.Equal(t, domain.AssetStateReady, upload(t, s, "good.jpg").State)
	assert.Equal(t, domain.AssetStateFailed, upload(t, s, "bad.jpg").State)
}

func TestStore_NeverReady(t *testing.T) {
	s := New()
	s.ReadyAfter = -1

	asset := upload(t, s, "slow.jpg")
	for i := 0; i < 5; i++ {
		got, err := s.Get(context.Background(), asset.Name)
		require.NoError(t, err)
		assert.Equal(t, domain.AssetStatePending, got.State)
	}
}

func TestStore_SeedAndNotFound(t *testing.T) {
	s := New()
	s.Seed("files/ogk0546aag6u", "image/jpeg", nil)

	got, err := s.Get(context.Background(), "files/ogk0546aag6u")
	require.NoError(t, err)
	assert.True(t, got.IsReady())

	_, err = s.Get(context.Background(), "files/nope")
	assert.True(t, filestore.IsNotFound(err))

	uploads, gets := s.Counts()
	assert.Equal(t, 0, uploads)
	assert.Equal(t, 2, gets)
}
