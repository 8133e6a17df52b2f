package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func testImage() CapturedImage {
	return CapturedImage{Data: []byte{0xFF, 0xD8, 0xFF}, MIMEType: "image/jpeg", CapturedAt: testNow}
}

func TestNewSession(t *testing.T) {
	s := NewSession("prop-1", BaselineSet{}, testNow)

	assert.Equal(t, SessionStatusCollecting, s.Status)
	require.Len(t, s.Slots, RoomCount)
	for i, room := range AllRooms() {
		assert.Equal(t, room, s.Slots[i].Room)
		assert.Equal(t, SlotStateEmpty, s.Slots[i].State)
	}
	assert.False(t, s.Complete())
	assert.Equal(t, AllRooms(), s.PendingRooms())
}

func TestSession_CaptureUploadProgression(t *testing.T) {
	s := NewSession("prop-1", BaselineSet{}, testNow)

	for _, room := range AllRooms() {
		gen, err := s.Capture(room, testImage(), testNow)
		require.NoError(t, err)
		assert.Equal(t, 1, gen)
		assert.Equal(t, SlotStateCaptured, s.Slot(room).State)
		assert.False(t, s.Complete())

		ok := s.RecordUpload(room, gen, RemoteAsset{Name: "files/" + room.Slug(), State: AssetStateReady}, testNow)
		require.True(t, ok)
		assert.Equal(t, SlotStateUploaded, s.Slot(room).State)
	}

	assert.True(t, s.Complete())
	assert.NoError(t, s.ReadyForAnalysis())
}

func TestSession_RetakeResetsSlot(t *testing.T) {
	s := NewSession("prop-1", BaselineSet{}, testNow)

	gen1, err := s.Capture(RoomKitchen, testImage(), testNow)
	require.NoError(t, err)
	require.True(t, s.RecordUpload(RoomKitchen, gen1, RemoteAsset{Name: "files/old", State: AssetStateReady}, testNow))

	gen2, err := s.Capture(RoomKitchen, testImage(), testNow)
	require.NoError(t, err)
	assert.Equal(t, gen1+1, gen2)

	slot := s.Slot(RoomKitchen)
	assert.Equal(t, SlotStateCaptured, slot.State)
	assert.Nil(t, slot.Asset)
	assert.NotNil(t, slot.Image)
}

func TestSession_StaleUploadIgnored(t *testing.T) {
	s := NewSession("prop-1", BaselineSet{}, testNow)

	gen1, _ := s.Capture(RoomBathroom, testImage(), testNow)
	gen2, _ := s.Capture(RoomBathroom, testImage(), testNow)

	assert.False(t, s.RecordUpload(RoomBathroom, gen1, RemoteAsset{Name: "files/stale"}, testNow))
	assert.False(t, s.RecordUploadFailure(RoomBathroom, gen1, errors.New("boom"), testNow))
	assert.Equal(t, SlotStateCaptured, s.Slot(RoomBathroom).State)

	assert.True(t, s.RecordUpload(RoomBathroom, gen2, RemoteAsset{Name: "files/fresh"}, testNow))
	assert.Equal(t, "files/fresh", s.Slot(RoomBathroom).Asset.Name)
}

func TestSession_ReadyForAnalysis(t *testing.T) {
	t.Run("missing room blocks analysis", func(t *testing.T) {
		s := NewSession("prop-1", BaselineSet{}, testNow)
		for _, room := range []Room{RoomKitchen, RoomBathroom, RoomLivingRoom} {
			gen, _ := s.Capture(room, testImage(), testNow)
			s.RecordUpload(room, gen, RemoteAsset{Name: "x"}, testNow)
		}

		err := s.ReadyForAnalysis()
		require.Error(t, err)
		assert.Equal(t, EINVALID, ErrorCode(err))
		assert.Contains(t, err.Error(), "Bedroom")
	})

	t.Run("in-flight upload blocks analysis", func(t *testing.T) {
		s := NewSession("prop-1", BaselineSet{}, testNow)
		for _, room := range AllRooms() {
			s.Capture(room, testImage(), testNow)
		}
		assert.Error(t, s.ReadyForAnalysis())
	})

	t.Run("failed upload does not block analysis", func(t *testing.T) {
		s := NewSession("prop-1", BaselineSet{}, testNow)
		for _, room := range AllRooms() {
			gen, _ := s.Capture(room, testImage(), testNow)
			if room == RoomBathroom {
				s.RecordUploadFailure(room, gen, errors.New("network unreachable"), testNow)
				continue
			}
			s.RecordUpload(room, gen, RemoteAsset{Name: "x"}, testNow)
		}

		assert.NoError(t, s.ReadyForAnalysis())
		assert.False(t, s.Complete())
		assert.Equal(t, "network unreachable", s.Slot(RoomBathroom).Error)
	})
}

func TestSession_CaptureRejectedAfterAnalysisStarts(t *testing.T) {
	s := NewSession("prop-1", BaselineSet{}, testNow)
	require.NoError(t, s.TransitionTo(SessionStatusAnalyzing, testNow))

	_, err := s.Capture(RoomKitchen, testImage(), testNow)
	require.Error(t, err)
	assert.Equal(t, ECONFLICT, ErrorCode(err))

	require.NoError(t, s.TransitionTo(SessionStatusFailed, testNow))
	_, err = s.Capture(RoomKitchen, testImage(), testNow)
	require.NoError(t, err)
	assert.Equal(t, SessionStatusCollecting, s.Status)
}

func TestSession_CaptureValidation(t *testing.T) {
	s := NewSession("prop-1", BaselineSet{}, testNow)

	_, err := s.Capture("Garage", testImage(), testNow)
	assert.Equal(t, EINVALID, ErrorCode(err))

	_, err = s.Capture(RoomKitchen, CapturedImage{MIMEType: "image/jpeg"}, testNow)
	assert.Equal(t, EINVALID, ErrorCode(err))
}

func TestSessionStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from SessionStatus
		to   SessionStatus
		want bool
	}{
		{SessionStatusCollecting, SessionStatusAnalyzing, true},
		{SessionStatusCollecting, SessionStatusCompleted, false},
		{SessionStatusAnalyzing, SessionStatusCompleted, true},
		{SessionStatusAnalyzing, SessionStatusFailed, true},
		{SessionStatusAnalyzing, SessionStatusCollecting, false},
		{SessionStatusFailed, SessionStatusCollecting, true},
		{SessionStatusFailed, SessionStatusAnalyzing, true},
		{SessionStatusCompleted, SessionStatusCollecting, false},
		{SessionStatusCompleted, SessionStatusAnalyzing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}
