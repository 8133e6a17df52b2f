package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/turnover/internal/domain"
)

func seedCurrentFiles(t *testing.T, s *testServer) CompareRequest {
	t.Helper()
	name := func(room domain.Room) string {
		return s.files.Seed("files/after-"+room.Slug(), "image/jpeg", testJPEG(t, 8, 8)).Name
	}
	return CompareRequest{
		KitchenFilename:    name(domain.RoomKitchen),
		BathroomFilename:   name(domain.RoomBathroom),
		LivingRoomFilename: name(domain.RoomLivingRoom),
		BedroomFilename:    name(domain.RoomBedroom),
	}
}

func TestCompareHandler_AllClear(t *testing.T) {
	s := newTestServer(t, domain.MaxImageSize)

	rec := s.do(jsonRequest(t, "POST", "/compare", seedCurrentFiles(t, s)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[domain.InspectionResult](t, rec)
	assert.Equal(t, domain.OverallStatusAllClear, result.Summary.OverallStatus)
	require.Len(t, result.RoomAssessments, domain.RoomCount)
	for i, room := range domain.AllRooms() {
		assert.Equal(t, room, result.RoomAssessments[i].Room)
	}
}

func TestCompareHandler_MissingFilenames(t *testing.T) {
	s := newTestServer(t, domain.MaxImageSize)

	rec := s.do(jsonRequest(t, "POST", "/compare", CompareRequest{
		KitchenFilename:  "files/a",
		BedroomFilename:  "files/b",
		BathroomFilename: "  ",
	}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[JSONError](t, rec)
	assert.Equal(t, domain.EINVALID, resp.Error.Code)
	assert.Equal(t, map[string]string{
		"bathroomFilename":   "required",
		"livingRoomFilename": "required",
	}, resp.Error.Fields)

	compares, _ := s.provider.Calls()
	assert.Zero(t, compares)
}

func TestCompareHandler_BadBodies(t *testing.T) {
	s := newTestServer(t, domain.MaxImageSize)

	rec := s.do(multipartRequest(t, "POST", "/compare"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := jsonRequest(t, "POST", "/compare", nil)
	req.Body = http.NoBody
	rec = s.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompareHandler_UnknownProperty(t *testing.T) {
	s := newTestServer(t, domain.MaxImageSize)
	body := seedCurrentFiles(t, s)
	body.PropertyID = "lake-house"

	rec := s.do(jsonRequest(t, "POST", "/compare", body))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.ENOTFOUND, decode[JSONError](t, rec).Error.Code)
}

func TestCompareHandler_UnknownFileDegradesRoom(t *testing.T) {
	s := newTestServer(t, domain.MaxImageSize)
	body := seedCurrentFiles(t, s)
	body.BathroomFilename = "files/never-uploaded"

	rec := s.do(jsonRequest(t, "POST", "/compare", body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[domain.InspectionResult](t, rec)
	bathroom := result.RoomAssessments[domain.RoomBathroom.Index()]
	assert.True(t, bathroom.Degraded)
	assert.False(t, bathroom.DamageDetected)
	assert.Empty(t, bathroom.Items)
	assert.True(t, result.Summary.Degraded)
}
