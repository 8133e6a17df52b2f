package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/turnover/internal/ai/mock"
	"github.com/DukeRupert/turnover/internal/baseline"
	"github.com/DukeRupert/turnover/internal/domain"
	"github.com/DukeRupert/turnover/internal/filestore/memory"
	"github.com/DukeRupert/turnover/internal/ingest"
	"github.com/DukeRupert/turnover/internal/inspection"
)

func newCompareFixture(t *testing.T) (*memory.Store, *mock.Provider, CompareService) {
	t.Helper()
	files := memory.New()
	for _, name := range baseline.DefaultSet() {
		files.Seed(name, "image/jpeg", testJPEG(t, 8, 8))
	}
	provider := mock.New(testLogger())
	svc := NewCompareService(files, baseline.NewStaticResolver("", baseline.DefaultSet()),
		inspection.New(provider, nil, testLogger()), testLogger())
	return files, provider, svc
}

func seedCurrent(t *testing.T, files *memory.Store) map[domain.Room]string {
	t.Helper()
	names := make(map[domain.Room]string)
	for _, room := range domain.AllRooms() {
		names[room] = files.Seed("files/current-"+room.Slug(), "image/jpeg", testJPEG(t, 8, 8)).Name
	}
	return names
}

func TestCompareService_MissingFilenames(t *testing.T) {
	_, provider, svc := newCompareFixture(t)

	_, err := svc.Compare(context.Background(), CompareRequest{Filenames: map[domain.Room]string{
		domain.RoomKitchen:  "files/a",
		domain.RoomBathroom: " ",
	}})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Contains(t, domain.ErrorMessage(err), "bathroomFilename")
	assert.Contains(t, domain.ErrorMessage(err), "livingRoomFilename")
	assert.Contains(t, domain.ErrorMessage(err), "bedroomFilename")
	assert.NotContains(t, domain.ErrorMessage(err), "kitchenFilename")

	compares, _ := provider.Calls()
	assert.Zero(t, compares)
}

func TestCompareService_AllClear(t *testing.T) {
	files, provider, svc := newCompareFixture(t)

	result, err := svc.Compare(context.Background(), CompareRequest{Filenames: seedCurrent(t, files)})
	require.NoError(t, err)
	assert.Equal(t, domain.OverallStatusAllClear, result.Summary.OverallStatus)
	require.Len(t, result.RoomAssessments, domain.RoomCount)

	compares, summaries := provider.Calls()
	assert.Equal(t, 4, compares)
	assert.Equal(t, 1, summaries)
}

func TestCompareService_UnknownCurrentFileDegradesRoom(t *testing.T) {
	files, provider, svc := newCompareFixture(t)
	names := seedCurrent(t, files)
	names[domain.RoomKitchen] = "files/never-uploaded"

	result, err := svc.Compare(context.Background(), CompareRequest{Filenames: names})
	require.NoError(t, err)

	kitchen := result.RoomAssessments[domain.RoomKitchen.Index()]
	assert.True(t, kitchen.Degraded)
	assert.Contains(t, kitchen.Notes, "files/never-uploaded")
	assert.True(t, result.Summary.Degraded)

	compares, _ := provider.Calls()
	assert.Equal(t, 3, compares)
}

func TestCompareService_UnknownProperty(t *testing.T) {
	files, _, svc := newCompareFixture(t)

	_, err := svc.Compare(context.Background(), CompareRequest{PropertyID: "nope", Filenames: seedCurrent(t, files)})
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestCompareService_HighSeverityIsMajor(t *testing.T) {
	files, provider, svc := newCompareFixture(t)
	provider.RoomResponses[domain.RoomBedroom] = `{"damageDetected": true, "items": [
		{"itemName": "Headboard", "condition": "broken", "description": "Split down the middle", "severity": "high"}
	], "notes": ""}`

	result, err := svc.Compare(context.Background(), CompareRequest{Filenames: seedCurrent(t, files)})
	require.NoError(t, err)
	assert.Equal(t, domain.OverallStatusMajorConcerns, result.Summary.OverallStatus)
	assert.Equal(t, 1, result.Summary.TotalIssuesFound)
}

func newBaselineIngest(t *testing.T, files *memory.Store) *ingest.Client {
	t.Helper()
	client, err := ingest.New(files, ingest.Config{
		MaxBytes:        domain.MaxImageSize,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: 3,
	}, testLogger())
	require.NoError(t, err)
	return client
}

func TestBaselineService_RegisterReadOnly(t *testing.T) {
	files := memory.New()
	svc := NewBaselineService(baseline.NewStaticResolver("", baseline.DefaultSet()), newBaselineIngest(t, files), testLogger())

	set, err := svc.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, baseline.DefaultSet(), set)

	_, err = svc.Register(context.Background(), "default", domain.RoomKitchen, testCapture(t))
	assert.Equal(t, domain.ENOTIMPL, domain.ErrorCode(err))

	uploads, _ := files.Counts()
	assert.Zero(t, uploads)
}

// memoryRegistry is a baseline.Registry backed by a map.
type memoryRegistry struct {
	sets map[string]domain.BaselineSet
}

func (r *memoryRegistry) Resolve(_ context.Context, propertyID string) (domain.BaselineSet, error) {
	set, ok := r.sets[propertyID]
	if !ok {
		return nil, domain.NotFound("baseline.resolve", "property", propertyID)
	}
	return set, nil
}

func (r *memoryRegistry) Put(_ context.Context, propertyID string, room domain.Room, fileName string) error {
	if r.sets[propertyID] == nil {
		r.sets[propertyID] = make(domain.BaselineSet)
	}
	r.sets[propertyID][room] = fileName
	return nil
}

func TestBaselineService_Register(t *testing.T) {
	files := memory.New()
	registry := &memoryRegistry{sets: make(map[string]domain.BaselineSet)}
	svc := NewBaselineService(registry, newBaselineIngest(t, files), testLogger())
	ctx := context.Background()

	asset, err := svc.Register(ctx, "lake-house", domain.RoomLivingRoom, testCapture(t))
	require.NoError(t, err)
	assert.True(t, asset.IsReady())

	set, err := svc.Get(ctx, "lake-house")
	require.NoError(t, err)
	assert.Equal(t, asset.Name, set[domain.RoomLivingRoom])

	_, err = svc.Register(ctx, " ", domain.RoomLivingRoom, testCapture(t))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}
