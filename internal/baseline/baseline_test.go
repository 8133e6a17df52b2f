package baseline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/turnover/internal"
	"github.com/DukeRupert/turnover/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStaticResolver_Default(t *testing.T) {
	r := NewStaticResolver("", DefaultSet())

	for _, id := range []string{"", DefaultPropertyID} {
		set, err := r.Resolve(context.Background(), id)
		require.NoError(t, err)
		assert.Empty(t, set.Missing())
		assert.Equal(t, "files/ogk0546aag6u", set[domain.RoomKitchen])
		assert.Equal(t, "files/5x2lxy2d0vhs", set[domain.RoomBedroom])
	}

	_, err := r.Resolve(context.Background(), "unknown")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestStaticResolver_ReturnsCopy(t *testing.T) {
	r := NewStaticResolver("", DefaultSet())

	set, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	set[domain.RoomKitchen] = "files/changed"

	again, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "files/ogk0546aag6u", again[domain.RoomKitchen])
}

func TestStaticResolver_Load(t *testing.T) {
	r := NewStaticResolver("", DefaultSet())

	err := r.Load([]byte(`
properties:
  beach-house:
    kitchen: files/bh-kitchen
    bathroom: files/bh-bath
    living-room: files/bh-living
    Bedroom: files/bh-bed
  default:
    livingRoom: files/new-living
`))
	require.NoError(t, err)

	set, err := r.Resolve(context.Background(), "beach-house")
	require.NoError(t, err)
	assert.Equal(t, domain.BaselineSet{
		domain.RoomKitchen:    "files/bh-kitchen",
		domain.RoomBathroom:   "files/bh-bath",
		domain.RoomLivingRoom: "files/bh-living",
		domain.RoomBedroom:    "files/bh-bed",
	}, set)

	def, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "files/new-living", def[domain.RoomLivingRoom])
	assert.Equal(t, "files/ogk0546aag6u", def[domain.RoomKitchen])

	assert.ElementsMatch(t, []string{"default", "beach-house"}, r.Properties())
}

func TestStaticResolver_LoadErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "properties: ["},
		{"unknown room", "properties:\n  p:\n    garage: files/x\n"},
		{"empty file name", "properties:\n  p:\n    kitchen: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewStaticResolver("", DefaultSet())
			assert.Error(t, r.Load([]byte(tt.yaml)))
		})
	}
}

func TestStaticResolver_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baselines.yaml")
	require.NoError(t, os.WriteFile(path, []byte("properties:\n  cabin:\n    kitchen: files/cabin-k\n"), 0o600))

	r := NewStaticResolver("", DefaultSet())
	require.NoError(t, r.LoadFile(path))

	set, err := r.Resolve(context.Background(), "cabin")
	require.NoError(t, err)
	assert.Equal(t, []domain.Room{domain.RoomBathroom, domain.RoomLivingRoom, domain.RoomBedroom}, set.Missing())

	assert.Error(t, r.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func newSQLiteStore(t *testing.T, fallback Resolver) *SQLStore {
	t.Helper()
	return newSQLiteStoreFor(t, "", fallback)
}

func newSQLiteStoreFor(t *testing.T, defaultProperty string, fallback Resolver) *SQLStore {
	t.Helper()
	goose.SetLogger(goose.NopLogger())

	db, err := OpenDB(context.Background(), StoreSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, internal.RunMigrations(db, MigrationDialect(StoreSQLite)))
	return NewSQLStore(db, StoreSQLite, defaultProperty, fallback, testLogger())
}

func TestSQLStore_PutAndResolve(t *testing.T) {
	s := newSQLiteStore(t, nil)
	ctx := context.Background()

	_, err := s.Resolve(ctx, "beach-house")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	require.NoError(t, s.Put(ctx, "beach-house", domain.RoomKitchen, "files/k1"))
	require.NoError(t, s.Put(ctx, "beach-house", domain.RoomLivingRoom, "files/l1"))
	require.NoError(t, s.Put(ctx, "beach-house", domain.RoomKitchen, "files/k2"))

	set, err := s.Resolve(ctx, "beach-house")
	require.NoError(t, err)
	assert.Equal(t, domain.BaselineSet{
		domain.RoomKitchen:    "files/k2",
		domain.RoomLivingRoom: "files/l1",
	}, set)
}

func TestSQLStore_Fallback(t *testing.T) {
	s := newSQLiteStore(t, NewStaticResolver("", DefaultSet()))

	set, err := s.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSet(), set)
}

func TestSQLStore_ConfiguredDefaultProperty(t *testing.T) {
	s := newSQLiteStoreFor(t, "acme", NewStaticResolver("acme", DefaultSet()))
	ctx := context.Background()

	set, err := s.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSet(), set)

	require.NoError(t, s.Put(ctx, "acme", domain.RoomKitchen, "files/acme-kitchen"))
	set, err = s.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "files/acme-kitchen", set[domain.RoomKitchen])

	_, err = s.Resolve(ctx, DefaultPropertyID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestSQLStore_OverridesFallbackPerRoom(t *testing.T) {
	s := newSQLiteStore(t, NewStaticResolver("", DefaultSet()))
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, DefaultPropertyID, domain.RoomBathroom, "files/new-bathroom"))

	set, err := s.Resolve(ctx, "")
	require.NoError(t, err)
	want := DefaultSet()
	want[domain.RoomBathroom] = "files/new-bathroom"
	assert.Equal(t, want, set)

	// Properties unknown to the fallback still resolve from the registry.
	require.NoError(t, s.Put(ctx, "cabin", domain.RoomKitchen, "files/k"))
	set, err = s.Resolve(ctx, "cabin")
	require.NoError(t, err)
	assert.Equal(t, domain.BaselineSet{domain.RoomKitchen: "files/k"}, set)

	_, err = s.Resolve(ctx, "nowhere")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestMigrations_BaselineColumns(t *testing.T) {
	s := newSQLiteStore(t, nil)

	rows, err := s.db.Query("SELECT name FROM pragma_table_info('baselines') ORDER BY cid")
	require.NoError(t, err)
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		columns = append(columns, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"property_id", "room", "file_name", "updated_at"}, columns)
}

func TestSQLStore_PutValidation(t *testing.T) {
	s := newSQLiteStore(t, nil)
	ctx := context.Background()

	assert.Equal(t, domain.EINVALID, domain.ErrorCode(s.Put(ctx, "", domain.RoomKitchen, "files/x")))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(s.Put(ctx, "p", domain.Room("Garage"), "files/x")))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(s.Put(ctx, "p", domain.RoomKitchen, " ")))
}

func TestSQLStore_Rebind(t *testing.T) {
	pg := &SQLStore{store: StorePostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &SQLStore{store: StoreSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestOpenDB_UnknownStore(t *testing.T) {
	_, err := OpenDB(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
}
