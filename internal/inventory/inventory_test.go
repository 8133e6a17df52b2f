package inventory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/turnover/internal/domain"
)

func TestDefault_CoversEveryRoom(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	for _, room := range domain.AllRooms() {
		assert.NotEmpty(t, c.For("any-property", room), room.String())
	}
	assert.Contains(t, c.For("", domain.RoomKitchen), "Espresso")
	assert.Contains(t, c.For("", domain.RoomBathroom), "3 Sinks")
	assert.Contains(t, c.For("", domain.RoomLivingRoom), "Flat-Screen TV")
	assert.Contains(t, c.For("", domain.RoomBedroom), "Pink Loveseat")
}

func TestDefault_ReturnsIndependentCopies(t *testing.T) {
	a, err := Default()
	require.NoError(t, err)
	a.Set(domain.RoomKitchen, "nothing")

	b, err := Default()
	require.NoError(t, err)
	assert.NotEqual(t, "nothing", b.For("", domain.RoomKitchen))
}

func TestLoadFile_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	doc := `
rooms:
  kitchen: |
    * 1 Toaster
properties:
  beach-house:
    living-room: |
      * 1 Surfboard
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "* 1 Toaster", c.For("", domain.RoomKitchen))
	assert.Equal(t, "* 1 Surfboard", c.For("beach-house", domain.RoomLivingRoom))
	assert.Contains(t, c.For("other-house", domain.RoomLivingRoom), "Flat-Screen TV")
	assert.Contains(t, c.For("beach-house", domain.RoomBedroom), "Pink Loveseat")
}

func TestParse_RejectsUnknownRoom(t *testing.T) {
	_, err := Parse([]byte("rooms:\n  garage: tools\n"))
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
