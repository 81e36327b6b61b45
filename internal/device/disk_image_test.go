package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProdMoon/go-vmm/internal/types"
)

func TestOpenDiskImageSizesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swap.img")

	img, err := OpenDiskImage(path, 32)
	require.NoError(t, err)
	defer img.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(32*types.SectorSize), info.Size(), "image should be extended to full capacity")
	assert.Equal(t, int64(32), img.SectorCount())
	assert.Equal(t, types.SectorSize, img.SectorSize())
}

func TestOpenDiskImageValidation(t *testing.T) {
	_, err := OpenDiskImage("", 8)
	assert.Error(t, err, "empty path should be rejected")

	_, err = OpenDiskImage(filepath.Join(t.TempDir(), "swap.img"), 0)
	assert.Error(t, err, "zero capacity should be rejected")
}

func TestDiskImagePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swap.img")

	img, err := OpenDiskImage(path, 16)
	require.NoError(t, err)

	want := make([]byte, types.SectorSize)
	for i := range want {
		want[i] = byte(i)
	}
	require.NoError(t, img.WriteSector(3, want))
	require.NoError(t, img.Close())

	img, err = OpenDiskImage(path, 16)
	require.NoError(t, err)
	defer img.Close()

	got := make([]byte, types.SectorSize)
	require.NoError(t, img.ReadSector(3, got))
	assert.Equal(t, want, got, "sector content should persist across reopen")
}

func TestDiskImageRejectsBadAccess(t *testing.T) {
	img, err := OpenDiskImage(filepath.Join(t.TempDir(), "swap.img"), 4)
	require.NoError(t, err)
	defer img.Close()

	buf := make([]byte, types.SectorSize)
	assert.Error(t, img.ReadSector(4, buf))
	assert.Error(t, img.WriteSector(-1, buf))
	assert.Error(t, img.ReadSector(0, make([]byte, 1)))
}
