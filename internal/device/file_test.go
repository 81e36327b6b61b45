package device

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemFileReadWrite(t *testing.T) {
	f := NewMemFile([]byte("hello world"))

	buf := make([]byte, 5)
	n, err := f.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))

	// A read reaching past the end returns what there is plus EOF.
	n, err = f.ReadAt(buf, 8)
	assert.Equal(t, 3, n)
	assert.ErrorIs(t, err, io.EOF)

	// A read entirely past the end is a plain EOF.
	_, err = f.ReadAt(buf, 100)
	assert.ErrorIs(t, err, io.EOF)
}

func TestMemFileWriteGrows(t *testing.T) {
	f := NewMemFile([]byte("abc"))

	n, err := f.WriteAt([]byte("XYZ"), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(13), f.Length(), "write past the end should extend the file")

	got := f.Bytes()
	assert.Equal(t, "abc", string(got[:3]))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0}, got[3:10], "the gap should be zero-filled")
	assert.Equal(t, "XYZ", string(got[10:]))
}

func TestMemFileReopenAliasesContent(t *testing.T) {
	f := NewMemFile([]byte("original"))

	dup, err := f.Reopen()
	require.NoError(t, err)

	// A write through either handle is visible through the other.
	_, err = dup.WriteAt([]byte("REWRITTEN"), 0)
	require.NoError(t, err)

	buf := make([]byte, 9)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "REWRITTEN", string(buf))
}

func TestMemFileCloseIsPerHandle(t *testing.T) {
	f := NewMemFile([]byte("content"))

	dup, err := f.Reopen()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// The original handle is dead.
	_, err = f.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, os.ErrClosed)
	_, err = f.Reopen()
	assert.ErrorIs(t, err, os.ErrClosed)

	// The duplicate stays usable.
	buf := make([]byte, 7)
	_, err = dup.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "content", string(buf))
}

func TestOSFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backing.bin")
	require.NoError(t, os.WriteFile(path, []byte("backing file data"), 0644))

	f, err := OpenOSFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, int64(17), f.Length())

	buf := make([]byte, 7)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "backing", string(buf))

	dup, err := f.Reopen()
	require.NoError(t, err)
	defer dup.Close()

	_, err = dup.WriteAt([]byte("CHANGED"), 0)
	require.NoError(t, err)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "CHANGED", string(buf), "handles onto the same path share content")
}

func TestOpenOSFileMissingPath(t *testing.T) {
	_, err := OpenOSFile(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
