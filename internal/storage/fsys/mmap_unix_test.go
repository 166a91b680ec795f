//go:build !windows

package fsys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	util "github.com/nvquocbuu/pagebuf/internal/utils"
)

func TestMmapFileSystemReadWriteRoundTrip(t *testing.T) {
	path, cleanup := util.CreateTempFile(t)
	defer cleanup()

	f, err := MmapFileSystem{}.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteAt([]byte("mmap-data"), 0)
	require.NoError(t, err)

	buf := make([]byte, 9)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "mmap-data", string(buf))
}

func TestMmapFileSystemWriteBeyondEndGrows(t *testing.T) {
	path, cleanup := util.CreateTempFile(t)
	defer cleanup()

	f, err := MmapFileSystem{}.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteAt([]byte("tail"), 100)
	require.NoError(t, err)

	size, err := f.Size()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, size, int64(104))

	buf := make([]byte, 4)
	_, err = f.ReadAt(buf, 100)
	require.NoError(t, err)
	assert.Equal(t, "tail", string(buf))
}

func TestMmapFileSystemTruncateShrinks(t *testing.T) {
	path, cleanup := util.CreateTempFile(t)
	defer cleanup()

	f, err := MmapFileSystem{}.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteAt([]byte("0123456789"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(4))

	size, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)
}
