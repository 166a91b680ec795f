package fsys

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	util "github.com/nvquocbuu/pagebuf/internal/utils"
)

func TestOSFileSystemReadWriteRoundTrip(t *testing.T) {
	path, cleanup := util.CreateTempFile(t)
	defer cleanup()

	f, err := OSFileSystem{}.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n, err := f.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestOSFileSystemSizeAndTruncate(t *testing.T) {
	path, cleanup := util.CreateTempFile(t)
	defer cleanup()

	f, err := OSFileSystem{}.Open(path)
	require.NoError(t, err)
	defer f.Close()

	size, err := f.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	require.NoError(t, f.Truncate(64))
	size, err = f.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(64), size)
}

func TestOSFileSystemReadPastEndReturnsEOF(t *testing.T) {
	path, cleanup := util.CreateTempFile(t)
	defer cleanup()

	f, err := OSFileSystem{}.Open(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Truncate(4))

	buf := make([]byte, 8)
	n, err := f.ReadAt(buf, 0)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 4, n)
}
