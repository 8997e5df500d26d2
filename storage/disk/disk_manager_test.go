package disk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/godb-storage/basic"
)

func TestFileDiskManager_WriteReadRoundTrip(t *testing.T) {
	dm, err := NewFileDiskManager(filepath.Join(t.TempDir(), "pages.db"), basic.PageSize)
	require.NoError(t, err)
	defer dm.ShutDown()

	data := make([]byte, basic.PageSize)
	copy(data, []byte("page five payload"))
	require.NoError(t, dm.WritePage(5, data))
	assert.Equal(t, uint64(1), dm.NumWrites())

	buff := make([]byte, basic.PageSize)
	require.NoError(t, dm.ReadPage(5, buff))
	assert.Equal(t, data, buff)
}

func TestFileDiskManager_UnwrittenPageReadsZero(t *testing.T) {
	dm, err := NewFileDiskManager(filepath.Join(t.TempDir(), "pages.db"), basic.PageSize)
	require.NoError(t, err)
	defer dm.ShutDown()

	buff := make([]byte, basic.PageSize)
	for i := range buff {
		buff[i] = 0xFF
	}
	require.NoError(t, dm.ReadPage(42, buff))
	for i := range buff {
		if buff[i] != 0 {
			t.Fatalf("byte %d of an unwritten page is %#x, want 0", i, buff[i])
		}
	}
}

func TestFileDiskManager_RejectsWrongBufferSize(t *testing.T) {
	dm, err := NewFileDiskManager(filepath.Join(t.TempDir(), "pages.db"), basic.PageSize)
	require.NoError(t, err)
	defer dm.ShutDown()

	assert.Error(t, dm.ReadPage(0, make([]byte, 17)))
	assert.Error(t, dm.WritePage(0, make([]byte, 17)))
}
