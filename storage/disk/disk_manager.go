package disk

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/juju/errors"

	"github.com/zhukovaskychina/godb-storage/basic"
)

// DiskManager moves whole pages between the buffer pool and stable storage.
type DiskManager interface {
	// ReadPage fills buff with the content of the given page. A page that
	// was never written reads back as zeroes.
	ReadPage(pageID basic.PageID, buff []byte) error

	// WritePage persists exactly one page of data.
	WritePage(pageID basic.PageID, data []byte) error

	// DeallocatePage returns a page to the disk free space.
	DeallocatePage(pageID basic.PageID)

	// ShutDown flushes and closes the backing store.
	ShutDown() error
}

// FileDiskManager stores pages in a single file at offset pageID*pageSize.
type FileDiskManager struct {
	mu        sync.Mutex
	file      *os.File
	pageSize  int
	numWrites uint64
}

// NewFileDiskManager opens (or creates) the backing database file.
func NewFileDiskManager(path string, pageSize int) (*FileDiskManager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, errors.Annotatef(err, "open database file %s", path)
	}
	return &FileDiskManager{file: file, pageSize: pageSize}, nil
}

// ReadPage reads one page from the backing file. Reads beyond the current
// file size return zero-filled pages: the page was allocated but never
// flushed.
func (dm *FileDiskManager) ReadPage(pageID basic.PageID, buff []byte) error {
	if len(buff) != dm.pageSize {
		return errors.Errorf("read page %d: buffer is %d bytes, want %d", pageID, len(buff), dm.pageSize)
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := int64(pageID) * int64(dm.pageSize)
	n, err := dm.file.ReadAt(buff, offset)
	if err != nil && err != io.EOF {
		return errors.Annotatef(err, "read page %d", pageID)
	}
	for i := n; i < len(buff); i++ {
		buff[i] = 0
	}
	return nil
}

// WritePage writes one page to the backing file.
func (dm *FileDiskManager) WritePage(pageID basic.PageID, data []byte) error {
	if len(data) != dm.pageSize {
		return errors.Errorf("write page %d: data is %d bytes, want %d", pageID, len(data), dm.pageSize)
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := int64(pageID) * int64(dm.pageSize)
	if _, err := dm.file.WriteAt(data, offset); err != nil {
		return errors.Annotatef(err, "write page %d", pageID)
	}
	atomic.AddUint64(&dm.numWrites, 1)
	return nil
}

// DeallocatePage returns a page to the disk free space. The file layout
// keeps pages addressable by id, so there is nothing to reclaim here yet.
func (dm *FileDiskManager) DeallocatePage(pageID basic.PageID) {
}

// NumWrites returns how many pages were written since startup.
func (dm *FileDiskManager) NumWrites() uint64 {
	return atomic.LoadUint64(&dm.numWrites)
}

// ShutDown syncs and closes the backing file.
func (dm *FileDiskManager) ShutDown() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if err := dm.file.Sync(); err != nil {
		return errors.Annotate(err, "sync database file")
	}
	return errors.Annotate(dm.file.Close(), "close database file")
}
