package buffer

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/zhukovaskychina/godb-storage/basic"
	"github.com/zhukovaskychina/godb-storage/logger"
	"github.com/zhukovaskychina/godb-storage/storage/disk"
	"github.com/zhukovaskychina/godb-storage/storage/page"
)

// BufferPoolManager is the page access contract shared by a single pool
// instance and the parallel manager that shards across instances.
type BufferPoolManager interface {
	NewPage() (*page.Page, error)
	FetchPage(pageID basic.PageID) (*page.Page, error)
	UnpinPage(pageID basic.PageID, isDirty bool) bool
	FlushPage(pageID basic.PageID) bool
	FlushAllPages()
	DeletePage(pageID basic.PageID) bool
	PageSize() int
}

// BufferPoolInstance caches disk pages in a fixed set of frames. Page ids
// are allocated striped: instance k of n hands out ids congruent to k mod n,
// which lets several instances run side by side without coordination.
type BufferPoolInstance struct {
	mu sync.Mutex

	poolSize      int
	pageSize      int
	numInstances  uint32
	instanceIndex uint32
	nextPageID    basic.PageID

	frames    []*page.Page
	pageTable map[basic.PageID]basic.FrameID
	freeList  *list.List
	replacer  Replacer

	diskManager disk.DiskManager

	stats
}

// NewBufferPoolInstance builds a standalone pool (one instance, index 0).
func NewBufferPoolInstance(poolSize int, pageSize int, diskManager disk.DiskManager) *BufferPoolInstance {
	return NewBufferPoolInstanceStriped(poolSize, pageSize, 1, 0, diskManager)
}

// NewBufferPoolInstanceStriped builds one member of a parallel pool.
func NewBufferPoolInstanceStriped(poolSize int, pageSize int, numInstances uint32, instanceIndex uint32, diskManager disk.DiskManager) *BufferPoolInstance {
	if poolSize <= 0 || pageSize <= 0 || numInstances == 0 || instanceIndex >= numInstances {
		panic(fmt.Sprintf("buffer pool instance %d/%d: %v", instanceIndex, numInstances, ErrInvalidConfig))
	}
	bpi := &BufferPoolInstance{
		poolSize:      poolSize,
		pageSize:      pageSize,
		numInstances:  numInstances,
		instanceIndex: instanceIndex,
		nextPageID:    basic.PageID(instanceIndex),
		frames:        make([]*page.Page, poolSize),
		pageTable:     make(map[basic.PageID]basic.FrameID),
		freeList:      list.New(),
		replacer:      NewLRUReplacer(poolSize),
		diskManager:   diskManager,
	}
	// Initially every frame is free.
	for i := 0; i < poolSize; i++ {
		bpi.frames[i] = page.NewPage(pageSize)
		bpi.freeList.PushBack(basic.FrameID(i))
	}
	return bpi
}

// PoolSize returns the number of frames.
func (bpi *BufferPoolInstance) PoolSize() int {
	return bpi.poolSize
}

// PageSize returns the page size this pool serves.
func (bpi *BufferPoolInstance) PageSize() int {
	return bpi.pageSize
}

// allocatePage hands out the next page id of this instance's stripe.
func (bpi *BufferPoolInstance) allocatePage() basic.PageID {
	pageID := bpi.nextPageID
	bpi.nextPageID += basic.PageID(bpi.numInstances)
	bpi.validatePageID(pageID)
	return pageID
}

func (bpi *BufferPoolInstance) validatePageID(pageID basic.PageID) {
	if uint32(pageID)%bpi.numInstances != bpi.instanceIndex {
		panic(fmt.Sprintf("page id %d does not belong to buffer pool instance %d of %d",
			pageID, bpi.instanceIndex, bpi.numInstances))
	}
}

// findFreeFrame takes a frame from the free list, falling back to the
// replacer when the pool is full. Returns false when every frame is pinned.
func (bpi *BufferPoolInstance) findFreeFrame() (basic.FrameID, bool) {
	if front := bpi.freeList.Front(); front != nil {
		bpi.freeList.Remove(front)
		return front.Value.(basic.FrameID), true
	}
	return bpi.replacer.Victim()
}

// updatePage rebinds a frame from its old occupant to newPageID: the old
// page is flushed if dirty and dropped from the page table, the frame is
// zeroed and the new mapping installed. InvalidPageID leaves the frame
// unmapped.
func (bpi *BufferPoolInstance) updatePage(p *page.Page, newPageID basic.PageID, frameID basic.FrameID) {
	if p.IsDirty() {
		logger.Debugf("buffer pool instance %d evicting dirty page %d, writing back", bpi.instanceIndex, p.ID())
		bpi.writeToDisk(p.ID(), p.Data())
		p.SetDirty(false)
	}

	delete(bpi.pageTable, p.ID())
	if newPageID != basic.InvalidPageID {
		bpi.pageTable[newPageID] = frameID
	}

	p.ResetMemory()
	p.SetID(newPageID)
}

// writeToDisk persists one page. Disk failures are fatal: the pool cannot
// keep its resident state consistent once a writeback is lost.
func (bpi *BufferPoolInstance) writeToDisk(pageID basic.PageID, data []byte) {
	if err := bpi.diskManager.WritePage(pageID, data); err != nil {
		logger.Errorf("buffer pool instance %d failed to write page %d: %v", bpi.instanceIndex, pageID, err)
		panic(NewError("write page", err))
	}
	bpi.RecordPageWrite()
}

// NewPage allocates a fresh page id, installs it in a victim frame at pin
// count 1 and returns it. ErrBufferPoolFull when all frames are pinned.
func (bpi *BufferPoolInstance) NewPage() (*page.Page, error) {
	bpi.mu.Lock()
	defer bpi.mu.Unlock()

	newPageID := bpi.allocatePage()

	frameID, ok := bpi.findFreeFrame()
	if !ok {
		return nil, NewError("new page", ErrBufferPoolFull)
	}

	p := bpi.frames[frameID]
	bpi.updatePage(p, newPageID, frameID)
	bpi.replacer.Pin(frameID)
	p.SetPinCount(1)

	return p, nil
}

// FetchPage returns the page pinned: from memory when resident, otherwise
// read into a victim frame. ErrBufferPoolFull when all frames are pinned.
func (bpi *BufferPoolInstance) FetchPage(pageID basic.PageID) (*page.Page, error) {
	bpi.mu.Lock()
	defer bpi.mu.Unlock()

	if frameID, ok := bpi.pageTable[pageID]; ok {
		p := bpi.frames[frameID]
		p.IncPinCount()
		bpi.replacer.Pin(frameID)
		bpi.RecordPageHit()
		return p, nil
	}
	bpi.RecordPageMiss()

	frameID, ok := bpi.findFreeFrame()
	if !ok {
		return nil, NewError("fetch page", ErrBufferPoolFull)
	}

	p := bpi.frames[frameID]
	bpi.updatePage(p, pageID, frameID)
	if err := bpi.diskManager.ReadPage(pageID, p.Data()); err != nil {
		logger.Errorf("buffer pool instance %d failed to read page %d: %v", bpi.instanceIndex, pageID, err)
		panic(NewError("fetch page", err))
	}
	bpi.replacer.Pin(frameID)
	p.SetPinCount(1)

	return p, nil
}

// UnpinPage drops one pin and ORs isDirty into the dirty flag. A page whose
// pin count is already zero is left untouched; once the count reaches zero
// the frame becomes eligible for eviction.
func (bpi *BufferPoolInstance) UnpinPage(pageID basic.PageID, isDirty bool) bool {
	bpi.mu.Lock()
	defer bpi.mu.Unlock()

	frameID, ok := bpi.pageTable[pageID]
	if !ok {
		return false
	}
	p := bpi.frames[frameID]
	if isDirty {
		p.SetDirty(true)
	}
	if p.PinCount() == 0 {
		return true
	}
	p.DecPinCount()
	if p.PinCount() == 0 {
		bpi.replacer.Unpin(frameID)
	}
	return true
}

// FlushPage writes a resident page to disk and clears its dirty flag.
func (bpi *BufferPoolInstance) FlushPage(pageID basic.PageID) bool {
	bpi.mu.Lock()
	defer bpi.mu.Unlock()

	if pageID == basic.InvalidPageID {
		return false
	}
	frameID, ok := bpi.pageTable[pageID]
	if !ok {
		return false
	}
	p := bpi.frames[frameID]
	bpi.writeToDisk(pageID, p.Data())
	p.SetDirty(false)
	return true
}

// FlushAllPages writes every resident dirty page to disk.
func (bpi *BufferPoolInstance) FlushAllPages() {
	bpi.mu.Lock()
	defer bpi.mu.Unlock()

	for _, p := range bpi.frames {
		if p.ID() != basic.InvalidPageID && p.IsDirty() {
			bpi.writeToDisk(p.ID(), p.Data())
			p.SetDirty(false)
		}
	}
}

// DeletePage evicts a resident page and returns its frame to the free list.
// A non-resident page deletes trivially; a pinned page refuses.
func (bpi *BufferPoolInstance) DeletePage(pageID basic.PageID) bool {
	bpi.mu.Lock()
	defer bpi.mu.Unlock()

	frameID, ok := bpi.pageTable[pageID]
	if !ok {
		return true
	}
	p := bpi.frames[frameID]
	if p.PinCount() > 0 {
		return false
	}

	bpi.diskManager.DeallocatePage(pageID)
	bpi.replacer.Pin(frameID)
	bpi.updatePage(p, basic.InvalidPageID, frameID)
	p.SetPinCount(0)
	bpi.freeList.PushBack(frameID)
	return true
}
