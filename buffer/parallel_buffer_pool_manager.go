package buffer

import (
	"sync"

	"github.com/zhukovaskychina/godb-storage/basic"
	"github.com/zhukovaskychina/godb-storage/storage/disk"
	"github.com/zhukovaskychina/godb-storage/storage/page"
)

// ParallelBufferPoolManager shards page traffic over several pool
// instances. A page id maps to instance pageID mod numInstances, which is
// exactly the stripe the instance's allocator hands out, so every page is
// always served by the instance that allocated it.
type ParallelBufferPoolManager struct {
	mu           sync.Mutex
	instances    []*BufferPoolInstance
	numInstances uint32
	nextInstance uint32
}

// NewParallelBufferPoolManager builds numInstances pools of poolSize frames
// each over one shared disk manager.
func NewParallelBufferPoolManager(numInstances uint32, poolSize int, pageSize int, diskManager disk.DiskManager) *ParallelBufferPoolManager {
	pbpm := &ParallelBufferPoolManager{
		instances:    make([]*BufferPoolInstance, numInstances),
		numInstances: numInstances,
	}
	for i := uint32(0); i < numInstances; i++ {
		pbpm.instances[i] = NewBufferPoolInstanceStriped(poolSize, pageSize, numInstances, i, diskManager)
	}
	return pbpm
}

func (pbpm *ParallelBufferPoolManager) instanceFor(pageID basic.PageID) *BufferPoolInstance {
	return pbpm.instances[uint32(pageID)%pbpm.numInstances]
}

// PoolSize returns the total number of frames across all instances.
func (pbpm *ParallelBufferPoolManager) PoolSize() int {
	return int(pbpm.numInstances) * pbpm.instances[0].PoolSize()
}

// PageSize returns the page size the pools serve.
func (pbpm *ParallelBufferPoolManager) PageSize() int {
	return pbpm.instances[0].PageSize()
}

// NewPage asks each instance in turn for a page, starting from a rotating
// cursor so allocations spread evenly. Fails only when every instance is
// saturated.
func (pbpm *ParallelBufferPoolManager) NewPage() (*page.Page, error) {
	pbpm.mu.Lock()
	start := pbpm.nextInstance
	pbpm.nextInstance = (pbpm.nextInstance + 1) % pbpm.numInstances
	pbpm.mu.Unlock()

	for i := uint32(0); i < pbpm.numInstances; i++ {
		p, err := pbpm.instances[(start+i)%pbpm.numInstances].NewPage()
		if err == nil {
			return p, nil
		}
		if !IsBufferPoolFull(err) {
			return nil, err
		}
	}
	return nil, NewError("new page", ErrBufferPoolFull)
}

// FetchPage routes to the owning instance.
func (pbpm *ParallelBufferPoolManager) FetchPage(pageID basic.PageID) (*page.Page, error) {
	return pbpm.instanceFor(pageID).FetchPage(pageID)
}

// UnpinPage routes to the owning instance.
func (pbpm *ParallelBufferPoolManager) UnpinPage(pageID basic.PageID, isDirty bool) bool {
	return pbpm.instanceFor(pageID).UnpinPage(pageID, isDirty)
}

// FlushPage routes to the owning instance.
func (pbpm *ParallelBufferPoolManager) FlushPage(pageID basic.PageID) bool {
	return pbpm.instanceFor(pageID).FlushPage(pageID)
}

// FlushAllPages flushes every instance.
func (pbpm *ParallelBufferPoolManager) FlushAllPages() {
	for _, bpi := range pbpm.instances {
		bpi.FlushAllPages()
	}
}

// DeletePage routes to the owning instance.
func (pbpm *ParallelBufferPoolManager) DeletePage(pageID basic.PageID) bool {
	return pbpm.instanceFor(pageID).DeletePage(pageID)
}
