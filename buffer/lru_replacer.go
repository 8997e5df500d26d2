package buffer

import (
	"container/list"
	"sync"

	"github.com/zhukovaskychina/godb-storage/basic"
)

// LRUReplacer evicts the least-recently-unpinned frame. Frames enter on
// Unpin, leave on Pin or Victim. Capacity equals the pool size, so an Unpin
// that would grow past capacity is rejected rather than forcing an eviction.
type LRUReplacer struct {
	mu       sync.Mutex
	capacity int
	lruList  *list.List
	lruItems map[basic.FrameID]*list.Element
}

// NewLRUReplacer builds a replacer able to track up to capacity frames.
func NewLRUReplacer(capacity int) *LRUReplacer {
	return &LRUReplacer{
		capacity: capacity,
		lruList:  list.New(),
		lruItems: make(map[basic.FrameID]*list.Element),
	}
}

// Victim removes and returns the least recently unpinned frame.
func (r *LRUReplacer) Victim() (basic.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	back := r.lruList.Back()
	if back == nil {
		return 0, false
	}
	frameID := back.Value.(basic.FrameID)
	r.lruList.Remove(back)
	delete(r.lruItems, frameID)
	return frameID, true
}

// Pin removes the frame from the eligible set; a frame that is not tracked
// is left alone.
func (r *LRUReplacer) Pin(frameID basic.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem, ok := r.lruItems[frameID]
	if !ok {
		return
	}
	r.lruList.Remove(elem)
	delete(r.lruItems, frameID)
}

// Unpin inserts the frame as most recently used. Re-unpinning a tracked
// frame is a no-op, and an insert that would exceed capacity is rejected.
func (r *LRUReplacer) Unpin(frameID basic.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lruItems[frameID]; ok {
		return
	}
	if r.lruList.Len() >= r.capacity {
		return
	}
	r.lruItems[frameID] = r.lruList.PushFront(frameID)
}

// Size returns the number of frames currently eligible for eviction.
func (r *LRUReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lruList.Len()
}
