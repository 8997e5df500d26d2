package page

import (
	"sync"

	"github.com/zhukovaskychina/godb-storage/basic"
)

// Page is one fixed-size block held in a buffer pool frame. The pin count,
// dirty flag and page id are guarded by the owning pool's latch; the
// reader-writer latch below protects the payload and is taken by callers
// that read or mutate page content.
type Page struct {
	id       basic.PageID
	data     []byte
	pinCount int32
	isDirty  bool

	latch sync.RWMutex
}

// NewPage allocates an empty page of the given size with an invalid id.
func NewPage(pageSize int) *Page {
	return &Page{
		id:   basic.InvalidPageID,
		data: make([]byte, pageSize),
	}
}

// ID returns the page id this frame currently holds.
func (p *Page) ID() basic.PageID {
	return p.id
}

// SetID rebinds the frame to a new page id.
func (p *Page) SetID(id basic.PageID) {
	p.id = id
}

// Data returns the page payload. The caller must hold the page latch in the
// appropriate mode while touching it.
func (p *Page) Data() []byte {
	return p.data
}

// PinCount returns the number of active pins.
func (p *Page) PinCount() int32 {
	return p.pinCount
}

// IncPinCount adds one pin.
func (p *Page) IncPinCount() {
	p.pinCount++
}

// DecPinCount drops one pin.
func (p *Page) DecPinCount() {
	p.pinCount--
}

// SetPinCount overwrites the pin count.
func (p *Page) SetPinCount(count int32) {
	p.pinCount = count
}

// IsDirty reports whether the in-memory bytes differ from disk.
func (p *Page) IsDirty() bool {
	return p.isDirty
}

// SetDirty sets or clears the dirty flag.
func (p *Page) SetDirty(dirty bool) {
	p.isDirty = dirty
}

// ResetMemory zeroes the payload.
func (p *Page) ResetMemory() {
	for i := range p.data {
		p.data[i] = 0
	}
}

// RLatch takes the page latch in shared mode.
func (p *Page) RLatch() {
	p.latch.RLock()
}

// RUnlatch releases the shared page latch.
func (p *Page) RUnlatch() {
	p.latch.RUnlock()
}

// WLatch takes the page latch in exclusive mode.
func (p *Page) WLatch() {
	p.latch.Lock()
}

// WUnlatch releases the exclusive page latch.
func (p *Page) WUnlatch() {
	p.latch.Unlock()
}
