package page

import (
	"encoding/binary"
	"fmt"

	"github.com/zhukovaskychina/godb-storage/basic"
)

const (
	// MaxGlobalDepth bounds the directory height; the directory then holds
	// at most 1<<MaxGlobalDepth entries.
	MaxGlobalDepth = 9

	// DirectoryArraySize is the full backing array length; only the first
	// 1<<globalDepth entries are live.
	DirectoryArraySize = 1 << MaxGlobalDepth
)

// Directory page layout, little-endian:
//
//	offset 0    page_id            uint32
//	offset 4    global_depth       uint32
//	offset 8    local_depths       [DirectoryArraySize]uint8
//	offset 520  bucket_page_ids    [DirectoryArraySize]uint32
//
// 2568 bytes total, which fits any supported page size. Trailing bytes stay
// zero-filled.
const (
	dirPageIDOffset      = 0
	dirGlobalDepthOffset = 4
	dirLocalDepthsOffset = 8
	dirBucketIDsOffset   = dirLocalDepthsOffset + DirectoryArraySize
)

// HashTableDirectoryPage is a byte-addressed view over a pinned page that
// holds the extendible hash directory. It carries no state of its own; every
// accessor reads or writes the underlying payload in place.
type HashTableDirectoryPage struct {
	page *Page
}

// DirectoryPageFrom wraps a pinned page as a directory page.
func DirectoryPageFrom(p *Page) *HashTableDirectoryPage {
	return &HashTableDirectoryPage{page: p}
}

// Page returns the underlying pinned page.
func (d *HashTableDirectoryPage) Page() *Page {
	return d.page
}

// PageID returns the directory's own page id field.
func (d *HashTableDirectoryPage) PageID() basic.PageID {
	return basic.PageID(binary.LittleEndian.Uint32(d.page.Data()[dirPageIDOffset:]))
}

// SetPageID stores the directory's own page id field.
func (d *HashTableDirectoryPage) SetPageID(id basic.PageID) {
	binary.LittleEndian.PutUint32(d.page.Data()[dirPageIDOffset:], uint32(id))
}

// GlobalDepth returns the directory height G.
func (d *HashTableDirectoryPage) GlobalDepth() uint32 {
	return binary.LittleEndian.Uint32(d.page.Data()[dirGlobalDepthOffset:])
}

func (d *HashTableDirectoryPage) setGlobalDepth(depth uint32) {
	binary.LittleEndian.PutUint32(d.page.Data()[dirGlobalDepthOffset:], depth)
}

// GlobalDepthMask returns the low-bit mask selecting a directory index from
// a hash value.
func (d *HashTableDirectoryPage) GlobalDepthMask() uint32 {
	return (1 << d.GlobalDepth()) - 1
}

// Size returns the number of live directory entries, 1<<G.
func (d *HashTableDirectoryPage) Size() uint32 {
	return 1 << d.GlobalDepth()
}

// IncrGlobalDepth doubles the directory. Every existing entry j is mirrored
// at j+oldSize with the same bucket page id and local depth, so addressing
// under the wider mask stays consistent.
func (d *HashTableDirectoryPage) IncrGlobalDepth() {
	oldSize := d.Size()
	if oldSize*2 > DirectoryArraySize {
		panic(fmt.Sprintf("hash directory page %d: global depth already at maximum %d", d.PageID(), MaxGlobalDepth))
	}
	for i := uint32(0); i < oldSize; i++ {
		d.SetBucketPageID(i+oldSize, d.GetBucketPageID(i))
		d.SetLocalDepth(i+oldSize, d.GetLocalDepth(i))
	}
	d.setGlobalDepth(d.GlobalDepth() + 1)
}

// DecrGlobalDepth halves the directory.
func (d *HashTableDirectoryPage) DecrGlobalDepth() {
	if d.GlobalDepth() == 0 {
		panic(fmt.Sprintf("hash directory page %d: global depth underflow", d.PageID()))
	}
	d.setGlobalDepth(d.GlobalDepth() - 1)
}

// CanShrink reports whether every live entry has local depth strictly below
// the global depth, in which case the directory can halve.
func (d *HashTableDirectoryPage) CanShrink() bool {
	if d.GlobalDepth() == 0 {
		return false
	}
	for i := uint32(0); i < d.Size(); i++ {
		if d.GetLocalDepth(i) == d.GlobalDepth() {
			return false
		}
	}
	return true
}

// GetBucketPageID returns the bucket page id stored at directory index idx.
func (d *HashTableDirectoryPage) GetBucketPageID(idx uint32) basic.PageID {
	return basic.PageID(binary.LittleEndian.Uint32(d.page.Data()[dirBucketIDsOffset+4*idx:]))
}

// SetBucketPageID stores a bucket page id at directory index idx.
func (d *HashTableDirectoryPage) SetBucketPageID(idx uint32, id basic.PageID) {
	binary.LittleEndian.PutUint32(d.page.Data()[dirBucketIDsOffset+4*idx:], uint32(id))
}

// GetLocalDepth returns the local depth of the bucket at directory index idx.
func (d *HashTableDirectoryPage) GetLocalDepth(idx uint32) uint32 {
	return uint32(d.page.Data()[dirLocalDepthsOffset+idx])
}

// SetLocalDepth stores the local depth of the bucket at directory index idx.
func (d *HashTableDirectoryPage) SetLocalDepth(idx uint32, depth uint32) {
	d.page.Data()[dirLocalDepthsOffset+idx] = byte(depth)
}

// IncrLocalDepth bumps the local depth at idx.
func (d *HashTableDirectoryPage) IncrLocalDepth(idx uint32) {
	d.SetLocalDepth(idx, d.GetLocalDepth(idx)+1)
}

// DecrLocalDepth drops the local depth at idx.
func (d *HashTableDirectoryPage) DecrLocalDepth(idx uint32) {
	d.SetLocalDepth(idx, d.GetLocalDepth(idx)-1)
}

// GetLocalDepthMask returns the low-bit mask of the bucket at idx.
func (d *HashTableDirectoryPage) GetLocalDepthMask(idx uint32) uint32 {
	return (1 << d.GetLocalDepth(idx)) - 1
}

// GetSplitImageIndex returns the sibling index of idx: the index that flips
// the highest significant bit of idx's local-depth prefix.
func (d *HashTableDirectoryPage) GetSplitImageIndex(idx uint32) uint32 {
	depth := d.GetLocalDepth(idx)
	if depth == 0 {
		return idx
	}
	return idx ^ (1 << (depth - 1))
}

// VerifyIntegrity panics if the directory violates its structural
// invariants: local depths never exceed the global depth, and all indices
// that agree in the low local-depth bits share the same bucket page and
// local depth.
func (d *HashTableDirectoryPage) VerifyIntegrity() {
	size := d.Size()
	for i := uint32(0); i < size; i++ {
		if d.GetLocalDepth(i) > d.GlobalDepth() {
			panic(fmt.Sprintf("hash directory page %d: local depth %d at index %d exceeds global depth %d",
				d.PageID(), d.GetLocalDepth(i), i, d.GlobalDepth()))
		}
	}
	for a := uint32(0); a < size; a++ {
		for b := a + 1; b < size; b++ {
			if a&((1<<d.GetLocalDepth(a))-1) != b&((1<<d.GetLocalDepth(b))-1) {
				continue
			}
			if d.GetBucketPageID(a) != d.GetBucketPageID(b) || d.GetLocalDepth(a) != d.GetLocalDepth(b) {
				panic(fmt.Sprintf("hash directory page %d: indices %d and %d share a prefix but disagree on bucket or depth",
					d.PageID(), a, b))
			}
		}
	}
}
