package page

import (
	"encoding/binary"

	"github.com/zhukovaskychina/godb-storage/basic"
	"github.com/zhukovaskychina/godb-storage/util"
)

// BucketEntrySize is the serialized size of one (key, rid) pair: an 8-byte
// key followed by a 4-byte page id and a 4-byte slot number.
const BucketEntrySize = 16

// BucketCapacityFor computes how many entries a bucket page of the given
// size holds once both bitmaps are accounted for. Each entry costs
// BucketEntrySize bytes plus a quarter byte of bitmap.
func BucketCapacityFor(pageSize int) uint32 {
	return uint32(4 * pageSize / (4*BucketEntrySize + 1))
}

// BucketPair is one live (key, rid) mapping pulled out of a bucket.
type BucketPair struct {
	Key uint64
	Rid basic.RID
}

// Bucket page layout:
//
//	occupied bitmap    ceil(capacity/8) bytes
//	readable bitmap    ceil(capacity/8) bytes
//	entry array        capacity * BucketEntrySize bytes
//
// A removed slot clears only its readable bit; occupied stays set as a
// tombstone so probe semantics survive removals.
type HashTableBucketPage struct {
	page     *Page
	capacity uint32
}

// BucketPageFrom wraps a pinned page as a bucket page of the given capacity.
func BucketPageFrom(p *Page, capacity uint32) *HashTableBucketPage {
	return &HashTableBucketPage{page: p, capacity: capacity}
}

// Page returns the underlying pinned page.
func (b *HashTableBucketPage) Page() *Page {
	return b.page
}

// Capacity returns how many slots this bucket holds.
func (b *HashTableBucketPage) Capacity() uint32 {
	return b.capacity
}

func (b *HashTableBucketPage) bitmapLen() uint32 {
	return (b.capacity + 7) / 8
}

func (b *HashTableBucketPage) occupied() []byte {
	return b.page.Data()[:b.bitmapLen()]
}

func (b *HashTableBucketPage) readable() []byte {
	return b.page.Data()[b.bitmapLen() : 2*b.bitmapLen()]
}

func (b *HashTableBucketPage) entryOffset(idx uint32) uint32 {
	return 2*b.bitmapLen() + idx*BucketEntrySize
}

// KeyAt returns the key stored in slot idx.
func (b *HashTableBucketPage) KeyAt(idx uint32) uint64 {
	return binary.LittleEndian.Uint64(b.page.Data()[b.entryOffset(idx):])
}

// ValueAt returns the rid stored in slot idx.
func (b *HashTableBucketPage) ValueAt(idx uint32) basic.RID {
	off := b.entryOffset(idx)
	return basic.RID{
		PageID:  basic.PageID(binary.LittleEndian.Uint32(b.page.Data()[off+8:])),
		SlotNum: binary.LittleEndian.Uint32(b.page.Data()[off+12:]),
	}
}

func (b *HashTableBucketPage) setEntry(idx uint32, key uint64, rid basic.RID) {
	off := b.entryOffset(idx)
	binary.LittleEndian.PutUint64(b.page.Data()[off:], key)
	binary.LittleEndian.PutUint32(b.page.Data()[off+8:], uint32(rid.PageID))
	binary.LittleEndian.PutUint32(b.page.Data()[off+12:], rid.SlotNum)
}

// IsOccupied reports whether slot idx was ever used.
func (b *HashTableBucketPage) IsOccupied(idx uint32) bool {
	return util.GetBit(b.occupied(), idx)
}

// IsReadable reports whether slot idx currently holds a live entry.
func (b *HashTableBucketPage) IsReadable(idx uint32) bool {
	return util.GetBit(b.readable(), idx)
}

// GetValue collects the rids of every live entry matching key.
func (b *HashTableBucketPage) GetValue(key uint64) []basic.RID {
	var result []basic.RID
	for i := uint32(0); i < b.capacity; i++ {
		if b.IsReadable(i) && b.KeyAt(i) == key {
			result = append(result, b.ValueAt(i))
		}
	}
	return result
}

// Insert places (key, rid) in the first non-readable slot. It rejects a
// full bucket and an exact duplicate pair.
func (b *HashTableBucketPage) Insert(key uint64, rid basic.RID) bool {
	if b.IsFull() {
		return false
	}
	for i := uint32(0); i < b.capacity; i++ {
		if b.IsReadable(i) && b.KeyAt(i) == key && b.ValueAt(i) == rid {
			return false
		}
	}
	for i := uint32(0); i < b.capacity; i++ {
		if !b.IsReadable(i) {
			b.setEntry(i, key, rid)
			util.SetBit(b.occupied(), i)
			util.SetBit(b.readable(), i)
			break
		}
	}
	return true
}

// Remove tombstones the slot holding exactly (key, rid). The occupied bit
// stays set.
func (b *HashTableBucketPage) Remove(key uint64, rid basic.RID) bool {
	for i := uint32(0); i < b.capacity; i++ {
		if b.IsReadable(i) && b.KeyAt(i) == key && b.ValueAt(i) == rid {
			util.ClearBit(b.readable(), i)
			return true
		}
	}
	return false
}

// NumReadable counts the live entries.
func (b *HashTableBucketPage) NumReadable() uint32 {
	return util.CountOnes(b.readable())
}

// IsFull reports whether every slot holds a live entry.
func (b *HashTableBucketPage) IsFull() bool {
	return b.NumReadable() == b.capacity
}

// IsEmpty reports whether no slot holds a live entry.
func (b *HashTableBucketPage) IsEmpty() bool {
	return b.NumReadable() == 0
}

// FetchAll returns every live pair, used when a split rehashes a bucket.
func (b *HashTableBucketPage) FetchAll() []BucketPair {
	var pairs []BucketPair
	for i := uint32(0); i < b.capacity; i++ {
		if b.IsReadable(i) {
			pairs = append(pairs, BucketPair{Key: b.KeyAt(i), Rid: b.ValueAt(i)})
		}
	}
	return pairs
}

// Reset clears both bitmaps, emptying the bucket.
func (b *HashTableBucketPage) Reset() {
	nb := b.bitmapLen()
	data := b.page.Data()
	for i := uint32(0); i < 2*nb; i++ {
		data[i] = 0
	}
}
