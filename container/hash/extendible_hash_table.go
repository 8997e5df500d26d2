package hash

import (
	"fmt"
	"sync"

	"github.com/zhukovaskychina/godb-storage/basic"
	"github.com/zhukovaskychina/godb-storage/buffer"
	"github.com/zhukovaskychina/godb-storage/concurrency"
	"github.com/zhukovaskychina/godb-storage/logger"
	"github.com/zhukovaskychina/godb-storage/storage/page"
	"github.com/zhukovaskychina/godb-storage/util"
)

// ExtendibleHashTable is a disk-resident hash index over the buffer pool.
// A directory page fans out to bucket pages; buckets split and the
// directory doubles on overflow, empty buckets merge back into their split
// images and the directory halves when every bucket allows it.
//
// Latching: the table latch is taken shared by lookups, simple inserts and
// removes, and exclusive by splits and merges. Bucket page latches order
// strictly after the table latch.
type ExtendibleHashTable struct {
	bpm             buffer.BufferPoolManager
	directoryPageID basic.PageID
	bucketCapacity  uint32
	tableLatch      sync.RWMutex
}

// NewExtendibleHashTable allocates the directory page and the first bucket.
// bucketCapacity 0 means derive it from the page size.
func NewExtendibleHashTable(bpm buffer.BufferPoolManager, bucketCapacity uint32) (*ExtendibleHashTable, error) {
	if bucketCapacity == 0 {
		bucketCapacity = page.BucketCapacityFor(bpm.PageSize())
	}

	dirPageRaw, err := bpm.NewPage()
	if err != nil {
		return nil, err
	}
	dir := page.DirectoryPageFrom(dirPageRaw)
	dir.SetPageID(dirPageRaw.ID())

	bucket0Raw, err := bpm.NewPage()
	if err != nil {
		bpm.UnpinPage(dirPageRaw.ID(), false)
		return nil, err
	}
	dir.SetBucketPageID(0, bucket0Raw.ID())
	dir.SetLocalDepth(0, 0)

	ht := &ExtendibleHashTable{
		bpm:             bpm,
		directoryPageID: dirPageRaw.ID(),
		bucketCapacity:  bucketCapacity,
	}
	bpm.UnpinPage(dirPageRaw.ID(), true)
	bpm.UnpinPage(bucket0Raw.ID(), true)
	return ht, nil
}

// BucketCapacity returns the number of slots per bucket page.
func (ht *ExtendibleHashTable) BucketCapacity() uint32 {
	return ht.bucketCapacity
}

func (ht *ExtendibleHashTable) hash(key uint64) uint32 {
	return util.HashUint64(key)
}

func (ht *ExtendibleHashTable) keyToDirectoryIndex(key uint64, dir *page.HashTableDirectoryPage) uint32 {
	return ht.hash(key) & dir.GlobalDepthMask()
}

func (ht *ExtendibleHashTable) keyToPageID(key uint64, dir *page.HashTableDirectoryPage) basic.PageID {
	return dir.GetBucketPageID(ht.keyToDirectoryIndex(key, dir))
}

// fetchDirectoryPage pins the directory page. The caller unpins it.
func (ht *ExtendibleHashTable) fetchDirectoryPage() *page.HashTableDirectoryPage {
	dirPageRaw, err := ht.bpm.FetchPage(ht.directoryPageID)
	if err != nil {
		panic(fmt.Sprintf("hash table: cannot fetch directory page %d: %v", ht.directoryPageID, err))
	}
	return page.DirectoryPageFrom(dirPageRaw)
}

// fetchBucketPage pins a bucket page. The caller unpins it.
func (ht *ExtendibleHashTable) fetchBucketPage(pageID basic.PageID) *page.HashTableBucketPage {
	bucketPageRaw, err := ht.bpm.FetchPage(pageID)
	if err != nil {
		panic(fmt.Sprintf("hash table: cannot fetch bucket page %d: %v", pageID, err))
	}
	return page.BucketPageFrom(bucketPageRaw, ht.bucketCapacity)
}

// GetValue returns every rid stored under key.
func (ht *ExtendibleHashTable) GetValue(txn *concurrency.Transaction, key uint64) []basic.RID {
	ht.tableLatch.RLock()
	defer ht.tableLatch.RUnlock()

	dir := ht.fetchDirectoryPage()
	bucketPageID := ht.keyToPageID(key, dir)
	bucket := ht.fetchBucketPage(bucketPageID)

	bucket.Page().RLatch()
	result := bucket.GetValue(key)
	bucket.Page().RUnlatch()

	ht.bpm.UnpinPage(ht.directoryPageID, false)
	ht.bpm.UnpinPage(bucketPageID, false)
	return result
}

// Insert adds (key, rid), splitting the target bucket when it is full. An
// exact duplicate pair is rejected. A successful insert is recorded in the
// transaction's index write set.
func (ht *ExtendibleHashTable) Insert(txn *concurrency.Transaction, key uint64, rid basic.RID) bool {
	ht.tableLatch.RLock()

	dir := ht.fetchDirectoryPage()
	bucketPageID := ht.keyToPageID(key, dir)
	bucket := ht.fetchBucketPage(bucketPageID)

	bucket.Page().WLatch()
	isFull := bucket.IsFull()
	insertOK := false
	if !isFull {
		insertOK = bucket.Insert(key, rid)
	}
	bucket.Page().WUnlatch()

	ht.bpm.UnpinPage(ht.directoryPageID, false)
	ht.bpm.UnpinPage(bucketPageID, insertOK)
	ht.tableLatch.RUnlock()

	if isFull {
		return ht.splitInsert(txn, key, rid)
	}
	if insertOK && txn != nil {
		txn.AppendIndexWriteRecord(concurrency.IndexWriteRecord{Key: key, Rid: rid, WType: concurrency.IndexInsert, Index: ht})
	}
	return insertOK
}

// splitInsert grows the table for a key whose bucket was full: the
// directory doubles if needed, the bucket's entries rehash between itself
// and a fresh split image, and the insert retries from the top.
func (ht *ExtendibleHashTable) splitInsert(txn *concurrency.Transaction, key uint64, rid basic.RID) bool {
	ht.tableLatch.Lock()

	dir := ht.fetchDirectoryPage()
	bucketIdx := ht.keyToDirectoryIndex(key, dir)

	// no room left to grow
	if dir.GetLocalDepth(bucketIdx) == page.MaxGlobalDepth {
		logger.Debugf("hash table: bucket for key %d already at max depth %d, insert rejected", key, page.MaxGlobalDepth)
		ht.bpm.UnpinPage(ht.directoryPageID, false)
		ht.tableLatch.Unlock()
		return false
	}

	bucketPageID := dir.GetBucketPageID(bucketIdx)
	bucket := ht.fetchBucketPage(bucketPageID)

	// a concurrent remove may have made room while we re-latched
	if !bucket.IsFull() {
		insertOK := bucket.Insert(key, rid)
		ht.bpm.UnpinPage(bucketPageID, insertOK)
		ht.bpm.UnpinPage(ht.directoryPageID, false)
		ht.tableLatch.Unlock()
		if insertOK && txn != nil {
			txn.AppendIndexWriteRecord(concurrency.IndexWriteRecord{Key: key, Rid: rid, WType: concurrency.IndexInsert, Index: ht})
		}
		return insertOK
	}

	if dir.GetLocalDepth(bucketIdx) == dir.GlobalDepth() {
		dir.IncrGlobalDepth()
	}
	dir.IncrLocalDepth(bucketIdx)
	newLocalDepth := dir.GetLocalDepth(bucketIdx)

	bucket.Page().WLatch()
	oldPairs := bucket.FetchAll()
	bucket.Reset()

	imagePageRaw, err := ht.bpm.NewPage()
	if err != nil {
		panic(fmt.Sprintf("hash table: cannot allocate split image bucket: %v", err))
	}
	imageBucket := page.BucketPageFrom(imagePageRaw, ht.bucketCapacity)
	imagePageRaw.WLatch()

	imageIdx := dir.GetSplitImageIndex(bucketIdx)
	dir.SetLocalDepth(imageIdx, newLocalDepth)
	dir.SetBucketPageID(imageIdx, imagePageRaw.ID())

	// rehash the overflowing bucket under the widened local mask; every
	// pair lands either back home or in the split image
	localMask := dir.GetLocalDepthMask(bucketIdx)
	for _, pair := range oldPairs {
		newIdx := ht.hash(pair.Key) & localMask
		switch newIdx {
		case bucketIdx & localMask:
			bucket.Insert(pair.Key, pair.Rid)
		case imageIdx & localMask:
			imageBucket.Insert(pair.Key, pair.Rid)
		default:
			panic(fmt.Sprintf("hash table: rehashed key %d landed on index %d, outside the split pair", pair.Key, newIdx))
		}
	}

	// every other directory entry sharing the low newLocalDepth bits with
	// either half must point at the right page and carry the new depth
	stride := uint32(1) << newLocalDepth
	for i := bucketIdx % stride; i < dir.Size(); i += stride {
		dir.SetBucketPageID(i, bucketPageID)
		dir.SetLocalDepth(i, newLocalDepth)
	}
	for i := imageIdx % stride; i < dir.Size(); i += stride {
		dir.SetBucketPageID(i, imagePageRaw.ID())
		dir.SetLocalDepth(i, newLocalDepth)
	}

	bucket.Page().WUnlatch()
	imagePageRaw.WUnlatch()

	ht.bpm.UnpinPage(bucketPageID, true)
	ht.bpm.UnpinPage(imagePageRaw.ID(), true)
	ht.bpm.UnpinPage(ht.directoryPageID, true)
	ht.tableLatch.Unlock()

	// local depth strictly grew, so the retry terminates
	return ht.Insert(txn, key, rid)
}

// Remove tombstones (key, rid) and merges the bucket away when it drains.
// A successful remove is recorded in the transaction's index write set.
func (ht *ExtendibleHashTable) Remove(txn *concurrency.Transaction, key uint64, rid basic.RID) bool {
	ht.tableLatch.RLock()

	dir := ht.fetchDirectoryPage()
	bucketPageID := ht.keyToPageID(key, dir)
	bucket := ht.fetchBucketPage(bucketPageID)

	bucket.Page().WLatch()
	removeOK := bucket.Remove(key, rid)
	nowEmpty := bucket.IsEmpty()
	bucket.Page().WUnlatch()

	ht.bpm.UnpinPage(bucketPageID, removeOK)
	ht.bpm.UnpinPage(ht.directoryPageID, false)
	ht.tableLatch.RUnlock()

	if removeOK && nowEmpty {
		ht.merge(key)
	}
	if removeOK && txn != nil {
		txn.AppendIndexWriteRecord(concurrency.IndexWriteRecord{Key: key, Rid: rid, WType: concurrency.IndexDelete, Index: ht})
	}
	return removeOK
}

// merge folds the key's emptied bucket into its split image, then sweeps
// the directory for any other bucket that drained in the meantime.
func (ht *ExtendibleHashTable) merge(key uint64) {
	ht.tableLatch.Lock()
	defer ht.tableLatch.Unlock()

	dir := ht.fetchDirectoryPage()
	ht.mergeAt(dir, ht.keyToDirectoryIndex(key, dir))
	for idx := uint32(0); idx < dir.Size(); idx++ {
		ht.mergeAt(dir, idx)
	}
	for dir.CanShrink() {
		dir.DecrGlobalDepth()
	}
	ht.bpm.UnpinPage(ht.directoryPageID, true)
}

// mergeAt retargets the empty bucket at idx to its split image and drops
// the bucket page. Caller holds the table write latch and the directory
// pin.
func (ht *ExtendibleHashTable) mergeAt(dir *page.HashTableDirectoryPage, idx uint32) {
	if idx >= dir.Size() {
		return
	}

	imageIdx := dir.GetSplitImageIndex(idx)
	if dir.GetLocalDepth(idx) == 0 ||
		dir.GetLocalDepth(idx) != dir.GetLocalDepth(imageIdx) ||
		dir.GetBucketPageID(idx) == dir.GetBucketPageID(imageIdx) {
		return
	}

	// the bucket may have been refilled since the remove that queued this
	// merge
	bucketPageID := dir.GetBucketPageID(idx)
	bucket := ht.fetchBucketPage(bucketPageID)
	bucket.Page().RLatch()
	empty := bucket.IsEmpty()
	bucket.Page().RUnlatch()
	ht.bpm.UnpinPage(bucketPageID, false)
	if !empty {
		return
	}

	if !ht.bpm.DeletePage(bucketPageID) {
		logger.Warnf("hash table: empty bucket page %d still pinned, merge skipped", bucketPageID)
		return
	}

	imagePageID := dir.GetBucketPageID(imageIdx)
	dir.SetBucketPageID(idx, imagePageID)
	dir.DecrLocalDepth(idx)
	dir.DecrLocalDepth(imageIdx)

	// everything that pointed at either half of the pair now points at the
	// survivor with the shrunken depth
	for i := uint32(0); i < dir.Size(); i++ {
		if dir.GetBucketPageID(i) == bucketPageID || dir.GetBucketPageID(i) == imagePageID {
			dir.SetBucketPageID(i, imagePageID)
			dir.SetLocalDepth(i, dir.GetLocalDepth(imageIdx))
		}
	}

	for dir.CanShrink() {
		dir.DecrGlobalDepth()
	}
}

// GetGlobalDepth returns the directory height.
func (ht *ExtendibleHashTable) GetGlobalDepth() uint32 {
	ht.tableLatch.RLock()
	defer ht.tableLatch.RUnlock()

	dir := ht.fetchDirectoryPage()
	depth := dir.GlobalDepth()
	ht.bpm.UnpinPage(ht.directoryPageID, false)
	return depth
}

// VerifyIntegrity panics if the directory invariants are broken.
func (ht *ExtendibleHashTable) VerifyIntegrity() {
	ht.tableLatch.RLock()
	defer ht.tableLatch.RUnlock()

	dir := ht.fetchDirectoryPage()
	dir.VerifyIntegrity()
	ht.bpm.UnpinPage(ht.directoryPageID, false)
}
