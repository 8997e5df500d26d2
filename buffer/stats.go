package buffer

import "sync/atomic"

// stats tracks cache effectiveness counters for one pool instance.
type stats struct {
	hitCount   uint64
	missCount  uint64
	readCount  uint64
	writeCount uint64
}

// RecordPageHit counts a page served from memory.
func (st *stats) RecordPageHit() {
	atomic.AddUint64(&st.hitCount, 1)
	atomic.AddUint64(&st.readCount, 1)
}

// RecordPageMiss counts a page that had to come from disk.
func (st *stats) RecordPageMiss() {
	atomic.AddUint64(&st.missCount, 1)
	atomic.AddUint64(&st.readCount, 1)
}

// RecordPageWrite counts one page written to disk.
func (st *stats) RecordPageWrite() {
	atomic.AddUint64(&st.writeCount, 1)
}

// HitCount returns hit count.
func (st *stats) HitCount() uint64 {
	return atomic.LoadUint64(&st.hitCount)
}

// MissCount returns miss count.
func (st *stats) MissCount() uint64 {
	return atomic.LoadUint64(&st.missCount)
}

// WriteCount returns the number of disk page writes.
func (st *stats) WriteCount() uint64 {
	return atomic.LoadUint64(&st.writeCount)
}

// HitRate returns rate for cache hitting.
func (st *stats) HitRate() float64 {
	hc, mc := st.HitCount(), st.MissCount()
	total := hc + mc
	if total == 0 {
		return 0.0
	}
	return float64(hc) / float64(total)
}
