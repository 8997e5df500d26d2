package concurrency

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/zhukovaskychina/godb-storage/basic"
	"github.com/zhukovaskychina/godb-storage/logger"
)

// LockMode 锁类型
type LockMode int

const (
	SHARED LockMode = iota
	EXCLUSIVE
)

// LockRequest is one transaction's position in a row's queue. Ungranted
// requests belong to waiters parked on the queue's condition variable.
type LockRequest struct {
	txn     *Transaction
	txnID   basic.TxnID
	mode    LockMode
	granted bool
}

// LockRequestQueue linearizes the grant order on one row.
type LockRequestQueue struct {
	requests *list.List
	cv       *sync.Cond
	// txn id of an upgrading transaction, if any
	upgrading basic.TxnID
}

// LockManager hands out row locks under strict two-phase locking with
// wound-wait deadlock prevention: an older transaction aborts younger
// conflicting ones, a younger transaction waits for older ones. All
// decisions run under one latch; waiters park on per-row condition
// variables that release the latch while blocked.
type LockManager struct {
	mu        sync.Mutex
	lockTable map[basic.RID]*LockRequestQueue
}

// NewLockManager 创建锁管理器
func NewLockManager() *LockManager {
	return &LockManager{
		lockTable: make(map[basic.RID]*LockRequestQueue),
	}
}

// queue returns the request queue for rid, creating it on first use.
// Queues live for the lifetime of the process.
func (lm *LockManager) queue(rid basic.RID) *LockRequestQueue {
	q, ok := lm.lockTable[rid]
	if !ok {
		q = &LockRequestQueue{
			requests:  list.New(),
			cv:        sync.NewCond(&lm.mu),
			upgrading: basic.InvalidTxnID,
		}
		lm.lockTable[rid] = q
	}
	return q
}

// wound aborts the transaction behind elem: state goes to ABORTED before
// the entry leaves the queue, its bookkeeping for rid is dropped, and the
// queue is woken so a parked victim can observe its own abort.
func (lm *LockManager) wound(q *LockRequestQueue, elem *list.Element, rid basic.RID) {
	req := elem.Value.(*LockRequest)
	victim := req.txn
	victim.SetState(ABORTED)
	if req.mode == SHARED {
		delete(victim.sharedLockSet, rid)
	} else {
		delete(victim.exclusiveLockSet, rid)
	}
	q.requests.Remove(elem)
	q.cv.Broadcast()
	logger.Debugf("lock manager wounded txn %d on rid %s", req.txnID, rid)
}

// LockShared acquires a shared lock on rid, waiting behind older exclusive
// holders and wounding younger ones.
func (lm *LockManager) LockShared(txn *Transaction, rid basic.RID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if txn.State() == ABORTED {
		return false
	}
	// 读未提交不需要读锁
	if txn.IsolationLevel() == READ_UNCOMMITTED {
		txn.SetState(ABORTED)
		return false
	}
	// REPEATABLE_READ only acquires locks while growing
	if txn.IsolationLevel() == REPEATABLE_READ && txn.State() != GROWING {
		txn.SetState(ABORTED)
		return false
	}
	if txn.IsSharedLocked(rid) || txn.IsExclusiveLocked(rid) {
		return true
	}

	q := lm.queue(rid)
	own := &LockRequest{txn: txn, txnID: txn.ID(), mode: SHARED}
	q.requests.PushBack(own)

	for {
		waited := false
		for e := q.requests.Front(); e != nil; {
			next := e.Next()
			req := e.Value.(*LockRequest)
			switch {
			case req.txnID == txn.ID():
				// own request
			case req.txnID > txn.ID() && req.mode == EXCLUSIVE:
				lm.wound(q, e, rid)
			case req.txnID < txn.ID() && req.mode == EXCLUSIVE:
				q.cv.Wait()
				if txn.State() == ABORTED {
					// wounded while parked; the wounder already removed
					// our request
					return false
				}
				waited = true
			}
			if waited {
				break
			}
			e = next
		}
		if !waited {
			break
		}
	}

	own.granted = true
	txn.sharedLockSet[rid] = struct{}{}
	txn.SetState(GROWING)
	return true
}

// LockExclusive acquires an exclusive lock on rid. Younger entries of any
// mode are wounded; an older entry of any mode wounds the requester itself,
// since older holders never yield to younger requesters.
func (lm *LockManager) LockExclusive(txn *Transaction, rid basic.RID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if txn.State() == ABORTED {
		return false
	}
	if txn.IsolationLevel() == REPEATABLE_READ && txn.State() != GROWING {
		txn.SetState(ABORTED)
		return false
	}
	if txn.IsExclusiveLocked(rid) {
		return true
	}

	q := lm.queue(rid)
	for e := q.requests.Front(); e != nil; {
		next := e.Next()
		req := e.Value.(*LockRequest)
		switch {
		case req.txnID == txn.ID():
			// own shared request, skip
		case req.txnID > txn.ID():
			lm.wound(q, e, rid)
		default:
			// an older transaction is here; the young requester wounds
			// itself rather than waiting with an exclusive demand
			txn.SetState(ABORTED)
			logger.Debugf("lock manager: txn %d aborted itself requesting X on rid %s held by older txn %d",
				txn.ID(), rid, req.txnID)
			return false
		}
		e = next
	}

	q.requests.PushBack(&LockRequest{txn: txn, txnID: txn.ID(), mode: EXCLUSIVE, granted: true})
	txn.exclusiveLockSet[rid] = struct{}{}
	txn.SetState(GROWING)
	return true
}

// LockUpgrade turns the requester's shared lock on rid into an exclusive
// one, wounding younger entries and waiting out older ones.
func (lm *LockManager) LockUpgrade(txn *Transaction, rid basic.RID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	q := lm.queue(rid)
	for {
		if txn.State() == ABORTED {
			q.upgrading = basic.InvalidTxnID
			return false
		}
		if txn.IsolationLevel() == REPEATABLE_READ && txn.State() != GROWING {
			txn.SetState(ABORTED)
			q.upgrading = basic.InvalidTxnID
			return false
		}
		if txn.IsExclusiveLocked(rid) {
			q.upgrading = basic.InvalidTxnID
			return true
		}
		if !txn.IsSharedLocked(rid) {
			txn.SetState(ABORTED)
			q.upgrading = basic.InvalidTxnID
			return false
		}
		q.upgrading = txn.ID()

		waited := false
		for e := q.requests.Front(); e != nil; {
			next := e.Next()
			req := e.Value.(*LockRequest)
			switch {
			case req.txnID == txn.ID():
				// the shared request being upgraded
			case req.txnID > txn.ID():
				lm.wound(q, e, rid)
			default:
				q.cv.Wait()
				waited = true
			}
			if waited {
				break
			}
			e = next
		}
		if waited {
			continue
		}

		// only the requester's shared entry may remain now
		if q.requests.Len() != 1 {
			panic(fmt.Sprintf("lock upgrade on rid %s: queue holds %d requests, want 1", rid, q.requests.Len()))
		}
		own := q.requests.Front().Value.(*LockRequest)
		if own.txnID != txn.ID() {
			panic(fmt.Sprintf("lock upgrade on rid %s: surviving request belongs to txn %d, want %d", rid, own.txnID, txn.ID()))
		}
		own.mode = EXCLUSIVE
		own.granted = true
		delete(txn.sharedLockSet, rid)
		txn.exclusiveLockSet[rid] = struct{}{}
		q.upgrading = basic.InvalidTxnID
		txn.SetState(GROWING)
		return true
	}
}

// Unlock releases whatever lock txn holds on rid. The first release of a
// REPEATABLE_READ transaction moves it into the shrinking phase.
func (lm *LockManager) Unlock(txn *Transaction, rid basic.RID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.unlockLocked(txn, rid)
}

func (lm *LockManager) unlockLocked(txn *Transaction, rid basic.RID) bool {
	if !txn.IsSharedLocked(rid) && !txn.IsExclusiveLocked(rid) {
		return false
	}

	if txn.IsolationLevel() == REPEATABLE_READ && txn.State() == GROWING {
		txn.SetState(SHRINKING)
	}

	q := lm.queue(rid)
	for e := q.requests.Front(); e != nil; {
		next := e.Next()
		if e.Value.(*LockRequest).txnID == txn.ID() {
			q.requests.Remove(e)
		}
		e = next
	}
	delete(txn.sharedLockSet, rid)
	delete(txn.exclusiveLockSet, rid)
	q.cv.Broadcast()
	return true
}

// ReleaseAllLocks drops every lock txn still holds, used at commit and
// abort.
func (lm *LockManager) ReleaseAllLocks(txn *Transaction) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	rids := make([]basic.RID, 0, len(txn.sharedLockSet)+len(txn.exclusiveLockSet))
	for rid := range txn.sharedLockSet {
		rids = append(rids, rid)
	}
	for rid := range txn.exclusiveLockSet {
		rids = append(rids, rid)
	}
	for _, rid := range rids {
		lm.unlockLocked(txn, rid)
	}
}
