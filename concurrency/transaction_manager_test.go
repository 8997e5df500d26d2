package concurrency

import (
	"testing"

	"github.com/zhukovaskychina/godb-storage/basic"
)

// recordingIndex captures rollback calls so abort ordering is observable.
type recordingIndex struct {
	ops []string
}

func (ri *recordingIndex) Insert(txn *Transaction, key uint64, rid basic.RID) bool {
	ri.ops = append(ri.ops, "insert")
	return true
}

func (ri *recordingIndex) Remove(txn *Transaction, key uint64, rid basic.RID) bool {
	ri.ops = append(ri.ops, "remove")
	return true
}

func TestTransactionManager_BeginAssignsMonotonicIDs(t *testing.T) {
	tm := NewTransactionManager(NewLockManager())

	t1 := tm.Begin(READ_COMMITTED)
	t2 := tm.Begin(REPEATABLE_READ)
	if t2.ID() <= t1.ID() {
		t.Errorf("ids not monotonic: %d then %d", t1.ID(), t2.ID())
	}
	if t1.State() != GROWING {
		t.Errorf("fresh transaction state = %v, want GROWING", t1.State())
	}
	if tm.GetTransaction(t1.ID()) != t1 {
		t.Error("GetTransaction did not resolve the transaction")
	}
	if t2.IsolationLevel() != REPEATABLE_READ {
		t.Errorf("isolation = %v, want REPEATABLE_READ", t2.IsolationLevel())
	}
}

func TestTransactionManager_CommitReleasesLocks(t *testing.T) {
	lm := NewLockManager()
	tm := NewTransactionManager(lm)
	txn := tm.Begin(REPEATABLE_READ)
	rid := basic.NewRID(1, 1)

	if !lm.LockExclusive(txn, rid) {
		t.Fatal("failed to acquire exclusive lock")
	}
	tm.Commit(txn)

	if txn.State() != COMMITTED {
		t.Errorf("state = %v, want COMMITTED", txn.State())
	}
	if txn.IsExclusiveLocked(rid) {
		t.Error("committed transaction still holds a lock")
	}

	// the row is free for the next transaction
	next := tm.Begin(REPEATABLE_READ)
	if !lm.LockExclusive(next, rid) {
		t.Error("lock not released at commit")
	}
}

func TestTransactionManager_AbortUndoesWritesInReverse(t *testing.T) {
	lm := NewLockManager()
	tm := NewTransactionManager(lm)
	txn := tm.Begin(REPEATABLE_READ)
	index := &recordingIndex{}

	// forward: insert key 1, delete key 2
	txn.AppendIndexWriteRecord(IndexWriteRecord{Key: 1, Rid: basic.NewRID(1, 0), WType: IndexInsert, Index: index})
	txn.AppendIndexWriteRecord(IndexWriteRecord{Key: 2, Rid: basic.NewRID(2, 0), WType: IndexDelete, Index: index})

	rid := basic.NewRID(3, 3)
	if !lm.LockExclusive(txn, rid) {
		t.Fatal("failed to acquire exclusive lock")
	}

	tm.Abort(txn)

	if txn.State() != ABORTED {
		t.Errorf("state = %v, want ABORTED", txn.State())
	}
	// undo runs backwards: the delete is re-inserted before the insert is
	// removed
	if len(index.ops) != 2 || index.ops[0] != "insert" || index.ops[1] != "remove" {
		t.Errorf("rollback ops = %v, want [insert remove]", index.ops)
	}
	if txn.IsExclusiveLocked(rid) {
		t.Error("aborted transaction still holds a lock")
	}
}
