package concurrency

import (
	"sync"
	"testing"
	"time"

	"github.com/zhukovaskychina/godb-storage/basic"
)

func TestLockManager_SharedLocksCoexist(t *testing.T) {
	lm := NewLockManager()
	tm := NewTransactionManager(lm)
	t1 := tm.Begin(REPEATABLE_READ)
	t2 := tm.Begin(REPEATABLE_READ)
	rid := basic.NewRID(1, 1)

	if !lm.LockShared(t1, rid) {
		t.Error("t1 failed to acquire shared lock")
	}
	if !lm.LockShared(t2, rid) {
		t.Error("t2 failed to acquire shared lock")
	}
	if !t1.IsSharedLocked(rid) || !t2.IsSharedLocked(rid) {
		t.Error("shared lock sets not updated")
	}

	// re-request while already holding is a no-op success
	if !lm.LockShared(t1, rid) {
		t.Error("re-request of held shared lock failed")
	}
}

func TestLockManager_ExclusiveWoundsYounger(t *testing.T) {
	lm := NewLockManager()
	tm := NewTransactionManager(lm)
	older := tm.Begin(REPEATABLE_READ) // id 0
	younger := tm.Begin(REPEATABLE_READ)
	rid := basic.NewRID(2, 1)

	if !lm.LockExclusive(younger, rid) {
		t.Fatal("younger failed to acquire exclusive lock")
	}
	if !lm.LockExclusive(older, rid) {
		t.Error("older must wound the younger holder and take the lock")
	}
	if younger.State() != ABORTED {
		t.Errorf("younger state = %v, want ABORTED", younger.State())
	}
	if younger.IsExclusiveLocked(rid) {
		t.Error("wounded transaction still holds the lock")
	}
	if !older.IsExclusiveLocked(rid) {
		t.Error("older does not hold the lock after wounding")
	}
}

func TestLockManager_YoungerExclusiveWoundsItself(t *testing.T) {
	lm := NewLockManager()
	tm := NewTransactionManager(lm)
	older := tm.Begin(REPEATABLE_READ)
	younger := tm.Begin(REPEATABLE_READ)
	rid := basic.NewRID(2, 2)

	if !lm.LockShared(older, rid) {
		t.Fatal("older failed to acquire shared lock")
	}
	if lm.LockExclusive(younger, rid) {
		t.Error("younger exclusive request against an older holder must fail")
	}
	if younger.State() != ABORTED {
		t.Errorf("younger state = %v, want ABORTED", younger.State())
	}
	if !older.IsSharedLocked(rid) {
		t.Error("older lost its shared lock")
	}
}

// Older exclusive requester wounds both the younger holder and a younger
// waiter parked on the same row.
func TestLockManager_WoundWaitAbortsHolderAndWaiter(t *testing.T) {
	lm := NewLockManager()
	tm := NewTransactionManager(lm)
	t3 := tm.Begin(REPEATABLE_READ) // id 0, the oldest
	t1 := tm.Begin(REPEATABLE_READ) // id 1
	t2 := tm.Begin(REPEATABLE_READ) // id 2, the youngest
	rid := basic.NewRID(3, 1)

	if !lm.LockExclusive(t1, rid) {
		t.Fatal("t1 failed to acquire exclusive lock")
	}

	waiterDone := make(chan bool, 1)
	go func() {
		// blocks behind t1's exclusive lock
		waiterDone <- lm.LockShared(t2, rid)
	}()

	// let t2 park on the queue
	time.Sleep(100 * time.Millisecond)
	select {
	case <-waiterDone:
		t.Fatal("t2 did not block behind the exclusive holder")
	default:
	}

	if !lm.LockExclusive(t3, rid) {
		t.Fatal("oldest transaction failed to take the lock by wounding")
	}

	select {
	case granted := <-waiterDone:
		if granted {
			t.Error("wounded waiter reported a granted lock")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wounded waiter never woke up")
	}

	if t1.State() != ABORTED {
		t.Errorf("t1 state = %v, want ABORTED", t1.State())
	}
	if t2.State() != ABORTED {
		t.Errorf("t2 state = %v, want ABORTED", t2.State())
	}
	if !t3.IsExclusiveLocked(rid) {
		t.Error("t3 does not hold the exclusive lock")
	}
}

func TestLockManager_YoungerWaitsUntilUnlock(t *testing.T) {
	lm := NewLockManager()
	tm := NewTransactionManager(lm)
	older := tm.Begin(READ_COMMITTED)
	younger := tm.Begin(READ_COMMITTED)
	rid := basic.NewRID(3, 2)

	if !lm.LockExclusive(older, rid) {
		t.Fatal("older failed to acquire exclusive lock")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	granted := false
	go func() {
		defer wg.Done()
		granted = lm.LockShared(younger, rid)
	}()

	time.Sleep(100 * time.Millisecond)
	if !lm.Unlock(older, rid) {
		t.Fatal("older failed to unlock")
	}
	wg.Wait()

	if !granted {
		t.Error("younger was not granted the lock after the older unlocked")
	}
	if !younger.IsSharedLocked(rid) {
		t.Error("younger's shared lock set not updated")
	}
}

func TestLockManager_Upgrade(t *testing.T) {
	lm := NewLockManager()
	tm := NewTransactionManager(lm)
	txn := tm.Begin(REPEATABLE_READ)
	rid := basic.NewRID(4, 1)

	if !lm.LockShared(txn, rid) {
		t.Fatal("failed to acquire shared lock")
	}
	if !lm.LockUpgrade(txn, rid) {
		t.Fatal("upgrade with no other holders must succeed")
	}
	if !txn.IsExclusiveLocked(rid) {
		t.Error("upgraded transaction does not hold the exclusive lock")
	}
	if txn.IsSharedLocked(rid) {
		t.Error("upgraded transaction still holds the shared lock")
	}

	// upgrade of an already exclusive lock is a no-op success
	if !lm.LockUpgrade(txn, rid) {
		t.Error("re-upgrade of an exclusive lock failed")
	}
}

func TestLockManager_UpgradeWithoutSharedAborts(t *testing.T) {
	lm := NewLockManager()
	tm := NewTransactionManager(lm)
	txn := tm.Begin(REPEATABLE_READ)
	rid := basic.NewRID(4, 2)

	if lm.LockUpgrade(txn, rid) {
		t.Error("upgrade without a shared lock must fail")
	}
	if txn.State() != ABORTED {
		t.Errorf("state = %v, want ABORTED", txn.State())
	}
}

func TestLockManager_UpgradeWoundsYoungerReader(t *testing.T) {
	lm := NewLockManager()
	tm := NewTransactionManager(lm)
	older := tm.Begin(REPEATABLE_READ)
	younger := tm.Begin(REPEATABLE_READ)
	rid := basic.NewRID(4, 3)

	if !lm.LockShared(older, rid) || !lm.LockShared(younger, rid) {
		t.Fatal("shared locks not granted")
	}
	if !lm.LockUpgrade(older, rid) {
		t.Fatal("older upgrade must wound the younger reader")
	}
	if younger.State() != ABORTED {
		t.Errorf("younger state = %v, want ABORTED", younger.State())
	}
	if !older.IsExclusiveLocked(rid) {
		t.Error("older does not hold the exclusive lock after upgrade")
	}
}

func TestLockManager_ReadUncommittedSharedAborts(t *testing.T) {
	lm := NewLockManager()
	tm := NewTransactionManager(lm)
	txn := tm.Begin(READ_UNCOMMITTED)
	rid := basic.NewRID(5, 1)

	if lm.LockShared(txn, rid) {
		t.Error("shared lock under READ_UNCOMMITTED must abort")
	}
	if txn.State() != ABORTED {
		t.Errorf("state = %v, want ABORTED", txn.State())
	}

	// exclusive locks stay legal under READ_UNCOMMITTED
	other := tm.Begin(READ_UNCOMMITTED)
	if !lm.LockExclusive(other, rid) {
		t.Error("exclusive lock under READ_UNCOMMITTED failed")
	}
}

func TestLockManager_RepeatableReadShrinkingAborts(t *testing.T) {
	lm := NewLockManager()
	tm := NewTransactionManager(lm)
	txn := tm.Begin(REPEATABLE_READ)
	r1 := basic.NewRID(6, 1)
	r2 := basic.NewRID(6, 2)

	if !lm.LockShared(txn, r1) {
		t.Fatal("failed to acquire first shared lock")
	}
	if !lm.Unlock(txn, r1) {
		t.Fatal("unlock failed")
	}
	if txn.State() != SHRINKING {
		t.Errorf("state after first unlock = %v, want SHRINKING", txn.State())
	}
	if lm.LockShared(txn, r2) {
		t.Error("lock during SHRINKING must abort a REPEATABLE_READ transaction")
	}
	if txn.State() != ABORTED {
		t.Errorf("state = %v, want ABORTED", txn.State())
	}
}

func TestLockManager_ReadCommittedLocksWhileShrinking(t *testing.T) {
	lm := NewLockManager()
	tm := NewTransactionManager(lm)
	txn := tm.Begin(READ_COMMITTED)
	r1 := basic.NewRID(6, 3)
	r2 := basic.NewRID(6, 4)

	if !lm.LockShared(txn, r1) {
		t.Fatal("failed to acquire first shared lock")
	}
	if !lm.Unlock(txn, r1) {
		t.Fatal("unlock failed")
	}
	// READ_COMMITTED releases read locks early and keeps reading
	if !lm.LockShared(txn, r2) {
		t.Error("READ_COMMITTED must re-acquire shared locks after releases")
	}
}

func TestLockManager_UnlockWithoutLock(t *testing.T) {
	lm := NewLockManager()
	tm := NewTransactionManager(lm)
	txn := tm.Begin(REPEATABLE_READ)

	if lm.Unlock(txn, basic.NewRID(7, 1)) {
		t.Error("unlock of a never-locked rid must fail")
	}
}
