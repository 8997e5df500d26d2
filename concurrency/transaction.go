package concurrency

import (
	"sync/atomic"

	"github.com/zhukovaskychina/godb-storage/basic"
)

// TransactionState follows the two-phase locking lifecycle.
type TransactionState int

const (
	GROWING TransactionState = iota
	SHRINKING
	COMMITTED
	ABORTED
)

func (s TransactionState) String() string {
	switch s {
	case GROWING:
		return "GROWING"
	case SHRINKING:
		return "SHRINKING"
	case COMMITTED:
		return "COMMITTED"
	case ABORTED:
		return "ABORTED"
	}
	return "UNKNOWN"
}

// IsolationLevel selects how strictly a transaction's reads are locked.
type IsolationLevel int

const (
	READ_UNCOMMITTED IsolationLevel = iota
	READ_COMMITTED
	REPEATABLE_READ
)

func (l IsolationLevel) String() string {
	switch l {
	case READ_UNCOMMITTED:
		return "READ_UNCOMMITTED"
	case READ_COMMITTED:
		return "READ_COMMITTED"
	case REPEATABLE_READ:
		return "REPEATABLE_READ"
	}
	return "UNKNOWN"
}

// WType distinguishes the two index mutations a transaction can roll back.
type WType int

const (
	IndexInsert WType = iota
	IndexDelete
)

// RollbackIndex is the slice of the hash index the transaction manager
// needs to undo recorded writes on abort.
type RollbackIndex interface {
	Insert(txn *Transaction, key uint64, rid basic.RID) bool
	Remove(txn *Transaction, key uint64, rid basic.RID) bool
}

// IndexWriteRecord remembers one index mutation so an abort can undo it.
type IndexWriteRecord struct {
	Key   uint64
	Rid   basic.RID
	WType WType
	Index RollbackIndex
}

// Transaction carries the lock bookkeeping and the index write set of one
// in-flight transaction. The state field is touched from other goroutines
// when a wound-wait victim is aborted, so it is accessed atomically; the
// lock sets are only mutated under the lock manager's latch.
type Transaction struct {
	id        basic.TxnID
	state     int32
	isolation IsolationLevel

	sharedLockSet    map[basic.RID]struct{}
	exclusiveLockSet map[basic.RID]struct{}

	indexWriteSet []IndexWriteRecord
}

// NewTransaction builds a transaction in the GROWING phase.
func NewTransaction(id basic.TxnID, isolation IsolationLevel) *Transaction {
	return &Transaction{
		id:               id,
		state:            int32(GROWING),
		isolation:        isolation,
		sharedLockSet:    make(map[basic.RID]struct{}),
		exclusiveLockSet: make(map[basic.RID]struct{}),
	}
}

// ID returns the transaction id; a larger id means a younger transaction.
func (txn *Transaction) ID() basic.TxnID {
	return txn.id
}

// State returns the current lifecycle state.
func (txn *Transaction) State() TransactionState {
	return TransactionState(atomic.LoadInt32(&txn.state))
}

// SetState moves the transaction to a new lifecycle state.
func (txn *Transaction) SetState(state TransactionState) {
	atomic.StoreInt32(&txn.state, int32(state))
}

// IsolationLevel returns the isolation level fixed at Begin.
func (txn *Transaction) IsolationLevel() IsolationLevel {
	return txn.isolation
}

// IsSharedLocked reports whether the transaction holds a shared lock on rid.
func (txn *Transaction) IsSharedLocked(rid basic.RID) bool {
	_, ok := txn.sharedLockSet[rid]
	return ok
}

// IsExclusiveLocked reports whether the transaction holds an exclusive lock
// on rid.
func (txn *Transaction) IsExclusiveLocked(rid basic.RID) bool {
	_, ok := txn.exclusiveLockSet[rid]
	return ok
}

// SharedLockSet exposes the rids this transaction holds shared locks on.
func (txn *Transaction) SharedLockSet() map[basic.RID]struct{} {
	return txn.sharedLockSet
}

// ExclusiveLockSet exposes the rids this transaction holds exclusive locks
// on.
func (txn *Transaction) ExclusiveLockSet() map[basic.RID]struct{} {
	return txn.exclusiveLockSet
}

// AppendIndexWriteRecord records an index mutation for rollback.
func (txn *Transaction) AppendIndexWriteRecord(record IndexWriteRecord) {
	txn.indexWriteSet = append(txn.indexWriteSet, record)
}

// IndexWriteSet returns the recorded index mutations in append order.
func (txn *Transaction) IndexWriteSet() []IndexWriteRecord {
	return txn.indexWriteSet
}
