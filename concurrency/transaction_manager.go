package concurrency

import (
	"sync"

	"github.com/zhukovaskychina/godb-storage/basic"
	"github.com/zhukovaskychina/godb-storage/logger"
)

// TransactionManager drives transaction begin, commit and abort. Abort
// replays the index write set backwards so every recorded index mutation is
// undone before the locks go.
type TransactionManager struct {
	mu          sync.Mutex
	nextTxnID   basic.TxnID
	txns        map[basic.TxnID]*Transaction
	lockManager *LockManager
}

// NewTransactionManager 创建事务管理器
func NewTransactionManager(lockManager *LockManager) *TransactionManager {
	return &TransactionManager{
		txns:        make(map[basic.TxnID]*Transaction),
		lockManager: lockManager,
	}
}

// Begin starts a transaction at the given isolation level.
func (tm *TransactionManager) Begin(isolation IsolationLevel) *Transaction {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	txn := NewTransaction(tm.nextTxnID, isolation)
	tm.txns[txn.ID()] = txn
	tm.nextTxnID++
	return txn
}

// GetTransaction resolves a transaction by id.
func (tm *TransactionManager) GetTransaction(id basic.TxnID) *Transaction {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.txns[id]
}

// Commit finishes the transaction and releases its locks.
func (tm *TransactionManager) Commit(txn *Transaction) {
	txn.SetState(COMMITTED)
	tm.lockManager.ReleaseAllLocks(txn)
}

// Abort rolls the transaction back: recorded index writes are undone in
// reverse order, then every lock is released.
func (tm *TransactionManager) Abort(txn *Transaction) {
	txn.SetState(ABORTED)

	writeSet := txn.IndexWriteSet()
	for i := len(writeSet) - 1; i >= 0; i-- {
		record := writeSet[i]
		switch record.WType {
		case IndexInsert:
			if !record.Index.Remove(nil, record.Key, record.Rid) {
				logger.Warnf("txn %d rollback: inserted index entry %d -> %s already gone", txn.ID(), record.Key, record.Rid)
			}
		case IndexDelete:
			if !record.Index.Insert(nil, record.Key, record.Rid) {
				logger.Warnf("txn %d rollback: could not restore index entry %d -> %s", txn.ID(), record.Key, record.Rid)
			}
		}
	}

	tm.lockManager.ReleaseAllLocks(txn)
}
