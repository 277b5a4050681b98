package dstore

import (
	"encoding/gob"
	"fmt"
	"io"

	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sqlock/sqlock/lib/lockstore"
	"github.com/sqlock/sqlock/lib/lockstore/dstore/internal"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// lockStateMachine is the raft state machine holding the lock records of
// one shard. The conditional checks of PutIfVacant and DeleteIfOwner are
// evaluated here, inside the serialized Update path, so a grant decided by
// the leader is the grant every replica records.
type lockStateMachine struct {
	shardID   uint64
	replicaID uint64
	records   *xsync.MapOf[string, lockstore.Record]
}

// NewStateMachineFactory returns the factory dragonboat uses to create the
// lock state machine for a replica.
func NewStateMachineFactory() func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &lockStateMachine{
			shardID:   shardID,
			replicaID: replicaID,
			records:   xsync.NewMapOf[string, lockstore.Record](),
		}
	}
}

// Lookup serves read-only queries against the current record set.
func (fsm *lockStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, lockstore.NewError(lockstore.RetCInternalError, fmt.Sprintf("invalid query type: %T", itf))
	}

	switch q.Type {
	case internal.QueryTGet:
		record, found := fsm.records.Load(q.Key)
		return QueryResult{Record: record, Found: found}, nil
	default:
		return nil, lockstore.NewError(lockstore.RetCInvalidOperation, fmt.Sprintf("unknown query operation: %d", q.Type))
	}
}

// QueryResult is the Lookup response for QueryTGet.
type QueryResult struct {
	Record lockstore.Record
	Found  bool
}

// Update applies the proposed commands. Entries arrive in log order and
// are never applied concurrently, which makes the check-and-write of each
// conditional command atomic across the cluster.
func (fsm *lockStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	for idx, e := range entries {
		if len(e.Cmd) == 0 {
			entries[idx].Result = sm.Result{
				Value: uint64(lockstore.RetCInvalidOperation),
				Data:  []byte("empty command ignored"),
			}
			continue
		}

		cmd := internal.Command{}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = sm.Result{
				Value: uint64(lockstore.RetCInternalError),
				Data:  []byte(fmt.Sprintf("failed to deserialize command: %v", err)),
			}
			continue
		}

		switch cmd.Type {
		case internal.CommandTPutIfVacant:
			entries[idx].Result = fsm.applyPutIfVacant(cmd)
		case internal.CommandTDeleteIfOwner:
			entries[idx].Result = fsm.applyDeleteIfOwner(cmd)
		default:
			entries[idx].Result = sm.Result{
				Value: uint64(lockstore.RetCInvalidOperation),
				Data:  []byte(fmt.Sprintf("unknown command operation: %s", cmd.Type)),
			}
		}
	}
	return entries, nil
}

func (fsm *lockStateMachine) applyPutIfVacant(cmd internal.Command) sm.Result {
	if old, loaded := fsm.records.Load(cmd.Key); loaded && old.ExpiresAt >= cmd.NowMillis {
		return sm.Result{
			Value: uint64(lockstore.RetCConditionFailed),
			Data:  []byte(fmt.Sprintf("lock is held: key=%s", cmd.Key)),
		}
	}
	fsm.records.Store(cmd.Key, lockstore.Record{
		Key:       cmd.Key,
		OwnerID:   cmd.OwnerID,
		ExpiresAt: cmd.ExpireMillis,
	})
	return sm.Result{
		Value: uint64(lockstore.RetCSuccess),
		Data:  []byte(fmt.Sprintf("granted: key=%s", cmd.Key)),
	}
}

func (fsm *lockStateMachine) applyDeleteIfOwner(cmd internal.Command) sm.Result {
	old, loaded := fsm.records.Load(cmd.Key)
	if !loaded || old.OwnerID != cmd.OwnerID {
		return sm.Result{
			Value: uint64(lockstore.RetCConditionFailed),
			Data:  []byte(fmt.Sprintf("not the lock owner: key=%s", cmd.Key)),
		}
	}
	fsm.records.Delete(cmd.Key)
	return sm.Result{
		Value: uint64(lockstore.RetCSuccess),
		Data:  []byte(fmt.Sprintf("released: key=%s", cmd.Key)),
	}
}

// PrepareSnapshot is not used, the record map supports fuzzy snapshotting.
func (fsm *lockStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot writes all records to the writer as a gob stream.
func (fsm *lockStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	var records []lockstore.Record
	fsm.records.Range(func(_ string, record lockstore.Record) bool {
		records = append(records, record)
		return true
	})
	return gob.NewEncoder(writer).Encode(records)
}

// RecoverFromSnapshot restores the record set from a gob stream.
func (fsm *lockStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	var records []lockstore.Record
	if err := gob.NewDecoder(r).Decode(&records); err != nil {
		return err
	}
	for _, record := range records {
		fsm.records.Store(record.Key, record)
	}
	return nil
}

// Close performs any necessary cleanup.
func (fsm *lockStateMachine) Close() error {
	return nil
}
