package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sqlock/sqlock/lib/lockstore"
	"github.com/sqlock/sqlock/lib/lockstore/dstore/internal"
)

var (
	retries = 5
	log     = logger.GetLogger("lockstore")
)

// storeImpl is the ILockStore implementation backed by a raft shard.
// It encapsulates a Dragonboat NodeHost which is used to communicate with
// the lock state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a lock store that proposes every conditional
// operation through raft consensus, giving linearizable grants and
// releases across all nodes of the shard.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) lockstore.ILockStore {
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      nh.GetNoOPSession(shardID),
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// propose submits a command via SyncPropose and maps the state machine's
// result to a *lockstore.Error (nil on success).
func (s *storeImpl) propose(cmd internal.Command) error {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		res, err := s.nh.SyncPropose(ctx, s.cs, cmd.Serialize())
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: system busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}
		if err != nil {
			return lockstore.NewError(lockstore.RetCInternalError, err.Error())
		}
		if res.Value != uint64(lockstore.RetCSuccess) {
			return lockstore.NewError(lockstore.RetCode(res.Value), string(res.Data))
		}
		return nil
	}
	return lockstore.NewError(lockstore.RetCInternalError, "timeout: raft system busy")
}

// lookup runs a linearizable read against the state machine.
func (s *storeImpl) lookup(q internal.Query) (QueryResult, error) {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		res, err := s.nh.SyncRead(ctx, s.shardID, q)
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: system busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}
		if err != nil {
			var se *lockstore.Error
			if errors.As(err, &se) {
				return QueryResult{}, se
			}
			return QueryResult{}, lockstore.NewError(lockstore.RetCInternalError, err.Error())
		}

		casted, ok := res.(QueryResult)
		if !ok {
			return QueryResult{}, lockstore.NewError(lockstore.RetCInternalError,
				fmt.Sprintf("unexpected lookup result type: %T", res))
		}
		return casted, nil
	}
	return QueryResult{}, lockstore.NewError(lockstore.RetCInternalError, "timeout: raft system busy")
}

// --------------------------------------------------------------------------
// Interface Methods (docu see lockstore/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) PutIfVacant(key, ownerID string, now, expiresAt time.Time) error {
	return s.propose(internal.Command{
		Type:         internal.CommandTPutIfVacant,
		Key:          key,
		OwnerID:      ownerID,
		NowMillis:    now.UnixMilli(),
		ExpireMillis: expiresAt.UnixMilli(),
	})
}

func (s *storeImpl) DeleteIfOwner(key, ownerID string) error {
	return s.propose(internal.Command{
		Type:    internal.CommandTDeleteIfOwner,
		Key:     key,
		OwnerID: ownerID,
	})
}

func (s *storeImpl) Get(key string) (lockstore.Record, bool, error) {
	res, err := s.lookup(internal.Query{Type: internal.QueryTGet, Key: key})
	if err != nil {
		return lockstore.Record{}, false, err
	}
	return res.Record, res.Found, nil
}
