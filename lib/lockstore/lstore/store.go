// Package lstore provides the local, in-memory ILockStore implementation.
// All records live in a concurrent map inside one process. The conditional
// semantics are identical to the distributed store, which makes lstore the
// reference backend for tests and benchmarks and a valid backend for a
// single-node sqlock server.
package lstore

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sqlock/sqlock/lib/lockstore"
)

type storeImpl struct {
	records *xsync.MapOf[string, lockstore.Record]
}

// NewLocalStore creates a new empty local lock store.
func NewLocalStore() lockstore.ILockStore {
	return &storeImpl{
		records: xsync.NewMapOf[string, lockstore.Record](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see lockstore/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) PutIfVacant(key, ownerID string, now, expiresAt time.Time) error {
	var conflict bool

	// Compute runs atomically per key, this is the conditional write.
	s.records.Compute(key, func(old lockstore.Record, loaded bool) (lockstore.Record, bool) {
		if loaded && !old.Expired(now) {
			conflict = true
			return old, false
		}
		return lockstore.Record{
			Key:       key,
			OwnerID:   ownerID,
			ExpiresAt: expiresAt.UnixMilli(),
		}, false
	})

	if conflict {
		return lockstore.NewError(lockstore.RetCConditionFailed, "lock is held: "+key)
	}
	return nil
}

func (s *storeImpl) DeleteIfOwner(key, ownerID string) error {
	var conflict bool

	s.records.Compute(key, func(old lockstore.Record, loaded bool) (lockstore.Record, bool) {
		if !loaded {
			// Delete on a missing key stores nothing.
			conflict = true
			return old, true
		}
		if old.OwnerID != ownerID {
			conflict = true
			return old, false
		}
		return lockstore.Record{}, true
	})

	if conflict {
		return lockstore.NewError(lockstore.RetCConditionFailed, "not the lock owner: "+key)
	}
	return nil
}

func (s *storeImpl) Get(key string) (lockstore.Record, bool, error) {
	record, found := s.records.Load(key)
	return record, found, nil
}
