// Package lockstore defines the interface to the remote store that holds
// lock records, together with a unified error type shared by all
// implementations.
//
// A lock record is the remote representation of ownership of one SQLite
// database file. The store only needs two mutations, and both must be
// executed atomically by the backend:
//
//   - PutIfVacant: create the record only if no record exists for the key,
//     or the existing record has already expired (a stale lock left behind
//     by a crashed holder). This conditional write is the sole
//     serialization point of the whole system.
//
//   - DeleteIfOwner: remove the record only if it is still owned by the
//     caller. A release must never delete a lock that was stolen after the
//     caller's lease expired.
//
// Get is a plain read used for status inspection and tests; the lock
// manager itself never depends on it for correctness.
//
// Implementations:
//
//   - Local Store (lstore): a single-process, in-memory implementation
//     backed by a concurrent map. Suitable for tests, benchmarks and a
//     single sqlock server node that all sessions talk to.
//     Available in the "github.com/sqlock/sqlock/lib/lockstore/lstore"
//     package.
//
//   - Distributed Store (dstore): a replicated implementation built on the
//     Dragonboat RAFT consensus library. The conditional checks run inside
//     the state machine, so all replicas agree on every grant and every
//     steal. Available in the
//     "github.com/sqlock/sqlock/lib/lockstore/dstore" package.
//
//   - RPC client: an implementation that forwards the interface calls to a
//     sqlock server over HTTP, TCP or Unix sockets. Available in the
//     "github.com/sqlock/sqlock/rpc/client" package.
//
// Error handling:
//
//	All methods return a *Error carrying a RetCode. Callers can separate
//	condition failures (the lock is legitimately held by someone else)
//	from internal faults (network, consensus, backend) with
//	IsConditionFailed. The lock manager retries both, but logs them at
//	different severities.
package lockstore
