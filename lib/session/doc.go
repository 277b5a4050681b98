// Package session binds a SQLite connection to the distributed locking
// protocol. A Session wraps one underlying connection and routes every
// statement through the lock manager, so callers get plain
// Exec/Commit/Rollback/Close semantics while the locking rules are
// enforced underneath:
//
//   - Open checks for a leftover rollback journal. A journal means the
//     previous writer crashed and SQLite will recover the database on
//     the next connection, so the connection itself is made under the
//     lock.
//   - Exec classifies the statement and acquires the lock for writes
//     and transaction starts, releasing it again unless a transaction
//     stays open.
//   - Commit and Rollback require the lock to still be held. Finalizing
//     a transaction whose lock has expired could interleave with
//     another writer, so they fail with lockmgr.ErrLockRequired
//     instead.
//   - Close releases the lock last, after the connection is down, and
//     refuses to close over a foreign recovery journal it holds no lock
//     for.
//
// The underlying connection is abstracted behind the Conn and Connector
// interfaces so the package stays free of any SQLite driver choice.
// A Session, like the lock manager inside it, serves one goroutine.
package session
