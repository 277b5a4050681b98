// Package lockmgr implements the distributed lock manager guarding one
// SQLite database file on a shared network filesystem.
//
// SQLite's own file locking is not reliable over network filesystems such
// as NFS or EFS, so mutual exclusion is enforced externally: before a
// write may touch the database, the manager must own the lock record for
// the database in a strongly-consistent remote store (see the lockstore
// package). The record carries an expiry timestamp, which doubles as the
// crash-recovery mechanism: when a holder dies without releasing, its
// record goes stale and the next acquirer steals it.
//
// Core Functionality:
//   - Acquisition with bounded retry: a fresh owner ID per attempt, a
//     conditional put against the store, linear backoff between attempts,
//     and a combined attempt/deadline budget. Exhaustion surfaces
//     ErrDatabaseBusy to the caller.
//   - Release that only ever deletes the caller's own record, and never
//     fails the caller: a lost delete is repaired by expiry.
//   - Statement guarding: Guard classifies the statement (sqlclass
//     package) and only acquires for writes and transaction starts.
//     Reads proceed without the lock, a documented consistency trade-off:
//     a remote writer may interleave with a local read, which is
//     acceptable because SQLite's read path is consistent once a write
//     has been committed and the lock released.
//   - Transaction retention: once a BEGIN has been guarded, the lock is
//     retained across statements until the session commits or rolls back.
//
// One Manager instance belongs to exactly one session and is driven by a
// single logical thread of control; the manager holds no internal
// synchronization. Instances never share local state; the remote lock
// record is the only cross-process shared resource.
//
// Usage Example:
//
//	mgr, err := lockmgr.New(store, nil, lockmgr.Config{
//		Database:   "/data/app.sqlite",
//		Expiration: 10 * time.Second,
//	})
//	if err != nil {
//		// Handle configuration error
//	}
//
//	err = mgr.Guard("UPDATE users SET name = 'x'", func() error {
//		// Runs while the lock is held; released on every exit path.
//		return conn.Exec("UPDATE users SET name = 'x'")
//	})
package lockmgr
