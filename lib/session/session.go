package session

import (
	"fmt"
	"os"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/sqlock/sqlock/lib/lockmgr"
)

var log = logger.GetLogger("session")

// Conn is the minimal surface a Session needs from a database
// connection. Implementations adapt whatever SQLite driver is in use.
type Conn interface {
	// Exec runs a single SQL statement.
	Exec(query string) error
	// Commit finalizes the open transaction.
	Commit() error
	// Rollback abandons the open transaction.
	Rollback() error
	// Close tears the connection down.
	Close() error
}

// Connector opens connections to one database.
type Connector interface {
	Connect() (Conn, error)
}

// Session is one locked database session. It owns its connection and
// its lock manager and must not be shared between goroutines.
type Session struct {
	mgr    *lockmgr.Manager
	conn   Conn
	dbPath string
}

// Open connects to the database and returns a ready Session. When a
// rollback journal is left over from a crashed writer, the connection
// is made under the lock so SQLite can run its recovery unobserved.
func Open(mgr *lockmgr.Manager, dbPath string, connector Connector) (*Session, error) {
	recovering := JournalExists(dbPath)
	if recovering {
		log.Warningf("rollback journal present, connecting under lock: %s", dbPath)
		if err := mgr.Acquire(); err != nil {
			return nil, fmt.Errorf("connect blocked by journal recovery: %w", err)
		}
	}

	conn, err := connector.Connect()
	if recovering {
		mgr.Release()
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", dbPath, err)
	}

	return &Session{mgr: mgr, conn: conn, dbPath: dbPath}, nil
}

// Manager exposes the session's lock manager, mainly for inspection.
func (s *Session) Manager() *lockmgr.Manager { return s.mgr }

// Exec runs one statement under the locking protocol. Reads run
// unlocked, writes and transaction starts take the lock first.
func (s *Session) Exec(query string) error {
	return s.mgr.Guard(query, func() error {
		return s.conn.Exec(query)
	})
}

// Commit finalizes the open transaction and releases the lock. It
// refuses to commit when the lock is no longer held, because the
// transaction's writes are then unprotected against a concurrent
// writer.
func (s *Session) Commit() error {
	return s.finalize(s.conn.Commit)
}

// Rollback abandons the open transaction and releases the lock, with
// the same lock requirement as Commit.
func (s *Session) Rollback() error {
	return s.finalize(s.conn.Rollback)
}

func (s *Session) finalize(op func() error) error {
	if !s.mgr.Active() {
		return lockmgr.ErrLockRequired
	}
	if err := op(); err != nil {
		// Keep the lock, the transaction is still open on the
		// connection and the caller may retry.
		return err
	}
	s.mgr.EndTransaction()
	return nil
}

// Close shuts the connection down and releases the lock afterwards.
// A close inside an open transaction rolls the transaction back on the
// SQLite side, so the lock is held across it. A leftover journal the
// session holds no lock for belongs to another writer's recovery and
// the close is skipped.
func (s *Session) Close() error {
	switch {
	case s.mgr.InTransaction():
		if err := s.mgr.Acquire(); err != nil {
			return fmt.Errorf("close inside transaction: %w", err)
		}
	case !s.mgr.Active() && JournalExists(s.dbPath):
		log.Warningf("foreign rollback journal present, leaving connection open: %s", s.dbPath)
		return nil
	}

	if err := s.conn.Close(); err != nil {
		// The lock stays held, closing may have half-finished and the
		// database must not be touched by others yet.
		return err
	}

	s.mgr.Release()
	return nil
}

// JournalExists reports whether the database has a leftover rollback
// journal, the marker SQLite leaves behind when a writer dies
// mid-transaction.
func JournalExists(dbPath string) bool {
	_, err := os.Stat(dbPath + "-journal")
	return err == nil
}
