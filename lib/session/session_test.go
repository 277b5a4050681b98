package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sqlock/sqlock/lib/clock"
	"github.com/sqlock/sqlock/lib/lockmgr"
	"github.com/sqlock/sqlock/lib/lockstore/lstore"
)

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

// fakeConn records every operation and fails the ones listed in errs.
// onOp, when set, runs before the operation resolves.
type fakeConn struct {
	ops  []string
	errs map[string]error
	onOp func(op string)
}

func (c *fakeConn) do(op string) error {
	c.ops = append(c.ops, op)
	if c.onOp != nil {
		c.onOp(op)
	}
	return c.errs[op]
}

func (c *fakeConn) Exec(query string) error { return c.do("exec:" + query) }
func (c *fakeConn) Commit() error           { return c.do("commit") }
func (c *fakeConn) Rollback() error         { return c.do("rollback") }
func (c *fakeConn) Close() error            { return c.do("close") }

type fakeConnector struct {
	conn *fakeConn
	err  error
	// lockedOnConnect records whether the lock was held while connecting.
	lockedOnConnect bool
	mgr             *lockmgr.Manager
}

func (c *fakeConnector) Connect() (Conn, error) {
	if c.mgr != nil {
		c.lockedOnConnect = c.mgr.Active()
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.conn, nil
}

func newTestSession(t *testing.T, dbPath string) (*Session, *fakeConn) {
	t.Helper()
	mgr := newTestMgr(t, dbPath)
	conn := &fakeConn{errs: map[string]error{}}
	sess, err := Open(mgr, dbPath, &fakeConnector{conn: conn})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return sess, conn
}

func newTestMgr(t *testing.T, dbPath string) *lockmgr.Manager {
	t.Helper()
	mgr, err := lockmgr.New(lstore.NewLocalStore(), clock.NewManualClock(time.UnixMilli(1_000_000)), lockmgr.Config{
		Database:   dbPath,
		Expiration: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("lockmgr.New failed: %v", err)
	}
	return mgr
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestJournalExists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "app.sqlite")
	if JournalExists(dbPath) {
		t.Error("no journal expected for a fresh path")
	}
	touch(t, dbPath+"-journal")
	if !JournalExists(dbPath) {
		t.Error("journal marker not detected")
	}
}

func TestOpen(t *testing.T) {
	t.Run("plain open does not lock", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.sqlite")
		mgr := newTestMgr(t, dbPath)
		connector := &fakeConnector{conn: &fakeConn{}, mgr: mgr}

		if _, err := Open(mgr, dbPath, connector); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if connector.lockedOnConnect {
			t.Error("plain open must connect without the lock")
		}
	})

	t.Run("open with journal connects under lock and releases", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.sqlite")
		touch(t, dbPath+"-journal")
		mgr := newTestMgr(t, dbPath)
		connector := &fakeConnector{conn: &fakeConn{}, mgr: mgr}

		if _, err := Open(mgr, dbPath, connector); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if !connector.lockedOnConnect {
			t.Error("recovery open must connect under the lock")
		}
		if mgr.Active() {
			t.Error("lock must be released once the connection is up")
		}
	})

	t.Run("connect failure surfaces", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.sqlite")
		mgr := newTestMgr(t, dbPath)
		boom := errors.New("no such file")

		if _, err := Open(mgr, dbPath, &fakeConnector{err: boom}); !errors.Is(err, boom) {
			t.Fatalf("expected connect error, got %v", err)
		}
	})
}

func TestExec(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "app.sqlite")
	sess, conn := newTestSession(t, dbPath)

	if err := sess.Exec("SELECT 1"); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if err := sess.Exec("INSERT INTO t VALUES (1)"); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if sess.Manager().Active() {
		t.Error("lock must be released after a standalone write")
	}
	if len(conn.ops) != 2 {
		t.Errorf("expected both statements to reach the connection, got %v", conn.ops)
	}
}

func TestCommitRollback(t *testing.T) {
	t.Run("commit without lock fails", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.sqlite")
		sess, conn := newTestSession(t, dbPath)

		if err := sess.Commit(); !errors.Is(err, lockmgr.ErrLockRequired) {
			t.Fatalf("expected ErrLockRequired, got %v", err)
		}
		if len(conn.ops) != 0 {
			t.Errorf("commit must not reach the connection without the lock, got %v", conn.ops)
		}
	})

	t.Run("rollback without lock fails", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.sqlite")
		sess, conn := newTestSession(t, dbPath)

		if err := sess.Rollback(); !errors.Is(err, lockmgr.ErrLockRequired) {
			t.Fatalf("expected ErrLockRequired, got %v", err)
		}
		if len(conn.ops) != 0 {
			t.Errorf("rollback must not reach the connection without the lock, got %v", conn.ops)
		}
	})

	t.Run("commit releases the lock", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.sqlite")
		sess, _ := newTestSession(t, dbPath)

		if err := sess.Exec("BEGIN"); err != nil {
			t.Fatalf("Exec(BEGIN) failed: %v", err)
		}
		if !sess.Manager().Active() {
			t.Fatal("lock must be held inside the transaction")
		}
		if err := sess.Commit(); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
		if sess.Manager().Active() {
			t.Error("lock must be released after commit")
		}
		if sess.Manager().InTransaction() {
			t.Error("transaction must be closed after commit")
		}
	})

	t.Run("failed commit retains the lock", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.sqlite")
		sess, conn := newTestSession(t, dbPath)
		boom := errors.New("disk I/O error")
		conn.errs["commit"] = boom

		if err := sess.Exec("BEGIN"); err != nil {
			t.Fatalf("Exec(BEGIN) failed: %v", err)
		}
		if err := sess.Commit(); !errors.Is(err, boom) {
			t.Fatalf("expected commit error, got %v", err)
		}
		if !sess.Manager().Active() {
			t.Error("lock must be retained while the transaction is still open")
		}
	})

	t.Run("commit survives lease expiry during finalize", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.sqlite")
		clk := clock.NewManualClock(time.UnixMilli(1_000_000))
		mgr, err := lockmgr.New(lstore.NewLocalStore(), clk, lockmgr.Config{
			Database:   dbPath,
			Expiration: 10 * time.Second,
		})
		if err != nil {
			t.Fatalf("lockmgr.New failed: %v", err)
		}

		conn := &fakeConn{errs: map[string]error{}}
		conn.onOp = func(op string) {
			if op == "commit" {
				clk.Advance(11 * time.Second)
			}
		}
		sess, err := Open(mgr, dbPath, &fakeConnector{conn: conn})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}

		if err := sess.Exec("BEGIN"); err != nil {
			t.Fatalf("Exec(BEGIN) failed: %v", err)
		}
		if err := sess.Commit(); err != nil {
			t.Fatalf("commit after lease expiry = %v, want success", err)
		}
		if mgr.Active() || mgr.InTransaction() {
			t.Error("transaction state must be cleared after a successful commit")
		}
	})
}

func TestClose(t *testing.T) {
	t.Run("plain close releases nothing extra", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.sqlite")
		sess, conn := newTestSession(t, dbPath)

		if err := sess.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if len(conn.ops) != 1 || conn.ops[0] != "close" {
			t.Errorf("expected a single close, got %v", conn.ops)
		}
	})

	t.Run("close inside transaction holds the lock", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.sqlite")
		sess, conn := newTestSession(t, dbPath)

		if err := sess.Exec("BEGIN"); err != nil {
			t.Fatalf("Exec(BEGIN) failed: %v", err)
		}
		if err := sess.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if conn.ops[len(conn.ops)-1] != "close" {
			t.Errorf("connection was not closed, ops: %v", conn.ops)
		}
		if sess.Manager().Active() {
			t.Error("lock must be released after the connection is down")
		}
	})

	t.Run("foreign journal skips the close", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.sqlite")
		sess, conn := newTestSession(t, dbPath)
		touch(t, dbPath+"-journal")

		if err := sess.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if len(conn.ops) != 0 {
			t.Errorf("close over a foreign journal must not touch the connection, got %v", conn.ops)
		}
	})

	t.Run("failed close retains the lock", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "app.sqlite")
		sess, conn := newTestSession(t, dbPath)
		boom := errors.New("busy")
		conn.errs["close"] = boom

		if err := sess.Exec("BEGIN"); err != nil {
			t.Fatalf("Exec(BEGIN) failed: %v", err)
		}
		if err := sess.Close(); !errors.Is(err, boom) {
			t.Fatalf("expected close error, got %v", err)
		}
		if !sess.Manager().Active() {
			t.Error("lock must be retained when the close fails")
		}
	})
}
