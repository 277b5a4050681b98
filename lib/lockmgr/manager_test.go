package lockmgr

import (
	"errors"
	"testing"
	"time"

	"github.com/sqlock/sqlock/lib/clock"
	"github.com/sqlock/sqlock/lib/lockstore"
	"github.com/sqlock/sqlock/lib/lockstore/lstore"
)

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

type storeCall struct {
	op      string
	key     string
	ownerID string
}

// fakeStore records every call and answers from a scripted error queue.
type fakeStore struct {
	calls []storeCall
	// putErrs is popped front to back on each PutIfVacant, nil entries
	// mean success. An empty queue means success.
	putErrs []error
	delErr  error
}

func (s *fakeStore) PutIfVacant(key, ownerID string, _, _ time.Time) error {
	s.calls = append(s.calls, storeCall{op: "put", key: key, ownerID: ownerID})
	if len(s.putErrs) == 0 {
		return nil
	}
	err := s.putErrs[0]
	s.putErrs = s.putErrs[1:]
	return err
}

func (s *fakeStore) DeleteIfOwner(key, ownerID string) error {
	s.calls = append(s.calls, storeCall{op: "delete", key: key, ownerID: ownerID})
	return s.delErr
}

func (s *fakeStore) Get(string) (lockstore.Record, bool, error) {
	return lockstore.Record{}, false, nil
}

func conflictErr() error {
	return lockstore.NewError(lockstore.RetCConditionFailed, "lock held")
}

func newTestManager(t *testing.T, store lockstore.ILockStore, clk clock.IClock) *Manager {
	t.Helper()
	mgr, err := New(store, clk, Config{
		Database:   "/data/app.sqlite",
		Expiration: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return mgr
}

var testStart = time.UnixMilli(1_000_000)

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestNewValidation(t *testing.T) {
	store := &fakeStore{}

	t.Run("nil store", func(t *testing.T) {
		if _, err := New(nil, nil, Config{Database: "x", Expiration: time.Second}); !errors.Is(err, ErrMisconfigured) {
			t.Errorf("expected ErrMisconfigured, got %v", err)
		}
	})

	t.Run("missing database", func(t *testing.T) {
		if _, err := New(store, nil, Config{Expiration: time.Second}); !errors.Is(err, ErrMisconfigured) {
			t.Errorf("expected ErrMisconfigured, got %v", err)
		}
	})

	t.Run("missing expiration", func(t *testing.T) {
		if _, err := New(store, nil, Config{Database: "x"}); !errors.Is(err, ErrMisconfigured) {
			t.Errorf("expected ErrMisconfigured, got %v", err)
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		mgr, err := New(store, nil, Config{Database: "x", Expiration: time.Second})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if mgr.cfg.WaitTimeout != DefaultWaitTimeout {
			t.Errorf("WaitTimeout = %v, want %v", mgr.cfg.WaitTimeout, DefaultWaitTimeout)
		}
		if mgr.cfg.MaxAttempts != DefaultMaxAttempts {
			t.Errorf("MaxAttempts = %d, want %d", mgr.cfg.MaxAttempts, DefaultMaxAttempts)
		}
		if mgr.cfg.BaseDelay != DefaultBaseDelay {
			t.Errorf("BaseDelay = %v, want %v", mgr.cfg.BaseDelay, DefaultBaseDelay)
		}
	})
}

func TestAcquire(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		store := &fakeStore{}
		clk := clock.NewManualClock(testStart)
		mgr := newTestManager(t, store, clk)

		if err := mgr.Acquire(); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		if !mgr.Active() {
			t.Error("manager should hold an active lock")
		}
		if mgr.OwnerID() == "" {
			t.Error("owner id should be set")
		}
		if mgr.Key() != lockstore.KeyForDatabase("/data/app.sqlite") {
			t.Errorf("unexpected key %q", mgr.Key())
		}
		if len(store.calls) != 1 || store.calls[0].op != "put" {
			t.Errorf("expected a single put, got %v", store.calls)
		}
	})

	t.Run("idempotent while held", func(t *testing.T) {
		store := &fakeStore{}
		clk := clock.NewManualClock(testStart)
		mgr := newTestManager(t, store, clk)

		if err := mgr.Acquire(); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		owner := mgr.OwnerID()

		if err := mgr.Acquire(); err != nil {
			t.Fatalf("second Acquire failed: %v", err)
		}
		if mgr.OwnerID() != owner {
			t.Error("re-acquire while held must not mint a new owner id")
		}
		if len(store.calls) != 1 {
			t.Errorf("re-acquire while held must not touch the store, calls: %v", store.calls)
		}
	})

	t.Run("fresh owner id per attempt", func(t *testing.T) {
		store := &fakeStore{putErrs: []error{conflictErr(), conflictErr(), nil}}
		clk := clock.NewManualClock(testStart)
		mgr := newTestManager(t, store, clk)

		if err := mgr.Acquire(); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		if len(store.calls) != 3 {
			t.Fatalf("expected 3 attempts, got %d", len(store.calls))
		}
		seen := map[string]bool{}
		for _, c := range store.calls {
			if seen[c.ownerID] {
				t.Errorf("owner id %q reused across attempts", c.ownerID)
			}
			seen[c.ownerID] = true
		}
	})

	t.Run("exhausts after max attempts with linear backoff", func(t *testing.T) {
		store := &fakeStore{}
		for i := 0; i < DefaultMaxAttempts; i++ {
			store.putErrs = append(store.putErrs, conflictErr())
		}
		clk := clock.NewManualClock(testStart)
		mgr := newTestManager(t, store, clk)

		if err := mgr.Acquire(); !errors.Is(err, ErrDatabaseBusy) {
			t.Fatalf("expected ErrDatabaseBusy, got %v", err)
		}
		if mgr.Active() {
			t.Error("manager must not report an active lock after exhaustion")
		}
		if mgr.OwnerID() != "" {
			t.Error("owner id must be cleared after exhaustion")
		}
		if len(store.calls) != DefaultMaxAttempts {
			t.Fatalf("expected exactly %d attempts, got %d", DefaultMaxAttempts, len(store.calls))
		}
		// Attempt n backs off n * BaseDelay.
		for i, d := range clk.SleepDurations {
			want := time.Duration(i+1) * DefaultBaseDelay
			if d != want {
				t.Errorf("sleep %d = %v, want %v", i, d, want)
			}
		}
	})

	t.Run("store faults are retried", func(t *testing.T) {
		store := &fakeStore{putErrs: []error{errors.New("connection reset"), nil}}
		clk := clock.NewManualClock(testStart)
		mgr := newTestManager(t, store, clk)

		if err := mgr.Acquire(); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		if len(store.calls) != 2 {
			t.Errorf("expected 2 attempts, got %d", len(store.calls))
		}
	})

	t.Run("held lock expires locally", func(t *testing.T) {
		store := &fakeStore{}
		clk := clock.NewManualClock(testStart)
		mgr := newTestManager(t, store, clk)

		if err := mgr.Acquire(); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		clk.Advance(11 * time.Second)
		if mgr.Active() {
			t.Error("lock must not count as active past its expiry")
		}
	})
}

func TestRelease(t *testing.T) {
	t.Run("no-op without a lock", func(t *testing.T) {
		store := &fakeStore{}
		mgr := newTestManager(t, store, clock.NewManualClock(testStart))

		mgr.Release()
		if len(store.calls) != 0 {
			t.Errorf("release without a lock must not touch the store, calls: %v", store.calls)
		}
	})

	t.Run("deletes with the exact owner id", func(t *testing.T) {
		store := &fakeStore{}
		clk := clock.NewManualClock(testStart)
		mgr := newTestManager(t, store, clk)

		if err := mgr.Acquire(); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		owner := mgr.OwnerID()

		mgr.Release()
		last := store.calls[len(store.calls)-1]
		if last.op != "delete" || last.ownerID != owner {
			t.Errorf("expected delete keyed on %q, got %+v", owner, last)
		}
		if mgr.Active() || mgr.OwnerID() != "" {
			t.Error("local state must be cleared after release")
		}
	})

	t.Run("swallows store failures", func(t *testing.T) {
		store := &fakeStore{delErr: errors.New("connection reset")}
		clk := clock.NewManualClock(testStart)
		mgr := newTestManager(t, store, clk)

		if err := mgr.Acquire(); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		mgr.Release()
		if mgr.Active() {
			t.Error("local state must be cleared even when the delete fails")
		}
	})

	t.Run("end transaction releases the lock", func(t *testing.T) {
		store := &fakeStore{}
		clk := clock.NewManualClock(testStart)
		mgr := newTestManager(t, store, clk)

		if err := mgr.Acquire(); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		mgr.EndTransaction()
		if mgr.Active() {
			t.Error("lock must be released after EndTransaction")
		}
	})

	t.Run("end transaction after expiry clears state without a delete", func(t *testing.T) {
		store := &fakeStore{}
		clk := clock.NewManualClock(testStart)
		mgr := newTestManager(t, store, clk)

		if err := mgr.Guard("BEGIN", func() error { return nil }); err != nil {
			t.Fatalf("Guard failed: %v", err)
		}
		clk.Advance(11 * time.Second)

		mgr.EndTransaction()
		if mgr.Active() || mgr.InTransaction() || mgr.OwnerID() != "" {
			t.Error("local state must be cleared after an expired transaction end")
		}
		for _, c := range store.calls {
			if c.op == "delete" {
				t.Error("an expired lock may belong to someone else, it must not be deleted")
			}
		}
	})

	t.Run("expired lock is not deleted", func(t *testing.T) {
		store := &fakeStore{}
		clk := clock.NewManualClock(testStart)
		mgr := newTestManager(t, store, clk)

		if err := mgr.Acquire(); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		clk.Advance(11 * time.Second)

		mgr.Release()
		for _, c := range store.calls {
			if c.op == "delete" {
				t.Error("an expired lock may belong to someone else, it must not be deleted")
			}
		}
	})
}

func TestGuard(t *testing.T) {
	t.Run("read runs without the lock", func(t *testing.T) {
		store := &fakeStore{}
		mgr := newTestManager(t, store, clock.NewManualClock(testStart))

		ran := false
		err := mgr.Guard("SELECT * FROM users", func() error {
			ran = true
			return nil
		})
		if err != nil {
			t.Fatalf("Guard failed: %v", err)
		}
		if !ran {
			t.Error("body did not run")
		}
		if len(store.calls) != 0 {
			t.Errorf("a read must not touch the store, calls: %v", store.calls)
		}
	})

	t.Run("write acquires and releases", func(t *testing.T) {
		store := &fakeStore{}
		mgr := newTestManager(t, store, clock.NewManualClock(testStart))

		lockedDuringBody := false
		err := mgr.Guard("INSERT INTO users VALUES (1)", func() error {
			lockedDuringBody = mgr.Active()
			return nil
		})
		if err != nil {
			t.Fatalf("Guard failed: %v", err)
		}
		if !lockedDuringBody {
			t.Error("lock must be held while the body runs")
		}
		if mgr.Active() {
			t.Error("lock must be released after a standalone write")
		}
		ops := []string{}
		for _, c := range store.calls {
			ops = append(ops, c.op)
		}
		if len(ops) != 2 || ops[0] != "put" || ops[1] != "delete" {
			t.Errorf("expected put then delete, got %v", ops)
		}
	})

	t.Run("write releases even when the body fails", func(t *testing.T) {
		store := &fakeStore{}
		mgr := newTestManager(t, store, clock.NewManualClock(testStart))

		bodyErr := errors.New("disk full")
		if err := mgr.Guard("DELETE FROM users", func() error { return bodyErr }); !errors.Is(err, bodyErr) {
			t.Fatalf("expected body error, got %v", err)
		}
		if mgr.Active() {
			t.Error("lock must be released after a failed write")
		}
	})

	t.Run("transaction retains the lock", func(t *testing.T) {
		store := &fakeStore{}
		mgr := newTestManager(t, store, clock.NewManualClock(testStart))

		if err := mgr.Guard("BEGIN", func() error { return nil }); err != nil {
			t.Fatalf("Guard(BEGIN) failed: %v", err)
		}
		if !mgr.InTransaction() {
			t.Error("BEGIN must mark the transaction open")
		}
		if !mgr.Active() {
			t.Error("lock must survive the end of the BEGIN statement")
		}

		if err := mgr.Guard("UPDATE users SET name = 'x'", func() error { return nil }); err != nil {
			t.Fatalf("Guard failed: %v", err)
		}
		if !mgr.Active() {
			t.Error("lock must survive writes inside an open transaction")
		}
		// Only the single put issued at BEGIN, no extra puts or deletes.
		if len(store.calls) != 1 || store.calls[0].op != "put" {
			t.Errorf("expected exactly one put, got %v", store.calls)
		}
	})

	t.Run("failed BEGIN acquisition leaves the transaction closed", func(t *testing.T) {
		store := &fakeStore{}
		for i := 0; i < DefaultMaxAttempts; i++ {
			store.putErrs = append(store.putErrs, conflictErr())
		}
		mgr := newTestManager(t, store, clock.NewManualClock(testStart))

		ran := false
		err := mgr.Guard("BEGIN", func() error {
			ran = true
			return nil
		})
		if !errors.Is(err, ErrDatabaseBusy) {
			t.Fatalf("expected ErrDatabaseBusy, got %v", err)
		}
		if ran {
			t.Error("body must not run when acquisition fails")
		}
		if mgr.InTransaction() {
			t.Error("a transaction that could not lock must not stay open")
		}
	})
}

// TestStealAfterExpiry exercises the full steal flow against the real
// in-memory store: a first session locks and crashes, a second session
// fails while the record is live and wins once it has expired.
func TestStealAfterExpiry(t *testing.T) {
	store := lstore.NewLocalStore()
	clk := clock.NewManualClock(testStart)

	crashed, err := New(store, clk, Config{
		Database:   "/data/app.sqlite",
		Expiration: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := crashed.Acquire(); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	// The first session dies without releasing.

	second, err := New(store, clk, Config{
		Database:    "/data/app.sqlite",
		Expiration:  10 * time.Second,
		WaitTimeout: time.Second,
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	clk.Advance(5 * time.Second)
	if err := second.Acquire(); !errors.Is(err, ErrDatabaseBusy) {
		t.Fatalf("expected ErrDatabaseBusy while the record is live, got %v", err)
	}

	clk.Advance(6 * time.Second)
	if err := second.Acquire(); err != nil {
		t.Fatalf("steal after expiry failed: %v", err)
	}

	rec, found, err := store.Get(second.Key())
	if err != nil || !found {
		t.Fatalf("Get failed: found=%v err=%v", found, err)
	}
	if rec.OwnerID != second.OwnerID() {
		t.Errorf("record owner = %q, want %q", rec.OwnerID, second.OwnerID())
	}
}
