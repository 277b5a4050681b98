package lockmgr

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sqlock/sqlock/lib/clock"
	"github.com/sqlock/sqlock/lib/lockstore"
	"github.com/sqlock/sqlock/lib/sqlclass"
)

var log = logger.GetLogger("lockmgr")

var (
	acquiredTotal    = metrics.GetOrCreateCounter("sqlock_lock_acquired_total")
	acquireConflicts = metrics.GetOrCreateCounter("sqlock_lock_acquire_conflicts_total")
	acquireFaults    = metrics.GetOrCreateCounter("sqlock_lock_acquire_faults_total")
	acquireExhausted = metrics.GetOrCreateCounter("sqlock_lock_acquire_exhausted_total")
	releasedTotal    = metrics.GetOrCreateCounter("sqlock_lock_released_total")
	releaseFaults    = metrics.GetOrCreateCounter("sqlock_lock_release_faults_total")
)

// Defaults for the optional Config fields.
const (
	DefaultWaitTimeout = 3 * time.Second
	DefaultMaxAttempts = 10
	DefaultBaseDelay   = 50 * time.Millisecond
)

// Config holds the settings of one lock manager.
type Config struct {
	// Database is the file path of the protected SQLite database.
	// Required.
	Database string
	// Expiration is how long an acquired lock stays valid before it
	// counts as abandoned. Required, there is no safe default.
	Expiration time.Duration
	// WaitTimeout bounds how long one Acquire call may wait in total.
	// Values below one second fall back to DefaultWaitTimeout.
	WaitTimeout time.Duration
	// MaxAttempts bounds the number of conditional puts per Acquire call.
	// Zero falls back to DefaultMaxAttempts.
	MaxAttempts int
	// BaseDelay is the backoff unit between attempts; attempt n sleeps
	// n * BaseDelay. Zero falls back to DefaultBaseDelay.
	BaseDelay time.Duration
}

// Manager owns the lock state for one database session. It is not safe
// for concurrent use; every session drives its own instance.
type Manager struct {
	store lockstore.ILockStore
	clock clock.IClock
	cfg   Config
	key   string

	// Lock state, set only while this instance believes it holds the lock.
	ownerID    string
	acquiredAt time.Time
	expiresAt  time.Time

	// inTx is true from an observed BEGIN until commit/rollback/release.
	inTx bool
	// pending is the normalized statement currently being guarded.
	pending string
}

// New validates the configuration and creates a manager. A nil clk means
// the system clock. Missing required settings fail with ErrMisconfigured.
func New(store lockstore.ILockStore, clk clock.IClock, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: lock store is required", ErrMisconfigured)
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("%w: database path is required", ErrMisconfigured)
	}
	if cfg.Expiration <= 0 {
		return nil, fmt.Errorf("%w: lock expiration is required", ErrMisconfigured)
	}
	if cfg.WaitTimeout < time.Second {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if clk == nil {
		clk = clock.NewSystemClock()
	}

	return &Manager{
		store: store,
		clock: clk,
		cfg:   cfg,
		key:   lockstore.KeyForDatabase(cfg.Database),
	}, nil
}

// Key returns the lock record key of the protected database.
func (m *Manager) Key() string { return m.key }

// OwnerID returns the owner token of the currently held lock, or the
// empty string when no lock is held.
func (m *Manager) OwnerID() string { return m.ownerID }

// InTransaction reports whether a transaction start has been observed and
// not yet finalized.
func (m *Manager) InTransaction() bool { return m.inTx }

// Active reports whether this instance holds an unexpired lock.
func (m *Manager) Active() bool {
	return m.ownerID != "" && m.expiresAt.After(m.clock.Now())
}

// Acquire obtains the lock for the configured database. It is a no-op
// when an unexpired lock is already held. Otherwise it retries the
// conditional put with linear backoff until it succeeds, the attempt
// budget is spent, or the wait deadline passes, whichever comes first.
// Exhaustion returns ErrDatabaseBusy with the manager left unlocked.
func (m *Manager) Acquire() error {
	if m.Active() {
		return nil
	}

	deadline := m.clock.Now().Add(m.cfg.WaitTimeout)
	attempt := 0

	for m.clock.Now().Before(deadline) && attempt < m.cfg.MaxAttempts {
		m.ownerID = uuid.NewString()
		m.acquiredAt = m.clock.Now()
		m.expiresAt = m.acquiredAt.Add(m.cfg.Expiration)

		err := m.store.PutIfVacant(m.key, m.ownerID, m.acquiredAt, m.expiresAt)
		if err == nil {
			acquiredTotal.Inc()
			log.Infof("lock acquired: id=%s database=%s expires=%s",
				m.ownerID, m.cfg.Database, m.expiresAt.Format(time.RFC3339Nano))
			return nil
		}

		// A condition failure means someone legitimately holds the lock;
		// anything else is a store fault. Both retry, at different
		// severities.
		if lockstore.IsConditionFailed(err) {
			acquireConflicts.Inc()
			log.Warningf("lock contended: key=%s attempt=%d: %v", m.key, attempt, err)
		} else {
			acquireFaults.Inc()
			log.Errorf("lock store fault: key=%s attempt=%d: %v", m.key, attempt, err)
		}

		m.clearLock()
		attempt++
		m.clock.Sleep(time.Duration(attempt) * m.cfg.BaseDelay)
	}

	acquireExhausted.Inc()
	log.Errorf("lock acquisition failed: database=%s waited=%s attempts=%d",
		m.cfg.Database, m.cfg.WaitTimeout, attempt)
	return ErrDatabaseBusy
}

// Release gives the lock back. It is a no-op when no unexpired lock is
// held. The conditional delete is keyed on the exact owner ID of the
// current lock so a lock stolen after expiry is never deleted. Store
// failures are logged and swallowed: the record's own expiry guarantees
// eventual release. Local state is cleared either way.
func (m *Manager) Release() {
	if !m.Active() {
		log.Debugf("no active lock to release: database=%s", m.cfg.Database)
		return
	}

	if err := m.store.DeleteIfOwner(m.key, m.ownerID); err != nil {
		releaseFaults.Inc()
		log.Errorf("lock release failed: id=%s database=%s: %v", m.ownerID, m.cfg.Database, err)
	} else {
		releasedTotal.Inc()
	}

	log.Infof("lock released: id=%s database=%s held=%s",
		m.ownerID, m.cfg.Database, m.clock.Now().Sub(m.acquiredAt))

	m.clearLock()
	m.inTx = false
}

// EndTransaction closes the transaction state and releases the lock.
// When the lease lapsed while the transaction was being finalized the
// remote record may already belong to another acquirer, so only the
// local state is cleared and a warning is logged. Callers gate the
// finalize itself on Active beforehand.
func (m *Manager) EndTransaction() {
	if !m.Active() {
		log.Warningf("lease expired before transaction end: database=%s", m.cfg.Database)
		m.clearLock()
		m.inTx = false
		return
	}
	m.Release()
}

// Guard wraps one statement execution in the locking protocol: classify,
// acquire when the statement needs the lock, run body, and release on
// every exit path unless a transaction is open. A BEGIN whose acquisition
// fails leaves the manager out of the transaction state, it never holds a
// transaction it could not lock.
func (m *Manager) Guard(query string, body func() error) error {
	m.pending = sqlclass.Normalize(query)
	defer func() { m.pending = "" }()

	switch sqlclass.Classify(m.pending) {
	case sqlclass.KindTxBegin:
		m.inTx = true
		if err := m.Acquire(); err != nil {
			m.inTx = false
			return err
		}
	case sqlclass.KindWrite:
		if err := m.Acquire(); err != nil {
			return err
		}
	default:
		// Reads proceed without the lock.
		log.Debugf("unlocked read: %s", m.pending)
	}

	defer func() {
		if !m.inTx {
			m.Release()
		}
	}()
	return body()
}

// clearLock forgets the local lock state. It never touches the remote
// record.
func (m *Manager) clearLock() {
	m.ownerID = ""
	m.acquiredAt = time.Time{}
	m.expiresAt = time.Time{}
}
