package lockmgr

// Error provides constant error values for the lock manager.
type Error string

func (e Error) Error() string { return string(e) }

// Constant errors. These are the only error kinds the manager surfaces;
// transient store faults are retried internally and never leak.
const (
	// ErrMisconfigured reports a missing required setting at construction.
	// Never retried.
	ErrMisconfigured = Error("lock manager is misconfigured")
	// ErrDatabaseBusy reports that acquisition exhausted its attempt and
	// deadline budget. The caller decides whether to retry at a higher
	// level.
	ErrDatabaseBusy = Error("database is busy, lock could not be acquired")
	// ErrLockRequired reports a commit or rollback attempted without an
	// active lock. This is an integration defect, not a runtime condition.
	ErrLockRequired = Error("database lock is required but not held")
)
