package lockstore

import (
	"errors"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Lock Record
// --------------------------------------------------------------------------

// Record is the remote representation of lock ownership for one database.
type Record struct {
	// Key identifies the protected resource, see KeyForDatabase.
	Key string `json:"key"`
	// OwnerID is the opaque token generated for one acquisition. It
	// identifies ownership of the lock, not the resource.
	OwnerID string `json:"owner_id"`
	// ExpiresAt is the unix timestamp in milliseconds after which the
	// record counts as abandoned and may be stolen.
	ExpiresAt int64 `json:"expires_at"`
}

// Expired reports whether the record is stale at the given time.
func (r Record) Expired(now time.Time) bool {
	return r.ExpiresAt < now.UnixMilli()
}

// KeyForDatabase derives the lock record key for a database file path.
// The derivation is deterministic so every process guarding the same
// file competes for the same record.
func KeyForDatabase(databasePath string) string {
	return "database#" + databasePath
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// ILockStore is the interface to the remote store holding lock records.
// Both mutations must be atomic at the store: the condition check and the
// write may not interleave with any other operation on the same key.
type ILockStore interface {
	// PutIfVacant writes a record {key, ownerID, expiresAt} iff no record
	// exists for key or the existing record's expiry lies before now.
	// A live record owned by someone else fails with RetCConditionFailed.
	PutIfVacant(key, ownerID string, now, expiresAt time.Time) error
	// DeleteIfOwner removes the record for key iff its owner matches
	// ownerID. A missing record or a foreign owner fails with
	// RetCConditionFailed and must leave the store unchanged.
	DeleteIfOwner(key, ownerID string) error
	// Get returns the current record for key. The boolean reports whether
	// a record was found (expired records are still returned).
	Get(key string) (record Record, found bool, err error)
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess         RetCode = iota // 0: operation applied
	RetCConditionFailed                // 1: condition not met, store unchanged
	RetCInternalError                  // 2: network, consensus or backend fault
	RetCInvalidOperation               // 3: malformed request
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCConditionFailed:
		return "ConditionFailed"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type returned by all ILockStore implementations.
// It wraps a RetCode so callers can branch on the failure class.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("lockstore error (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new lockstore Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// IsConditionFailed reports whether err is a condition failure, i.e. the
// lock is legitimately held (or, for deletes, owned) by someone else.
func IsConditionFailed(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == RetCConditionFailed
}
