// Package sqlclass classifies SQL statement text to decide whether an
// operation needs the distributed lock. Classification is a textual
// heuristic over the normalized statement, not a parser: it always
// produces an answer, including for malformed input, and errs on the
// side of treating unknown statements as writes.
package sqlclass

import "strings"

// Kind is the classification of a statement.
type Kind int

const (
	// KindRead is a row-retrieval or query-plan statement. Reads
	// proceed without the lock.
	KindRead Kind = iota
	// KindWrite is any statement that is not a pure read.
	KindWrite
	// KindTxBegin starts a transaction. The lock is acquired and
	// retained until commit or rollback.
	KindTxBegin
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindTxBegin:
		return "begin"
	default:
		return "unknown"
	}
}

// Normalize collapses all whitespace runs (spaces, tabs, newlines,
// carriage returns) to single spaces, trims the ends and uppercases
// the result. Normalizing an already-normalized string is a no-op.
func Normalize(query string) string {
	return strings.ToUpper(strings.Join(strings.Fields(query), " "))
}

// Classify returns the Kind of the given raw statement text.
func Classify(query string) Kind {
	q := Normalize(query)
	switch {
	case strings.HasPrefix(q, "BEGIN"):
		return KindTxBegin
	case strings.HasPrefix(q, "SELECT"), strings.HasPrefix(q, "EXPLAIN"):
		// EXPLAIN (incl. EXPLAIN QUERY PLAN) never modifies the database.
		return KindRead
	default:
		return KindWrite
	}
}

// IsTransactionStart reports whether the statement begins a transaction.
func IsTransactionStart(query string) bool {
	return Classify(query) == KindTxBegin
}

// IsWriteQuery reports whether the statement requires the lock on its own
// (transaction starts also do, but are reported separately).
func IsWriteQuery(query string) bool {
	return Classify(query) == KindWrite
}
