// Package dstore provides the raft-replicated ILockStore implementation,
// built on the Dragonboat consensus library.
//
// Every PutIfVacant and DeleteIfOwner is serialized into a Command and
// proposed through the raft log of the configured shard. The conditional
// check runs inside the state machine's Update path, which dragonboat
// applies in log order on every replica: a lock grant (or a steal of a
// stale lock) is therefore a single linearizable check-and-write, the
// property the whole locking scheme rests on.
//
// Wall-clock handling:
//
//	Expiry comparisons need the current time, but a state machine must be
//	deterministic: replaying the log on a different node at a different
//	time has to produce the same state. The proposer therefore embeds its
//	own wall clock in the command (Command.NowMillis) and the state
//	machine only ever compares against that value. Clock skew between
//	proposers is bounded by the deployment (as with any lease-based
//	scheme, see the lockmgr package) and does not affect replica
//	agreement.
//
// Reads go through SyncRead for linearizability; the Get operation is
// only used for status inspection, never for lock decisions.
package dstore
