package internal

import (
	"encoding/binary"
	"fmt"
)

// CommandType defines the possible mutations of the lock state machine.
type CommandType uint8

const (
	CommandTPutIfVacant   CommandType = iota // Grant or steal a lock record.
	CommandTDeleteIfOwner                    // Release a lock record.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTPutIfVacant:
		return "PutIfVacant"
	case CommandTDeleteIfOwner:
		return "DeleteIfOwner"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// Command is a single entry in the raft log. The proposer's wall clock
// (NowMillis) travels inside the command so that every replica evaluates
// the same expiry condition and the log stays deterministic.
type Command struct {
	Type         CommandType
	Key          string
	OwnerID      string
	NowMillis    int64
	ExpireMillis int64
}

// headerSize is Type (1) + NowMillis (8) + ExpireMillis (8) + KeyLen (4).
const headerSize = 1 + 8 + 8 + 4

// SizeBytes returns the exact number of bytes needed to serialize this command.
func (command *Command) SizeBytes() int {
	return headerSize + len(command.Key) + len(command.OwnerID)
}

// Serialize encodes the command with the format:
// 1 byte command type,
// 8 bytes NowMillis (big endian),
// 8 bytes ExpireMillis (big endian),
// 4 bytes key length (big endian),
// N bytes key data,
// remaining bytes owner ID.
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint64(result[1:9], uint64(command.NowMillis))
	binary.BigEndian.PutUint64(result[9:17], uint64(command.ExpireMillis))
	binary.BigEndian.PutUint32(result[17:21], uint32(len(command.Key)))

	copy(result[headerSize:], command.Key)
	copy(result[headerSize+len(command.Key):], command.OwnerID)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command: %d bytes", len(data))
	}

	command.Type = CommandType(data[0])
	command.NowMillis = int64(binary.BigEndian.Uint64(data[1:9]))
	command.ExpireMillis = int64(binary.BigEndian.Uint64(data[9:17]))

	keyLen := binary.BigEndian.Uint32(data[17:21])
	if len(data) < headerSize+int(keyLen) {
		return fmt.Errorf("data too short for key of length %d", keyLen)
	}

	command.Key = string(data[headerSize : headerSize+keyLen])
	command.OwnerID = string(data[headerSize+keyLen:])

	return nil
}

// --------------------------------------------------------------------------
// Queries (read path, never enters the raft log)
// --------------------------------------------------------------------------

// QueryType defines the possible read operations of the lock state machine.
type QueryType uint8

const (
	QueryTGet QueryType = iota // Look up a single lock record.
)

// Query is a read-only request passed to the state machine's Lookup.
type Query struct {
	Type QueryType
	Key  string
}
