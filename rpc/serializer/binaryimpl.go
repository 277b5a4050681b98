package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/sqlock/sqlock/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey     byte = 1 << 0
	hasOwnerID byte = 1 << 1
	hasNow     byte = 1 << 2
	hasExpires byte = 1 << 3
	hasOk      byte = 1 << 4
	hasErr     byte = 1 << 5
	hasMeta    byte = 1 << 6
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags byte = 0

	// Set position for writing, start after MsgType and flags
	pos := 2

	// Handle Key
	if msg.Key != "" {
		flags |= hasKey
		pos += writeString(result[pos:], msg.Key)
	}

	// Handle OwnerID
	if msg.OwnerID != "" {
		flags |= hasOwnerID
		pos += writeString(result[pos:], msg.OwnerID)
	}

	// Handle NowMillis
	if msg.NowMillis != 0 {
		flags |= hasNow
		binary.BigEndian.PutUint64(result[pos:pos+8], uint64(msg.NowMillis))
		pos += 8
	}

	// Handle ExpiresMillis
	if msg.ExpiresMillis != 0 {
		flags |= hasExpires
		binary.BigEndian.PutUint64(result[pos:pos+8], uint64(msg.ExpiresMillis))
		pos += 8
	}

	// Handle Ok
	if msg.Ok {
		flags |= hasOk
		result[pos] = 1
		pos += 1
	}

	// Handle Err and ErrCode together, the code is meaningless without
	// the message
	if msg.Err != "" {
		flags |= hasErr
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.ErrCode)
		pos += 8
		pos += writeString(result[pos:], msg.Err)
	}

	// Handle Meta
	if msg.Meta != nil {
		flags |= hasMeta
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Meta)))
		pos += 4
		copy(result[pos:], msg.Meta)
		pos += len(msg.Meta)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type and flags
	msg.MsgType = common.MessageType(data[0])
	flags := data[1]

	pos := 2
	var err error

	// Read Key if present
	msg.Key = ""
	if flags&hasKey != 0 {
		if msg.Key, pos, err = readString(data, pos, "key"); err != nil {
			return err
		}
	}

	// Read OwnerID if present
	msg.OwnerID = ""
	if flags&hasOwnerID != 0 {
		if msg.OwnerID, pos, err = readString(data, pos, "owner id"); err != nil {
			return err
		}
	}

	// Read NowMillis if present
	msg.NowMillis = 0
	if flags&hasNow != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for NowMillis")
		}
		msg.NowMillis = int64(binary.BigEndian.Uint64(data[pos : pos+8]))
		pos += 8
	}

	// Read ExpiresMillis if present
	msg.ExpiresMillis = 0
	if flags&hasExpires != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for ExpiresMillis")
		}
		msg.ExpiresMillis = int64(binary.BigEndian.Uint64(data[pos : pos+8]))
		pos += 8
	}

	// Read Ok if present
	msg.Ok = false
	if flags&hasOk != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for Ok flag")
		}
		msg.Ok = data[pos] != 0
		pos += 1
	}

	// Read ErrCode and Err if present
	msg.Err = ""
	msg.ErrCode = 0
	if flags&hasErr != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for error code")
		}
		msg.ErrCode = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
		if msg.Err, pos, err = readString(data, pos, "error"); err != nil {
			return err
		}
	}

	// Read Meta if present
	msg.Meta = nil
	if flags&hasMeta != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for meta length")
		}
		metaLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(metaLen) > len(data) {
			return fmt.Errorf("data too short for meta data")
		}
		msg.Meta = make([]byte, metaLen)
		copy(msg.Meta, data[pos:pos+int(metaLen)])
		pos += int(metaLen)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// writeString writes a length-prefixed string into buf and returns the
// number of bytes written. buf must be large enough.
func writeString(buf []byte, s string) int {
	binary.BigEndian.PutUint32(buf[:4], uint32(len(s)))
	copy(buf[4:], s)
	return 4 + len(s)
}

// readString reads a length-prefixed string from data starting at pos.
// It returns the string and the new position.
func readString(data []byte, pos int, field string) (string, int, error) {
	if pos+4 > len(data) {
		return "", 0, fmt.Errorf("data too short for %s length", field)
	}
	strLen := binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4

	if pos+int(strLen) > len(data) {
		return "", 0, fmt.Errorf("data too short for %s data", field)
	}
	return string(data[pos : pos+int(strLen)]), pos + int(strLen), nil
}

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.OwnerID != "" {
		size += 4 + len(msg.OwnerID)
	}
	if msg.NowMillis != 0 {
		size += 8
	}
	if msg.ExpiresMillis != 0 {
		size += 8
	}
	if msg.Ok {
		size += 1
	}
	if msg.Err != "" {
		size += 8 + 4 + len(msg.Err) // error code + length + error string
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}
