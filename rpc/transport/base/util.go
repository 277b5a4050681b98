package base

import (
	"encoding/binary"
	"io"
	"net"
)

// frameHeaderSize is the fixed frame header: 8 bytes shardID, 8 bytes
// requestID, 4 bytes payload length, all big endian.
const frameHeaderSize = 20

// writeFrame writes one frame to the connection.
func writeFrame(conn net.Conn, shardID uint64, requestID uint64, data []byte) error {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], shardID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads one frame from the connection using the provided buffer.
// If the buffer is too small (or nil) a new one is allocated.
func readFrame(conn net.Conn, buf []byte) (shardID, requestID uint64, data []byte, err error) {
	if len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize)
	}

	// Read and parse the header
	if _, err := io.ReadFull(conn, buf[:frameHeaderSize]); err != nil {
		return 0, 0, nil, err
	}
	shardID = binary.BigEndian.Uint64(buf[:8])
	requestID = binary.BigEndian.Uint64(buf[8:16])
	contentLength := binary.BigEndian.Uint32(buf[16:20])

	if contentLength == 0 {
		return shardID, requestID, []byte{}, nil
	}

	// Read the payload
	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}
	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}

	return shardID, requestID, buf[:contentLength], nil
}
