package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sqlock/sqlock/lib/lockstore"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key           string `json:"key,omitempty"`            // Used for: Put, Delete, Get
	OwnerID       string `json:"owner_id,omitempty"`       // Used for: Put, Delete (request), Get (response)
	NowMillis     int64  `json:"now_millis,omitempty"`     // Used for: Put requests (proposer clock)
	ExpiresMillis int64  `json:"expires_millis,omitempty"` // Used for: Put (request), Get (response)

	// Response only fields
	Ok      bool   `json:"ok,omitempty"`       // Used for: Get responses (record found)
	Err     string `json:"err,omitempty"`      // Empty if no error, otherwise contains the error message
	ErrCode uint64 `json:"err_code,omitempty"` // Store return code, only meaningful when Err is set

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Unused, can be used for additional Adapters
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewPutRequest creates a new conditional put request
func NewPutRequest(key, ownerID string, nowMillis, expiresMillis int64) *Message {
	return &Message{
		MsgType:       MsgTLockPut,
		Key:           key,
		OwnerID:       ownerID,
		NowMillis:     nowMillis,
		ExpiresMillis: expiresMillis,
	}
}

// NewPutResponse creates a new conditional put response
func NewPutResponse(err error) *Message {
	return newBasicResponse(MsgTLockPut, err)
}

// NewDeleteRequest creates a new conditional delete request
func NewDeleteRequest(key, ownerID string) *Message {
	return &Message{
		MsgType: MsgTLockDelete,
		Key:     key,
		OwnerID: ownerID,
	}
}

// NewDeleteResponse creates a new conditional delete response
func NewDeleteResponse(err error) *Message {
	return newBasicResponse(MsgTLockDelete, err)
}

// NewGetRequest creates a new get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTLockGet,
		Key:     key,
	}
}

// NewGetResponse creates a new get response carrying the record fields
func NewGetResponse(key, ownerID string, expiresMillis int64, found bool, err error) *Message {
	msg := newBasicResponse(MsgTLockGet, err)
	msg.Key = key
	msg.OwnerID = ownerID
	msg.ExpiresMillis = expiresMillis
	msg.Ok = found
	return msg
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := newBasicResponse(MsgTCustom, err)
	msg.Meta = meta
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
		ErrCode: uint64(lockstore.RetCInternalError),
	}
}

// newBasicResponse creates a response of the given type with the error
// fields filled in. Typed store errors keep their return code across the
// wire so clients can still branch on the failure class.
func newBasicResponse(t MessageType, err error) *Message {
	msg := &Message{MsgType: t}
	if err != nil {
		msg.Err = err.Error()
		msg.ErrCode = uint64(lockstore.RetCInternalError)
		var se *lockstore.Error
		if errors.As(err, &se) {
			msg.ErrCode = uint64(se.Code)
		}
	}
	return msg
}

// StoreError reconstructs the typed store error carried by a response,
// or nil when the response reports success.
func (m *Message) StoreError() error {
	if m.Err == "" && m.MsgType != MsgTError {
		return nil
	}
	return lockstore.NewError(lockstore.RetCode(m.ErrCode), m.Err)
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTLockPut:
		return "put"
	case MsgTLockDelete:
		return "delete"
	case MsgTLockGet:
		return "get"
	case MsgTCustom:
		return "custom"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "put":
		*t = MsgTLockPut
	case "delete":
		*t = MsgTLockDelete
	case "get":
		*t = MsgTLockGet
	case "custom":
		*t = MsgTCustom
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// ILockStore operations

	MsgTLockPut    // Conditional put of a lock record
	MsgTLockDelete // Conditional delete of a lock record
	MsgTLockGet    // Read a lock record

	// Custom operations

	MsgTCustom // Custom operation type
)
