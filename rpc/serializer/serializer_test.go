package serializer

import (
	"reflect"
	"testing"

	"github.com/sqlock/sqlock/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Put request
		{
			MsgType:       common.MsgTLockPut,
			Key:           "database#/data/app.sqlite",
			OwnerID:       "8b33f347-16ac-4a4c-9c0c-0a1b2c3d4e5f",
			NowMillis:     1_000_000,
			ExpiresMillis: 1_010_000,
		},

		// Delete request
		{
			MsgType: common.MsgTLockDelete,
			Key:     "database#/data/app.sqlite",
			OwnerID: "8b33f347-16ac-4a4c-9c0c-0a1b2c3d4e5f",
		},

		// Get response carrying a record
		{
			MsgType:       common.MsgTLockGet,
			Key:           "database#/data/app.sqlite",
			OwnerID:       "8b33f347-16ac-4a4c-9c0c-0a1b2c3d4e5f",
			ExpiresMillis: 1_010_000,
			Ok:            true,
		},

		// Error response with a store return code
		{
			MsgType: common.MsgTLockPut,
			Err:     "lock held by someone else",
			ErrCode: 1,
		},

		// Plain error response
		{
			MsgType: common.MsgTError,
			Err:     "shard not found",
		},

		// Message with all fields filled
		{
			MsgType:       common.MsgTLockPut,
			Key:           "database#/data/app.sqlite",
			OwnerID:       "owner",
			NowMillis:     42,
			ExpiresMillis: 1337,
			Ok:            true,
			Err:           "boom",
			ErrCode:       2,
			Meta:          []byte("meta-data"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()

			for _, msg := range messages {
				data, err := s.Serialize(msg)
				if err != nil {
					t.Fatalf("Serialize failed for %v: %v", msg.MsgType, err)
				}

				var decoded common.Message
				if err := s.Deserialize(data, &decoded); err != nil {
					t.Fatalf("Deserialize failed for %v: %v", msg.MsgType, err)
				}

				if !reflect.DeepEqual(msg, decoded) {
					t.Errorf("round trip mismatch:\n  sent:     %+v\n  received: %+v", msg, decoded)
				}
			}
		})
	}
}

// TestSerializerReuse tests that a reused target message is fully
// overwritten, old field values must not leak into the next decode.
func TestSerializerReuse(t *testing.T) {
	for name, factory := range testSerializers {
		if name == "GOB" {
			// gob merges into the existing struct, callers pass a fresh
			// message per decode.
			continue
		}
		t.Run(name, func(t *testing.T) {
			s := factory()

			full := common.Message{
				MsgType:       common.MsgTLockPut,
				Key:           "database#/data/app.sqlite",
				OwnerID:       "owner",
				NowMillis:     1,
				ExpiresMillis: 2,
				Ok:            true,
				Meta:          []byte("meta"),
			}
			empty := common.Message{MsgType: common.MsgTSuccess}

			var decoded common.Message

			data, err := s.Serialize(full)
			if err != nil {
				t.Fatalf("Serialize failed: %v", err)
			}
			if err := s.Deserialize(data, &decoded); err != nil {
				t.Fatalf("Deserialize failed: %v", err)
			}

			data, err = s.Serialize(empty)
			if err != nil {
				t.Fatalf("Serialize failed: %v", err)
			}
			if err := s.Deserialize(data, &decoded); err != nil {
				t.Fatalf("Deserialize failed: %v", err)
			}

			if !reflect.DeepEqual(empty, decoded) {
				t.Errorf("stale fields after reuse:\n  sent:     %+v\n  received: %+v", empty, decoded)
			}
		})
	}
}

// TestBinaryDeserializeErrors tests that truncated input is rejected
func TestBinaryDeserializeErrors(t *testing.T) {
	s := NewBinarySerializer()

	valid, err := s.Serialize(common.Message{
		MsgType: common.MsgTLockPut,
		Key:     "database#/data/app.sqlite",
		OwnerID: "owner",
	})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	cases := map[string][]byte{
		"nil data":          nil,
		"only message type": valid[:1],
		"truncated key":     valid[:4],
		"truncated owner":   valid[:len(valid)-2],
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			var msg common.Message
			if err := s.Deserialize(data, &msg); err == nil {
				t.Error("expected an error for truncated input")
			}
		})
	}
}
