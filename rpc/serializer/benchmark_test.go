package serializer

import (
	"testing"

	"github.com/sqlock/sqlock/rpc/common"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	return map[string]common.Message{
		"Empty": {
			MsgType: common.MsgTSuccess,
		},
		"GetRequest": {
			MsgType: common.MsgTLockGet,
			Key:     "database#/data/app.sqlite",
		},
		"PutRequest": {
			MsgType:       common.MsgTLockPut,
			Key:           "database#/data/app.sqlite",
			OwnerID:       "8b33f347-16ac-4a4c-9c0c-0a1b2c3d4e5f",
			NowMillis:     1_000_000,
			ExpiresMillis: 1_010_000,
		},
		"LongKeyPutRequest": {
			MsgType:       common.MsgTLockPut,
			Key:           "database#/var/lib/app/deeply/nested/path/to/some/very/long/database/file/name/app.sqlite",
			OwnerID:       "8b33f347-16ac-4a4c-9c0c-0a1b2c3d4e5f",
			NowMillis:     1_000_000,
			ExpiresMillis: 1_010_000,
		},
		"GetResponse": {
			MsgType:       common.MsgTLockGet,
			Key:           "database#/data/app.sqlite",
			OwnerID:       "8b33f347-16ac-4a4c-9c0c-0a1b2c3d4e5f",
			ExpiresMillis: 1_010_000,
			Ok:            true,
		},
		"ErrorResponse": {
			MsgType: common.MsgTLockPut,
			Err:     "lockstore error (code ConditionFailed): lock held by someone else",
			ErrCode: 1,
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				s := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if _, err := s.Serialize(msg); err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				s := factory()
				data, err := s.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var decoded common.Message
					if err := s.Deserialize(data, &decoded); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}
