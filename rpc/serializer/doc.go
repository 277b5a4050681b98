// Package serializer provides message serialization for the lock
// service RPC system. It defines a common interface and multiple
// implementations for converting messages between their in-memory and
// wire representations.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Offering multiple implementations with different performance characteristics
//   - Supporting efficient encoding of the system's message structure
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations
//     must satisfy.
//
//   - binarySerializerImpl: Custom binary format implementation optimized
//     for speed and space efficiency. Uses a flag-based approach to encode
//     only present fields, resulting in compact serialized data with
//     minimal overhead. Recommended for production use.
//
//   - gobSerializerImpl: Implementation using Go's built-in gob encoding,
//     offering good compatibility with Go's type system but with larger
//     serialized sizes.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for
//     debugging or interoperability with other systems, but with lower
//     performance.
package serializer
