// Package rpc provides the remote procedure call framework of the lock
// service. It is the communication layer between lock clients and lock
// servers, carrying the conditional store operations across network
// boundaries.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities shared across the RPC
//     system, including the Message protocol, configuration structures,
//     and logging.
//
//   - transport: Network communication abstractions with pluggable
//     implementations (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options
//     (Binary, JSON, GOB) for converting between Message objects and
//     byte arrays.
//
//   - client: An RPC-backed lock store implementation, allowing lock
//     managers to use a remote lock server transparently.
//
//   - server: RPC server components that handle incoming requests and
//     route them to local or raft-replicated lock store shards.
package rpc
