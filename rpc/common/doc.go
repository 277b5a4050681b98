// Package common provides the shared building blocks of the RPC system:
// the wire message protocol, the server and client configuration
// structures, and the logging setup.
//
// Key Components:
//
//   - Message: The single message structure used for both requests and
//     responses. Which fields are populated depends on the message type.
//     Factory functions exist for every request and response so the
//     field conventions live in one place.
//
//   - ServerConfig / ClientConfig: Configuration for the lock server and
//     the lock client, including the shard table and the raft cluster
//     parameters for replicated shards.
//
//   - CreateLogger / InitLoggers: The logger factory that gives every
//     subsystem a uniformly formatted, level-filtered logger.
package common
