// Package server provides the server side of the lock service RPC
// system. A single lock server hosts any number of lock store shards,
// each either local (in process memory) or raft-replicated across the
// cluster, and routes incoming requests to them by shard ID.
//
// Key Components:
//
//   - NewRPCServer: Factory for the server. It takes a config, a
//     transport and a serializer and creates the shard table.
//
//   - IRPCServerAdapter: Interface between the decoded wire message and
//     a lock store, one adapter instance per shard.
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
package server
