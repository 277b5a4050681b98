// Package client provides the RPC-backed lock store implementation. It
// lets a lock manager talk to a remote lock server through any transport
// and serializer combination, while presenting the same ILockStore
// interface as the in-process implementations.
//
// Key Components:
//
//   - NewRPCLockStore: Factory that connects the given transport and
//     returns a lockstore.ILockStore whose operations are forwarded to
//     one shard of a remote lock server.
//
//   - rpcClientAdapter: Shared plumbing (shard ID, transport,
//     serializer) used to send requests and decode responses, including
//     the reconstruction of typed store errors from the wire.
//
// Usage:
//
//	store, err := client.NewRPCLockStore(
//		100,
//		config,
//		tcp.NewTCPClientTransport(),
//		serializer.NewBinarySerializer(),
//	)
//	if err != nil { ... }
//
//	mgr, err := lockmgr.New(store, nil, lockmgr.Config{...})
package client
