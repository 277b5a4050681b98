package client

import (
	"time"

	"github.com/sqlock/sqlock/lib/lockstore"
	"github.com/sqlock/sqlock/rpc/common"
	"github.com/sqlock/sqlock/rpc/serializer"
	"github.com/sqlock/sqlock/rpc/transport"
)

// NewRPCLockStore creates a lock store backed by a remote lock server.
// The function takes a shard ID, a config, a transport and a serializer
// as parameters. It connects the transport immediately and returns a
// lockstore.ILockStore.
func NewRPCLockStore(
	shardID uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (lockstore.ILockStore, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	// Create a new RPC lock store
	s := rpcLockStore{
		rpcClientAdapter{
			shardID:    shardID,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	return &s, nil
}

type rpcLockStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the lockstore package in interface.go)
// --------------------------------------------------------------------------

func (s *rpcLockStore) PutIfVacant(key, ownerID string, now, expiresAt time.Time) error {
	req := common.NewPutRequest(key, ownerID, now.UnixMilli(), expiresAt.UnixMilli())
	_, err := invokeRPCRequest(s.shardID, req, s.transport, s.serializer)
	return err
}

func (s *rpcLockStore) DeleteIfOwner(key, ownerID string) error {
	req := common.NewDeleteRequest(key, ownerID)
	_, err := invokeRPCRequest(s.shardID, req, s.transport, s.serializer)
	return err
}

func (s *rpcLockStore) Get(key string) (lockstore.Record, bool, error) {
	req := common.NewGetRequest(key)
	resp, err := invokeRPCRequest(s.shardID, req, s.transport, s.serializer)
	if err != nil {
		return lockstore.Record{}, false, err
	}
	return lockstore.Record{
		Key:       resp.Key,
		OwnerID:   resp.OwnerID,
		ExpiresAt: resp.ExpiresMillis,
	}, resp.Ok, nil
}
