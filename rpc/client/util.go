package client

import (
	"fmt"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/sqlock/sqlock/rpc/common"
	"github.com/sqlock/sqlock/rpc/serializer"
	"github.com/sqlock/sqlock/rpc/transport"
)

var Logger = logger.GetLogger("rpc")

// rpcClientAdapter stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	shardID    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is the shared request path of all RPC clients. It
// serializes the request, sends it to the shard and decodes the response.
// Store errors carried by the response are reconstructed as typed errors,
// so callers can branch on the failure class as if the store were local.
func invokeRPCRequest(shardID uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := transport.Send(shardID, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("rpc client: failed to decode response: %s", err)
	}

	// Check if the response carries an error
	if err := resp.StoreError(); err != nil {
		return nil, err
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("rpc client: unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}
