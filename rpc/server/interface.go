package server

import (
	"github.com/sqlock/sqlock/lib/lockstore"
	"github.com/sqlock/sqlock/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a Message and a lock store as parameters.
	// If an error occurs, it is set in the response
	Handle(req *common.Message, store lockstore.ILockStore) (resp *common.Message)
}
