package server

import (
	"fmt"
	"time"

	"github.com/sqlock/sqlock/lib/lockstore"
	"github.com/sqlock/sqlock/rpc/common"
)

func NewLockStoreServerAdapter() IRPCServerAdapter {
	return &lockStoreServerAdapterImpl{}
}

type lockStoreServerAdapterImpl struct{}

func (adapter *lockStoreServerAdapterImpl) Handle(req *common.Message, store lockstore.ILockStore) *common.Message {
	// Check for nil store
	if store == nil {
		return common.NewErrorResponse("handler: lock store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTLockPut:
		err := store.PutIfVacant(
			req.Key,
			req.OwnerID,
			time.UnixMilli(req.NowMillis),
			time.UnixMilli(req.ExpiresMillis),
		)
		return common.NewPutResponse(err)
	case common.MsgTLockDelete:
		err := store.DeleteIfOwner(req.Key, req.OwnerID)
		return common.NewDeleteResponse(err)
	case common.MsgTLockGet:
		rec, found, err := store.Get(req.Key)
		return common.NewGetResponse(rec.Key, rec.OwnerID, rec.ExpiresAt, found, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("rpc lock store adapter: unsupported message type: %s", req.MsgType),
		)
	}
}
