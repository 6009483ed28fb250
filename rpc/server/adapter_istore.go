package server

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, store store.IStore) *common.Message {
	// Check for nil store
	if store == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTKVSet:
		err := store.Set(req.Key, req.Value)
		return common.NewSetResponse(err)
	case common.MsgTKVGet:
		val, ok, err := store.Get(req.Key)
		return common.NewGetResponse(val, ok, err)
	case common.MsgTKVRemove:
		err := store.Remove(req.Key)
		return common.NewRemoveResponse(err)
	case common.MsgTInfo:
		info, err := store.GetDBInfo()
		if err != nil {
			return common.NewInfoResponse(nil, err)
		}
		b, err := json.Marshal(info)
		return common.NewInfoResponse(b, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("unsupported message type: %s", req.MsgType),
		)
	}
}
