package client

import (
	"encoding/json"

	"github.com/ValentinKolb/kvs/lib/db"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/rpc/common"
	"github.com/ValentinKolb/kvs/rpc/serializer"
	"github.com/ValentinKolb/kvs/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a config, a transport and a serializer as parameters
// It returns a store.IStore and an error
func NewRPCStore(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	Logger.Debugf("Created RPC store client")
	Logger.Debugf(config.String())

	return &rpcStore{
		rpcClientAdapter{
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Set(key string, value []byte) (err error) {
	req := common.NewSetRequest(key, value)
	_, err = invokeRPCRequest(req, i.transport, i.serializer)
	return err
}

func (i *rpcStore) Get(key string) (value []byte, loaded bool, err error) {
	req := common.NewGetRequest(key)
	resp, err := invokeRPCRequest(req, i.transport, i.serializer)
	if err != nil {
		return nil, false, err
	}
	if !resp.Ok {
		return nil, false, nil
	}
	// serializers drop empty values, a found key always has a non nil value
	if resp.Value == nil {
		return []byte{}, true, nil
	}
	return resp.Value, true, nil
}

func (i *rpcStore) Remove(key string) (err error) {
	req := common.NewRemoveRequest(key)
	_, err = invokeRPCRequest(req, i.transport, i.serializer)
	return err
}

func (i *rpcStore) GetDBInfo() (info db.DatabaseInfo, err error) {
	resp, err := invokeRPCRequest(common.NewInfoRequest(), i.transport, i.serializer)
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	if err := json.Unmarshal(resp.Value, &info); err != nil {
		return db.DatabaseInfo{}, db.WrapError(db.RetCSerializationError, err, "failed to decode database info")
	}
	return info, nil
}

func (i *rpcStore) Close() (err error) {
	return i.transport.Close()
}
