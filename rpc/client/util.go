package client

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/kvs/lib/db"
	"github.com/ValentinKolb/kvs/rpc/common"
	"github.com/ValentinKolb/kvs/rpc/serializer"
	"github.com/ValentinKolb/kvs/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used by the RPC client to send requests
// It takes a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also converts error responses into *db.Error values and checks
// that the type of the response is the expected type
func invokeRPCRequest(req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, db.WrapError(db.RetCSerializationError, err, "failed to encode request")
	}

	// Send the request
	respBytes, err := transport.Send(reqBytes)
	if err != nil {
		return nil, db.WrapError(db.RetCIoError, err, fmt.Sprintf("%s request failed", req.MsgType))
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, db.WrapError(db.RetCSerializationError, err, "failed to decode response")
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return nil, remoteError(resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, db.NewError(db.RetCSerializationError,
			fmt.Sprintf("unexpected response type %s, expected %s", resp.MsgType, req.MsgType))
	}

	return resp, nil
}

// remoteError converts the message of an error response into an error.
// The not found message of the server maps back to db.ErrKeyNotFound.
func remoteError(msg string) error {
	if msg == db.ErrKeyNotFound.Msg {
		return db.ErrKeyNotFound
	}
	return db.NewError(db.RetCRemoteError, msg)
}

// IsRemoteError reports whether err is an error message sent by the server
func IsRemoteError(err error) bool {
	return errors.Is(err, db.NewError(db.RetCRemoteError, ""))
}
