package transport

import (
	"net"

	"github.com/ValentinKolb/kvs/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes the encoded request and returns the encoded response, it never fails:
// errors must be encoded into the response
type ServerHandleFunc func(req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler is called once for every received request
	RegisterHandler(handler ServerHandleFunc)
	// Listen binds the endpoint of the config and returns the bound address
	Listen(config common.ServerConfig) (net.Addr, error)
	// Serve accepts connections until Close is called. It returns nil after Close.
	Serve() error
	// Close stops accepting connections. Requests already accepted are still answered.
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response
	Send(req []byte) (resp []byte, err error)
	// Close closes the transport, Send fails afterwards
	Close() error
}
