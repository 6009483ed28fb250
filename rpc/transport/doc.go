// Package transport defines the interfaces and abstractions for RPC communication
// of the key-value store. It provides a common contract that all transport
// implementations must fulfill, enabling protocol-agnostic communication.
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     deliver one encoded request and return the encoded response.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     accept connections and pass every request to the registered handler.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
// Implementations:
//
// The base package (github.com/ValentinKolb/kvs/rpc/transport/base) implements the framing,
// the accept loop and the client independent of the network; the tcp and unix packages
// plug TCP and Unix domain sockets into it.
package transport
