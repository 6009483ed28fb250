// Package tcp implements the TCP socket-based transport for the key-value store's
// RPC system. It provides concrete implementations of the base package's connector
// interfaces for TCP connections.
//
// This package builds on the base package's transport functionality, inheriting its
// framing, buffer reuse and thread pool dispatch. See the base package documentation
// for detailed information on the underlying transport mechanisms.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// The default server buffer size is set to 512 KB, which provides good performance
// for typical workloads, but can be customized with NewTCPServerTransportWithBuffer.
package tcp
