// Package unix implements a transport layer for the key-value store's RPC system
// using Unix domain sockets. It provides cheap communication for processes running
// on the same machine.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting framing, retries and thread pool dispatch from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners, a stale socket file left behind
//     by a previous server is removed first
//
// The default buffer size is 64 KB.
package unix
