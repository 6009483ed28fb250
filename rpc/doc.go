// Package rpc provides the remote procedure calls of the key-value store.
// It acts as the communication layer between clients and the server, so the
// store operations can be used across process and network boundaries.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets). Every connection carries exactly one request.
//
//   - serializer: Message serialization with multiple format options (JSON, Binary, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: RPC client implementing the store interface, allowing applications to
//     interact with a remote store transparently.
//
//   - server: RPC server components that handle incoming requests on a thread pool
//     and answer them from a local store.
package rpc
