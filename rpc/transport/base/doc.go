// Package base provides a foundation for transport layers of the key-value store,
// implementing core functionality for RPC communication independent of the specific
// network protocol (TCP, Unix sockets, etc.). It serves as a base layer that can be
// extended with protocol-specific connectors.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - serverTransport: Accepts connections and hands each of them to a thread pool
//     (lib/threadpool) as one job. The accept loop itself never reads from a connection,
//     so a slow client can not stall it. Accept errors are logged and retried with a
//     growing pause, only Close ends the loop.
//
//   - clientTransport: Opens one connection per request. A failed connect is retried
//     with exponential backoff and jitter; once the request was written it is never
//     sent again, so a request is executed at most once.
//
// Wire Format:
//
//	Every request and every response is one frame: a 4 byte big endian length followed
//	by the payload produced by a serializer. Frames larger than 64 MB are rejected.
//	A connection carries exactly one request frame and one response frame.
//
// Performance Optimizations:
//
//   - Buffer Pooling: The server uses a sync.Pool to reuse read buffers, reducing
//     GC pressure and memory allocations.
//
//   - Frame Batching: The transport uses net.Buffers to reduce syscalls when
//     writing frames, combining header and payload into a single write operation.
//
// Thread Safety:
//
//	All public methods are thread-safe.
package base
