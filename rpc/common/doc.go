// Package common provides core data structures and utilities shared by the
// server, the client and the command line tool. It defines the protocol
// messages, the configuration structures and the logger setup.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication, used for requests and
//     responses alike. Includes factory methods for every request and response. A
//     response built from an error is always an Error response carrying the error text.
//
//   - MessageType: Enumeration of the supported operations (set, get, remove, info)
//     and the error response. Types are encoded as strings in JSON so the messages
//     stay readable on the wire.
//
//   - ServerConfig: Configuration of a server node: engine, data directory,
//     compaction, thread pool, endpoint and logging.
//
//   - ClientConfig: Configuration for clients, controlling the endpoint, timeouts
//     and connect retries.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's logger
//     facade (github.com/lni/dragonboat/v4/logger) and gives all packages the same format.
package common
