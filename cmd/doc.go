// Package cmd implements the command-line interface of the kvs key-value store.
// It provides a hierarchical command structure with operations for running the
// server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value store operations (set, get, rm) and a load generator (perf)
//   - serve: Command for starting and configuring the kvs server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set with an environment variable KVS_<FLAG> (e.g. KVS_ENDPOINT),
// .env and .env.local files in the working directory are loaded on startup.
//
// See kvs -help for a list of all commands.
package cmd
