// Package server implements the RPC server of the key-value store.
// It decodes requests, lets an adapter run them against a store.IStore and
// encodes the responses.
//
// The package focuses on:
//   - Server-side RPC request handling for the store operations (set, get, remove, info)
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Request metrics and an optional Prometheus metrics endpoint
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.IStore.
//
//   - NewIStoreServerAdapter: Factory function creating an adapter for key-value
//     store operations, translating RPC requests to store.IStore method calls.
//
//   - NewRPCServer: Factory function creating a server with the specified
//     transport, serializer and store.
//
// Usage Example:
//
//	// Create the thread pool that runs the connections
//	pool, _ := threadpool.New(threadpool.KindSharedQueue, 8)
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(pool),
//	  serializer.NewJSONSerializer(),
//	  store,
//	)
//	if _, err := s.Listen(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//	go s.Serve()
//
// Error Handling:
//
//	The server never fails a request silently: a request that can not be decoded,
//	an unknown message type and every error of the store is answered with an error
//	response carrying the error text. KeyNotFound is sent as "Key not found".
//
// Metrics:
//
//	kvs_rpc_requests_total, kvs_rpc_request_errors_total and kvs_rpc_request_duration_seconds
//	are labeled with the message type. If ServerConfig.MetricsEndpoint is set, all metrics
//	of the process (including the engine, thread pool and transport metrics) are served
//	on http://<endpoint>/metrics.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	Listen must be called once before Serve.
package server
