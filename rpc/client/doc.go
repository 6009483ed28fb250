// Package client implements the RPC client of the key-value store.
// It provides an implementation of the store.IStore interface that sends every
// operation to a remote server via RPC.
//
// The package focuses on:
//   - Transparent RPC access to a remote store
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC and domain errors
//
// Key Components:
//
//   - NewRPCStore: Factory function that creates a client implementing the store.IStore
//     interface. This client forwards all operations to the server via the configured
//     transport layer.
//
// Error Mapping:
//
//   - An error response with the message "Key not found" is returned as db.ErrKeyNotFound,
//     so errors.Is works the same for local and remote stores.
//   - Every other error response becomes a *db.Error with code RetCRemoteError
//     carrying the message of the server (see IsRemoteError).
//   - Failures to reach the server are *db.Error values with code RetCIoError.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//	  Endpoint:      "localhost:4000",
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	}
//
//	// Create store client
//	s, _ := client.NewRPCStore(config, tcp.NewTCPClientTransport(), serializer.NewJSONSerializer())
//
//	// Use the store
//	s.Set("mykey", []byte("myvalue"))
//	value, exists, _ := s.Get("mykey")
//
// Thread Safety:
//
//	The client opens one connection per request and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
