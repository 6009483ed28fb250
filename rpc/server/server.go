package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/rpc/common"
	"github.com/ValentinKolb/kvs/rpc/serializer"
	"github.com/ValentinKolb/kvs/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server
// It takes a config, transport, serializer and the store that answers the requests as parameters.
// The server does not own the store, closing the server leaves it open.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(pool),
//		serializer.NewJSONSerializer(),
//		store,
//	)
//
//	if _, err := s.Listen(); err != nil {
//		panic(err)
//	}
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	store store.IStore,
) *RPCServer {
	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		store:      store,
		adapter:    NewIStoreServerAdapter(),
	}
}

type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	store      store.IStore
	adapter    IRPCServerAdapter

	mu      sync.Mutex
	metrics *metricsServer
}

// Listen binds the endpoint of the config (and the metrics endpoint if configured)
// and returns the bound address. Requests are only answered after Serve was called.
func (s *RPCServer) Listen() (net.Addr, error) {
	s.transport.RegisterHandler(s.handle)

	addr, err := s.transport.Listen(s.config)
	if err != nil {
		return nil, err
	}

	if s.config.MetricsEndpoint != "" {
		m, err := startMetricsServer(s.config.MetricsEndpoint)
		if err != nil {
			_ = s.transport.Close()
			return nil, err
		}
		s.mu.Lock()
		s.metrics = m
		s.mu.Unlock()
	}

	return addr, nil
}

// Serve answers requests until Close is called
func (s *RPCServer) Serve() error {
	return s.transport.Serve()
}

// Close stops accepting connections and stops the metrics endpoint
func (s *RPCServer) Close() error {
	err := s.transport.Close()

	s.mu.Lock()
	if s.metrics != nil {
		err = errors.Join(err, s.metrics.Close())
		s.metrics = nil
	}
	s.mu.Unlock()

	return err
}

// MetricsAddr returns the address of the metrics endpoint or nil if it is disabled
func (s *RPCServer) MetricsAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metrics == nil {
		return nil
	}
	return s.metrics.Addr()
}

// handle is the transport handler: decode, let the adapter answer, encode.
// It always returns a response, failures are sent to the client as error responses.
func (s *RPCServer) handle(req []byte) []byte {
	start := time.Now()

	var msg common.Message
	var resp *common.Message

	if err := s.serializer.Deserialize(req, &msg); err != nil {
		decodeErrorsTotal.Inc()
		Logger.Warningf("Failed to deserialize request: %v", err)
		resp = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		resp = s.adapter.Handle(&msg, s.store)
		observeRequest(msg.MsgType, start, resp)
	}

	val, err := s.serializer.Serialize(*resp)
	if err != nil {
		Logger.Errorf("Failed to serialize %s response: %v", resp.MsgType, err)
		val, err = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
		if err != nil {
			// an error response without key or value always encodes
			Logger.Errorf("Failed to serialize error response: %v", err)
		}
	}
	return val
}
