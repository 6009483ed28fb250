package base

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/kvs/lib/threadpool"
	"github.com/ValentinKolb/kvs/rpc/common"
	"github.com/ValentinKolb/kvs/rpc/transport"
)

var (
	connectionsTotal  = metrics.NewCounter("kvs_transport_connections_total")
	acceptErrorsTotal = metrics.NewCounter("kvs_transport_accept_errors_total")
	frameErrorsTotal  = metrics.NewCounter("kvs_transport_frame_errors_total")
)

// maxAcceptBackoff caps the pause after repeated accept errors
const maxAcceptBackoff = time.Second

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(endpoint string) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality.
// Connections are one-shot: the accept loop hands each accepted connection to the
// thread pool as one job, which reads one request, answers it and closes the connection.
type serverTransport struct {
	connector  IServerConnector
	handler    transport.ServerHandleFunc
	config     common.ServerConfig
	pool       threadpool.IThreadPool
	listener   net.Listener
	bufferPool *sync.Pool
	closed     atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport that runs every connection on the pool
func NewBaseServerTransport(connector IServerConnector, pool threadpool.IThreadPool, bufferSize int) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		pool:      pool,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) (net.Addr, error) {
	t.config = config

	// Create listener using the connector
	listener, err := t.connector.Listen(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	t.listener = listener

	Logger.Infof("Listening for %s connections on %s", t.connector.GetName(), listener.Addr())
	return listener.Addr(), nil
}

func (t *serverTransport) Serve() error {
	if t.listener == nil {
		return fmt.Errorf("Serve called before Listen")
	}
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	var backoff time.Duration
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				Logger.Infof("Stopped accepting %s connections", t.connector.GetName())
				return nil
			}

			// e.g. too many open files, wait and retry
			acceptErrorsTotal.Inc()
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			Logger.Errorf("Accept error: %v, retrying in %s", err, backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		connectionsTotal.Inc()

		t.pool.Spawn(func() {
			t.handleConnection(conn)
		})
	}
}

func (t *serverTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection answers the single request of one connection
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer conn.Close()

	if err := t.connector.UpgradeConnection(conn); err != nil {
		Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
	}

	// Timeout in seconds
	timeout := time.Duration(t.config.TimeoutSecond) * time.Second
	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			Logger.Errorf("Failed to set deadline: %v", err)
			return
		}
	}

	// Get a buffer from the pool
	buf := t.bufferPool.Get().([]byte)
	defer t.bufferPool.Put(buf)

	data, err := readFrame(conn, buf)
	if errors.Is(err, io.EOF) {
		Logger.Debugf("Connection from %s closed without a request", conn.RemoteAddr())
		return
	}
	if err != nil {
		frameErrorsTotal.Inc()
		Logger.Errorf("Failed to read request from %s: %v", conn.RemoteAddr(), err)
		return
	}

	start := time.Now()
	resp := t.handler(data)
	Logger.Debugf("Processed request from %s in %s", conn.RemoteAddr(), time.Since(start))

	if err := writeFrame(conn, resp); err != nil {
		frameErrorsTotal.Inc()
		Logger.Errorf("Failed to write response to %s: %v", conn.RemoteAddr(), err)
	}
}
