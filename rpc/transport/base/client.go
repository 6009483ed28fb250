package base

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/kvs/rpc/common"
	"github.com/ValentinKolb/kvs/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

// ErrTransportClosed is returned by Send after Close
var ErrTransportClosed = errors.New("transport is closed")

// initialBackoff is the pause before the first connect retry, it doubles with every retry
const initialBackoff = 50 * time.Millisecond

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.).
// Every Send opens its own connection, writes one request, reads one response and closes it,
// so the transport is safe for concurrent use without any locking.
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig
	closed    atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if config.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}
	t.config = config
	t.closed.Store(false)

	Logger.Debugf("Using %s transport to %s", t.connector.GetName(), config.Endpoint)
	return nil
}

func (t *clientTransport) Send(req []byte) ([]byte, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	conn, err := t.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if t.config.TimeoutSecond > 0 {
		timeout := time.Duration(t.config.TimeoutSecond) * time.Second
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("failed to set deadline: %w", err)
		}
	}

	// from here on the request may have reached the server, so it is never sent again
	if err := writeFrame(conn, req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	resp, err := readFrame(conn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, nil
}

func (t *clientTransport) Close() error {
	t.closed.Store(true)
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// dial connects to the endpoint, retrying failed attempts with exponential backoff
func (t *clientTransport) dial() (net.Conn, error) {
	timeout := time.Duration(t.config.TimeoutSecond) * time.Second
	attempts := 1 + max(t.config.RetryCount, 0)
	backoff := initialBackoff

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := t.connector.Connect(t.config.Endpoint, timeout)
		if err == nil {
			return conn, nil
		}

		lastErr = err
		Logger.Debugf("Connect attempt %d/%d to %s failed: %v", i+1, attempts, t.config.Endpoint, err)

		if i < attempts-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoff) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter))
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", t.config.Endpoint, attempts, lastErr)
}
