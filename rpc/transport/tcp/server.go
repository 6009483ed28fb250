package tcp

import (
	"fmt"
	"net"

	"github.com/ValentinKolb/kvs/lib/threadpool"
	"github.com/ValentinKolb/kvs/rpc/transport"
	"github.com/ValentinKolb/kvs/rpc/transport/base"
)

const (
	defaultBufferSize = 512 * 1024 // 512 KB
)

// serverConnector implements the IServerConnector interface for TCP sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "tcp"
}

func (c *serverConnector) Listen(endpoint string) (net.Listener, error) {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP socket: %w", err)
	}
	return listener, nil
}

// UpgradeConnection disables Nagle's algorithm, a response is always written in one piece
func (c *serverConnector) UpgradeConnection(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}
	return tcpConn.SetNoDelay(true)
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPServerTransport creates a new TCP server transport that handles connections on the given pool
func NewTCPServerTransport(pool threadpool.IThreadPool) transport.IRPCServerTransport {
	return NewTCPServerTransportWithBuffer(pool, defaultBufferSize)
}

// NewTCPServerTransportWithBuffer creates a new TCP server transport with specified read buffer size
func NewTCPServerTransportWithBuffer(pool threadpool.IThreadPool, bufferSize int) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, pool, bufferSize)
}
