package unix

import (
	"fmt"
	"net"
	"os"

	"github.com/ValentinKolb/kvs/lib/threadpool"
	"github.com/ValentinKolb/kvs/rpc/transport"
	"github.com/ValentinKolb/kvs/rpc/transport/base"
)

const (
	defaultBufferSize = 64 * 1024 // 64 KB
)

// serverConnector implements the IServerConnector interface for Unix sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "unix"
}

func (c *serverConnector) Listen(socketPath string) (net.Listener, error) {
	// Remove existing socket file if it exists
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create Unix socket: %w", err)
	}
	return listener, nil
}

func (c *serverConnector) UpgradeConnection(net.Conn) error {
	return nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixServerTransport creates a new Unix server transport that handles connections on the given pool
func NewUnixServerTransport(pool threadpool.IThreadPool) transport.IRPCServerTransport {
	return NewUnixServerTransportWithBuffer(pool, defaultBufferSize)
}

// NewUnixServerTransportWithBuffer creates a new Unix server transport with specified read buffer size
func NewUnixServerTransportWithBuffer(pool threadpool.IThreadPool, bufferSize int) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, pool, bufferSize)
}
