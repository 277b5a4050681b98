package tcp

import (
	"fmt"
	"net"
	"time"

	"github.com/sqlock/sqlock/rpc/common"
	"github.com/sqlock/sqlock/rpc/transport"
	"github.com/sqlock/sqlock/rpc/transport/base"
)

const (
	defaultBufferSize        = 512 * 1024 // 512 KB
	defaultWorkersPerConn = 64
)

// serverConnector implements the IServerConnector interface for TCP sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "tcp"
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP socket: %v", err)
	}

	// Apply socket tuning to every accepted connection
	return &tuningListener{Listener: listener, config: config}, nil
}

// tuningListener wraps a TCP listener and applies the configured socket
// options to each accepted connection.
type tuningListener struct {
	net.Listener
	config common.ServerConfig
}

func (l *tuningListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := upgradeConnection(tcpConn, l.config); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// upgradeConnection applies performance settings to a TCP connection
func upgradeConnection(tcpConn *net.TCPConn, config common.ServerConfig) error {
	// Disable Nagle's algorithm if configured
	if err := tcpConn.SetNoDelay(config.TCPNoDelay); err != nil {
		return err
	}

	// Set socket write buffer size if configured
	if config.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(config.WriteBufferSize); err != nil {
			return err
		}
	}

	// Set socket read buffer size if configured
	if config.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(config.ReadBufferSize); err != nil {
			return err
		}
	}

	// Enable TCP keep-alive if configured
	if config.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(config.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPServerTransport creates a new TCP server transport
func NewTCPServerTransport() transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, defaultBufferSize, defaultWorkersPerConn)
}
