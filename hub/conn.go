// File: hub/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-socket client state.

package hub

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/sockethub/api"
	"github.com/momentics/sockethub/internal/sockets"
)

var errConnClosed = errors.New("connection closed")

// ClientConnection owns one accepted socket. connected is the single source of
// truth for liveness: it goes true -> false exactly once, and whoever performs
// that transition closes the socket.
type ClientConnection struct {
	id          uint64
	fd          int
	addr        string
	host        string
	connectedAt time.Time

	connected    atomic.Bool
	lastActivity atomic.Int64 // unix nanos

	bytesReceived    atomic.Uint64
	bytesSent        atomic.Uint64
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64

	// writeMu serializes senders and the close. readMu is held by the event
	// loop around each read so the descriptor cannot be closed, and its number
	// reused, underneath it.
	writeMu sync.Mutex
	readMu  sync.Mutex

	writeTimeout time.Duration
	detach       func(fd int) // deregisters fd from the reactor before close

	mdMu     sync.RWMutex
	metadata map[string]string
}

func newClientConnection(id uint64, fd int, addr string, writeTimeout time.Duration, detach func(int)) *ClientConnection {
	now := time.Now()
	c := &ClientConnection{
		id:           id,
		fd:           fd,
		addr:         addr,
		host:         hostOf(addr),
		connectedAt:  now,
		writeTimeout: writeTimeout,
		detach:       detach,
	}
	c.connected.Store(true)
	c.lastActivity.Store(now.UnixNano())
	return c
}

// ID returns the hub-unique client id.
func (c *ClientConnection) ID() uint64 { return c.id }

// Address returns the remote ip:port.
func (c *ClientConnection) Address() string { return c.addr }

// ConnectedAt returns the accept time.
func (c *ClientConnection) ConnectedAt() time.Time { return c.connectedAt }

// IsConnected reports liveness.
func (c *ClientConnection) IsConnected() bool { return c.connected.Load() }

// LastActivity returns the time of the last successful read or write.
func (c *ClientConnection) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// BytesReceived returns the running receive total.
func (c *ClientConnection) BytesReceived() uint64 { return c.bytesReceived.Load() }

// BytesSent returns the running send total.
func (c *ClientConnection) BytesSent() uint64 { return c.bytesSent.Load() }

// Send writes data in full. It returns false if the connection is closed or
// the write fails.
func (c *ClientConnection) Send(data []byte) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if !c.connected.Load() {
		return false
	}
	if err := sockets.WriteAll(c.fd, data, c.writeTimeout); err != nil {
		return false
	}
	c.bytesSent.Add(uint64(len(data)))
	c.messagesSent.Add(1)
	c.touch()
	return true
}

// read performs one read on behalf of the event loop.
func (c *ClientConnection) read(buf []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if !c.connected.Load() {
		return 0, errConnClosed
	}
	return sockets.Read(c.fd, buf)
}

// recordReceived accounts for n bytes delivered from the socket. Only the
// goroutine servicing the socket's readability calls it.
func (c *ClientConnection) recordReceived(n int) {
	c.bytesReceived.Add(uint64(n))
	c.messagesReceived.Add(1)
	c.touch()
}

func (c *ClientConnection) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// Disconnect claims the connected -> disconnected transition and closes the
// socket. It returns true only for the single caller that won the claim.
func (c *ClientConnection) Disconnect() bool {
	if !c.connected.CompareAndSwap(true, false) {
		return false
	}
	if c.detach != nil {
		c.detach(c.fd)
	}
	c.readMu.Lock()
	c.writeMu.Lock()
	sockets.Close(c.fd)
	c.writeMu.Unlock()
	c.readMu.Unlock()
	return true
}

// SetMetadata attaches a key/value pair to the connection.
func (c *ClientConnection) SetMetadata(key, value string) {
	c.mdMu.Lock()
	if c.metadata == nil {
		c.metadata = make(map[string]string)
	}
	c.metadata[key] = value
	c.mdMu.Unlock()
}

// Metadata returns a value set with SetMetadata.
func (c *ClientConnection) Metadata(key string) (string, bool) {
	c.mdMu.RLock()
	defer c.mdMu.RUnlock()
	v, ok := c.metadata[key]
	return v, ok
}

// Info returns a snapshot suitable for callers.
func (c *ClientConnection) Info() api.ClientInfo {
	return api.ClientInfo{
		ID:            c.id,
		Address:       c.addr,
		ConnectedAt:   c.connectedAt,
		LastActivity:  c.LastActivity(),
		BytesReceived: c.bytesReceived.Load(),
		BytesSent:     c.bytesSent.Load(),
	}
}
