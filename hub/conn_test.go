//go:build unix

package hub

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	t.Cleanup(func() { unix.Close(fds[1]) })
	return fds[0], fds[1]
}

func TestClientConnectionSendAndRead(t *testing.T) {
	local, peer := socketPair(t)
	c := newClientConnection(1, local, "10.0.0.1:5000", time.Second, nil)
	defer c.Disconnect()

	before := c.LastActivity()
	time.Sleep(2 * time.Millisecond)
	require.True(t, c.Send([]byte("hello")))
	assert.Equal(t, uint64(5), c.BytesSent())
	assert.True(t, c.LastActivity().After(before))

	buf := make([]byte, 16)
	n, err := unix.Read(peer, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	_, err = unix.Write(peer, []byte("pong"))
	require.NoError(t, err)
	n, err = c.read(buf)
	require.NoError(t, err)
	c.recordReceived(n)
	assert.Equal(t, "pong", string(buf[:n]))
	assert.Equal(t, uint64(4), c.BytesReceived())

	info := c.Info()
	assert.Equal(t, uint64(1), info.ID)
	assert.Equal(t, "10.0.0.1:5000", info.Address)
	assert.Equal(t, "10.0.0.1", c.host)
}

func TestClientConnectionDisconnectClaimedOnce(t *testing.T) {
	local, peer := socketPair(t)
	var detached atomic.Int32
	c := newClientConnection(7, local, "127.0.0.1:1", time.Second, func(fd int) {
		assert.Equal(t, local, fd)
		detached.Add(1)
	})

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Disconnect() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(1), detached.Load())
	assert.False(t, c.IsConnected())
	assert.False(t, c.Send([]byte("late")))
	_, err := c.read(make([]byte, 4))
	assert.ErrorIs(t, err, errConnClosed)

	// peer observes EOF
	n, err := unix.Read(peer, make([]byte, 4))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestClientConnectionSendRacesDisconnect(t *testing.T) {
	local, peer := socketPair(t)
	go func() {
		buf := make([]byte, 4096)
		for {
			if n, err := unix.Read(peer, buf); n == 0 || err != nil {
				return
			}
		}
	}()
	c := newClientConnection(2, local, "127.0.0.1:2", 100*time.Millisecond, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Send([]byte("x"))
			}
		}()
	}
	time.Sleep(time.Millisecond)
	assert.True(t, c.Disconnect())
	wg.Wait()
	assert.LessOrEqual(t, c.BytesSent(), uint64(400))
}

func TestClientConnectionMetadata(t *testing.T) {
	c := newClientConnection(3, -1, "127.0.0.1:3", 0, nil)
	_, ok := c.Metadata("k")
	assert.False(t, ok)
	c.SetMetadata("k", "v")
	v, ok := c.Metadata("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
