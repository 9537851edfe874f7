//go:build unix

package hub_test

import (
	"bytes"
	"errors"
	"io"
	"net"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/sockethub/api"
	"github.com/momentics/sockethub/hub"
	"github.com/momentics/sockethub/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second
const tick = 5 * time.Millisecond

func backends() []reactor.Kind {
	if runtime.GOOS == "linux" {
		return []reactor.Kind{reactor.KindEpoll, reactor.KindPoll}
	}
	return []reactor.Kind{reactor.KindPoll}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func testConfig(kind reactor.Kind) hub.Config {
	cfg := hub.DefaultConfig()
	cfg.Reactor = kind
	cfg.PollTimeout = 20 * time.Millisecond
	cfg.SweepInterval = 20 * time.Millisecond
	cfg.WriteTimeout = time.Second
	return cfg
}

func newHub(t *testing.T, cfg hub.Config, opts ...hub.Option) *hub.Hub {
	t.Helper()
	h := hub.New(append([]hub.Option{hub.WithConfig(cfg)}, opts...)...)
	t.Cleanup(h.Stop)
	return h
}

func start(t *testing.T, h *hub.Hub) int {
	t.Helper()
	port := freePort(t)
	require.NoError(t, h.Start(port))
	return port
}

func dial(t *testing.T, port int) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// dialAdmitted dials and waits until the hub has registered the client.
func dialAdmitted(t *testing.T, h *hub.Hub, port int) net.Conn {
	t.Helper()
	want := h.ClientCount() + 1
	c := dial(t, port)
	require.Eventually(t, func() bool { return h.ClientCount() == want }, waitFor, tick)
	return c
}

func readN(t *testing.T, c net.Conn, n int) []byte {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(waitFor)))
	buf := make([]byte, n)
	_, err := io.ReadFull(c, buf)
	require.NoError(t, err)
	return buf
}

func expectEOF(t *testing.T, c net.Conn) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(waitFor)))
	_, err := c.Read(make([]byte, 16))
	require.Error(t, err)
	var ne net.Error
	if errors.As(err, &ne) {
		require.False(t, ne.Timeout(), "expected the hub to close the connection")
	}
}

type recorder struct {
	mu          sync.Mutex
	connects    []uint64
	disconnects []uint64
	data        map[uint64]*bytes.Buffer
}

func newRecorder(t *testing.T, h *hub.Hub) *recorder {
	r := &recorder{data: make(map[uint64]*bytes.Buffer)}
	require.NoError(t, h.OnConnect(func(id uint64, _ string) {
		r.mu.Lock()
		r.connects = append(r.connects, id)
		r.mu.Unlock()
	}))
	require.NoError(t, h.OnDisconnect(func(id uint64, _ string) {
		r.mu.Lock()
		r.disconnects = append(r.disconnects, id)
		r.mu.Unlock()
	}))
	require.NoError(t, h.OnMessage(func(id uint64, data []byte) {
		r.mu.Lock()
		b, ok := r.data[id]
		if !ok {
			b = &bytes.Buffer{}
			r.data[id] = b
		}
		b.Write(data)
		r.mu.Unlock()
	}))
	return r
}

func (r *recorder) received(id uint64) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.data[id]; ok {
		return append([]byte(nil), b.Bytes()...)
	}
	return nil
}

func (r *recorder) disconnectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.disconnects)
}

func (r *recorder) connectIDs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.connects...)
}

func TestStartRejectsInvalidPort(t *testing.T) {
	h := newHub(t, hub.DefaultConfig())
	for _, port := range []int{0, -1, 70000} {
		err := h.Start(port)
		require.Error(t, err, "port %d", port)
		assert.True(t, api.IsConfigurationError(err))
		assert.True(t, errors.Is(err, api.ErrInvalidPort))
		assert.False(t, h.IsRunning())
		assert.Equal(t, api.StateStopped, h.State())
	}
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	cfg := hub.DefaultConfig()
	cfg.MaxConnections = 0
	h := newHub(t, cfg)
	err := h.Start(freePort(t))
	require.Error(t, err)
	assert.True(t, api.IsConfigurationError(err))
	assert.Equal(t, api.StateStopped, h.State())
}

func TestLifecycle(t *testing.T) {
	for _, kind := range backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHub(t, testConfig(kind))
			assert.False(t, h.IsRunning())
			assert.Equal(t, 0, h.Port())

			port := start(t, h)
			assert.True(t, h.IsRunning())
			assert.Equal(t, port, h.Port())
			assert.Equal(t, api.StateRunning, h.State())

			// already running: no-op
			require.NoError(t, h.Start(port))
			assert.Equal(t, port, h.Port())

			h.Stop()
			assert.False(t, h.IsRunning())
			assert.Equal(t, 0, h.Port())
			assert.Equal(t, api.StateStopped, h.State())
			h.Stop()
		})
	}
}

func TestStartOnBusyPortIsResourceError(t *testing.T) {
	first := newHub(t, testConfig(reactor.KindAuto))
	port := start(t, first)

	second := newHub(t, testConfig(reactor.KindAuto))
	err := second.Start(port)
	require.Error(t, err)
	assert.True(t, api.IsResourceError(err))
	assert.False(t, api.IsConfigurationError(err))
	assert.False(t, second.IsRunning())
	assert.Equal(t, api.StateStopped, second.State())
}

func TestClientsGetIncreasingIDs(t *testing.T) {
	h := newHub(t, testConfig(reactor.KindAuto))
	rec := newRecorder(t, h)
	port := start(t, h)

	for i := 0; i < 3; i++ {
		dialAdmitted(t, h, port)
	}
	require.Eventually(t, func() bool { return len(rec.connectIDs()) == 3 }, waitFor, tick)

	ids := rec.connectIDs()
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}
	clients := h.ConnectedClients()
	require.Len(t, clients, 3)
	for i, c := range clients {
		assert.Equal(t, ids[i], c.ID)
		assert.Contains(t, c.Address, "127.0.0.1:")
		assert.False(t, c.ConnectedAt.IsZero())
	}
	assert.Equal(t, 3, h.ClientCount())
	assert.Equal(t, uint64(3), h.Stats().TotalConnections)
}

func TestMessageDelivery(t *testing.T) {
	for _, kind := range backends() {
		t.Run(kind.String(), func(t *testing.T) {
			cfg := testConfig(kind)
			cfg.BufferSize = 512
			h := newHub(t, cfg)
			rec := newRecorder(t, h)
			port := start(t, h)

			c := dialAdmitted(t, h, port)
			id := h.ConnectedClients()[0].ID

			payload := bytes.Repeat([]byte("0123456789abcdef"), 1024)
			for off := 0; off < len(payload); off += 1000 {
				end := off + 1000
				if end > len(payload) {
					end = len(payload)
				}
				_, err := c.Write(payload[off:end])
				require.NoError(t, err)
			}

			require.Eventually(t, func() bool { return len(rec.received(id)) == len(payload) }, waitFor, tick)
			assert.Equal(t, payload, rec.received(id))

			info := h.ConnectedClients()[0]
			assert.Equal(t, uint64(len(payload)), info.BytesReceived)
			assert.Equal(t, uint64(len(payload)), h.Stats().BytesReceived)
		})
	}
}

func TestBroadcastAndSendTo(t *testing.T) {
	h := newHub(t, testConfig(reactor.KindAuto))
	port := start(t, h)

	conns := make([]net.Conn, 3)
	for i := range conns {
		conns[i] = dialAdmitted(t, h, port)
	}

	assert.Equal(t, 3, h.Broadcast([]byte("hello")))
	for _, c := range conns {
		assert.Equal(t, "hello", string(readN(t, c, 5)))
	}

	ids := h.ConnectedClients()
	require.Len(t, ids, 3)
	assert.True(t, h.SendTo(ids[1].ID, []byte("only")))
	assert.Equal(t, "only", string(readN(t, conns[1], 4)))
	assert.False(t, h.SendTo(999999, []byte("nobody")))

	require.Eventually(t, func() bool {
		for _, c := range h.ConnectedClients() {
			if c.ID == ids[1].ID {
				return c.BytesSent == 9
			}
		}
		return false
	}, waitFor, tick)
	assert.Equal(t, uint64(4), h.Stats().MessagesSent)
}

func TestIdleTimeoutEvictsOnce(t *testing.T) {
	const slack = 150 * time.Millisecond
	cfg := testConfig(reactor.KindAuto)
	cfg.IdleTimeout = 100 * time.Millisecond
	h := newHub(t, cfg)

	var mu sync.Mutex
	var admitted, evicted time.Time
	disconnects := 0
	require.NoError(t, h.OnConnect(func(uint64, string) {
		mu.Lock()
		admitted = time.Now()
		mu.Unlock()
	}))
	require.NoError(t, h.OnDisconnect(func(uint64, string) {
		mu.Lock()
		evicted = time.Now()
		disconnects++
		mu.Unlock()
	}))
	port := start(t, h)

	c := dialAdmitted(t, h, port)
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, waitFor, tick)
	expectEOF(t, c)

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, disconnects)
	assert.LessOrEqual(t, evicted.Sub(admitted), cfg.IdleTimeout+cfg.SweepInterval+slack)
	assert.Equal(t, uint64(1), h.Stats().IdleEvictions)
}

func TestActivityDefersIdleEviction(t *testing.T) {
	cfg := testConfig(reactor.KindAuto)
	cfg.IdleTimeout = 200 * time.Millisecond
	h := newHub(t, cfg)
	port := start(t, h)

	c := dialAdmitted(t, h, port)
	for i := 0; i < 6; i++ {
		time.Sleep(80 * time.Millisecond)
		_, err := c.Write([]byte("ping"))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, h.ClientCount())
}

func TestPeerCloseFiresDisconnect(t *testing.T) {
	for _, kind := range backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHub(t, testConfig(kind))
			rec := newRecorder(t, h)
			port := start(t, h)

			c := dialAdmitted(t, h, port)
			id := h.ConnectedClients()[0].ID
			require.NoError(t, c.Close())

			require.Eventually(t, func() bool { return rec.disconnectCount() == 1 }, waitFor, tick)
			assert.Equal(t, 0, h.ClientCount())
			assert.False(t, h.IsClientConnected(id))
			assert.False(t, h.SendTo(id, []byte("gone")))
		})
	}
}

func TestStopClosesClientsAndNotifiesBeforeReturning(t *testing.T) {
	h := newHub(t, testConfig(reactor.KindAuto))
	rec := newRecorder(t, h)
	port := start(t, h)

	a := dialAdmitted(t, h, port)
	b := dialAdmitted(t, h, port)

	h.Stop()
	assert.Equal(t, 2, rec.disconnectCount())
	assert.Equal(t, 0, h.ClientCount())
	expectEOF(t, a)
	expectEOF(t, b)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, rec.disconnectCount())
}

func TestStopThenStartOnSamePort(t *testing.T) {
	h := newHub(t, testConfig(reactor.KindAuto))
	rec := newRecorder(t, h)
	port := start(t, h)

	first := dialAdmitted(t, h, port)
	h.Stop()
	expectEOF(t, first)

	require.NoError(t, h.Start(port))
	c := dialAdmitted(t, h, port)
	_, err := c.Write([]byte("again"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.connectIDs()) == 2 }, waitFor, tick)
	ids := rec.connectIDs()
	assert.Greater(t, ids[1], ids[0], "ids are unique for the hub's lifetime")
	require.Eventually(t, func() bool { return string(rec.received(ids[1])) == "again" }, waitFor, tick)

	require.NoError(t, h.Restart())
	assert.True(t, h.IsRunning())
	assert.Equal(t, port, h.Port())
}

func TestStopFromMessageHandler(t *testing.T) {
	for _, kind := range backends() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHub(t, testConfig(kind))
			var disconnects atomic.Int32
			var stopped atomic.Bool
			returned := make(chan struct{})
			require.NoError(t, h.OnDisconnect(func(uint64, string) { disconnects.Add(1) }))
			require.NoError(t, h.OnMessage(func(uint64, []byte) {
				if stopped.CompareAndSwap(false, true) {
					h.Stop()
					close(returned)
				}
			}))
			port := start(t, h)

			c := dialAdmitted(t, h, port)
			_, err := c.Write([]byte("stop"))
			require.NoError(t, err)

			select {
			case <-returned:
			case <-time.After(waitFor):
				t.Fatalf("Stop called from a message handler did not return; state=%s", h.State())
			}
			require.Eventually(t, func() bool { return h.State() == api.StateStopped }, waitFor, tick)
			assert.Equal(t, int32(1), disconnects.Load())
			assert.Equal(t, 0, h.Port())
			assert.Equal(t, 0, h.ClientCount())
			expectEOF(t, c)

			require.NoError(t, h.Start(port))
			assert.True(t, h.IsRunning())
		})
	}
}

func TestStopFromIdleEvictionHandler(t *testing.T) {
	cfg := testConfig(reactor.KindAuto)
	cfg.IdleTimeout = 300 * time.Millisecond
	h := newHub(t, cfg)
	var disconnects atomic.Int32
	var stopped atomic.Bool
	returned := make(chan struct{})
	require.NoError(t, h.OnDisconnect(func(uint64, string) {
		disconnects.Add(1)
		if stopped.CompareAndSwap(false, true) {
			h.Stop()
			close(returned)
		}
	}))
	port := start(t, h)

	a := dialAdmitted(t, h, port)
	b := dialAdmitted(t, h, port)

	select {
	case <-returned:
	case <-time.After(waitFor):
		t.Fatalf("Stop called from an eviction handler did not return; state=%s", h.State())
	}
	require.Eventually(t, func() bool { return h.State() == api.StateStopped }, waitFor, tick)
	assert.Equal(t, int32(2), disconnects.Load())
	expectEOF(t, a)
	expectEOF(t, b)
}

func TestStopFromDisconnectClientHandler(t *testing.T) {
	h := newHub(t, testConfig(reactor.KindAuto))
	var disconnects atomic.Int32
	var stopped atomic.Bool
	require.NoError(t, h.OnDisconnect(func(uint64, string) {
		disconnects.Add(1)
		if stopped.CompareAndSwap(false, true) {
			h.Stop()
		}
	}))
	port := start(t, h)
	dialAdmitted(t, h, port)
	dialAdmitted(t, h, port)
	id := h.ConnectedClients()[0].ID

	done := make(chan bool, 1)
	go func() { done <- h.DisconnectClient(id, "") }()
	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(waitFor):
		t.Fatalf("DisconnectClient whose handler stops the hub did not return; state=%s", h.State())
	}
	assert.Equal(t, api.StateStopped, h.State())
	assert.Equal(t, int32(2), disconnects.Load())
	assert.Equal(t, 0, h.ClientCount())
}

func TestHandlerPanicDoesNotStopLoop(t *testing.T) {
	h := newHub(t, testConfig(reactor.KindAuto))
	require.NoError(t, h.OnMessage(func(uint64, []byte) { panic("boom") }))
	port := start(t, h)

	c := dialAdmitted(t, h, port)
	_, err := c.Write([]byte("x"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.Stats().HandlerPanics == 1 }, waitFor, tick)

	require.NoError(t, h.OnMessage(func(id uint64, data []byte) {
		h.SendTo(id, data)
	}))
	other := dialAdmitted(t, h, port)
	_, err = other.Write([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(readN(t, other, 2)))
	assert.True(t, h.IsClientConnected(h.ConnectedClients()[0].ID))
}

func TestNilHandlersRejected(t *testing.T) {
	h := newHub(t, hub.DefaultConfig())
	for _, err := range []error{
		h.OnMessage(nil),
		h.OnConnect(nil),
		h.OnDisconnect(nil),
		h.OnError(nil),
	} {
		require.Error(t, err)
		assert.True(t, api.IsConfigurationError(err))
		assert.True(t, errors.Is(err, api.ErrNilHandler))
	}
}

func TestLastHandlerRegistrationWins(t *testing.T) {
	h := newHub(t, testConfig(reactor.KindAuto))
	var first, second atomic.Int32
	require.NoError(t, h.OnMessage(func(uint64, []byte) { first.Add(1) }))
	require.NoError(t, h.OnMessage(func(uint64, []byte) { second.Add(1) }))
	port := start(t, h)

	c := dialAdmitted(t, h, port)
	_, err := c.Write([]byte("x"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return second.Load() == 1 }, waitFor, tick)
	assert.Equal(t, int32(0), first.Load())
}

func TestMaxConnectionsRejectsExcess(t *testing.T) {
	cfg := testConfig(reactor.KindAuto)
	cfg.MaxConnections = 2
	h := newHub(t, cfg)
	port := start(t, h)

	dialAdmitted(t, h, port)
	dialAdmitted(t, h, port)
	extra := dial(t, port)

	expectEOF(t, extra)
	assert.Equal(t, 2, h.ClientCount())
	require.Eventually(t, func() bool { return h.Stats().RejectedConnections == 1 }, waitFor, tick)
}

func TestAcceptBurstWithSmallBatch(t *testing.T) {
	for _, kind := range backends() {
		t.Run(kind.String(), func(t *testing.T) {
			cfg := testConfig(kind)
			cfg.AcceptBatch = 2
			cfg.PollTimeout = time.Second
			h := newHub(t, cfg)
			port := start(t, h)

			addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
			var (
				wg    sync.WaitGroup
				mu    sync.Mutex
				conns []net.Conn
			)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					c, err := net.DialTimeout("tcp", addr, time.Second)
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					conns = append(conns, c)
					mu.Unlock()
				}()
			}
			wg.Wait()
			t.Cleanup(func() {
				for _, c := range conns {
					c.Close()
				}
			})
			require.Eventually(t, func() bool { return h.ClientCount() == 10 }, waitFor, tick)
		})
	}
}

func TestConcurrentOperations(t *testing.T) {
	h := newHub(t, testConfig(reactor.KindAuto))
	newRecorder(t, h)
	port := start(t, h)

	conns := make([]net.Conn, 5)
	for i := range conns {
		conns[i] = dialAdmitted(t, h, port)
	}
	// drain everything the hub sends so writers never stall
	for _, c := range conns {
		go io.Copy(io.Discard, c)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	worker := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					fn()
				}
			}
		}()
	}
	worker(func() { h.Broadcast([]byte("b")) })
	worker(func() {
		for _, c := range h.ConnectedClients() {
			h.SendTo(c.ID, []byte("s"))
		}
	})
	worker(func() { _ = h.ClientCount() })
	worker(func() { conns[0].Write([]byte("in")) })

	time.Sleep(100 * time.Millisecond)
	conns[4].Close()
	require.Eventually(t, func() bool { return h.ClientCount() == 4 }, waitFor, tick)
	close(stop)
	wg.Wait()
	assert.Len(t, h.ConnectedClients(), 4)
}

func TestDisconnectClient(t *testing.T) {
	h := newHub(t, testConfig(reactor.KindAuto))
	rec := newRecorder(t, h)
	port := start(t, h)

	c := dialAdmitted(t, h, port)
	id := h.ConnectedClients()[0].ID
	assert.True(t, h.IsClientConnected(id))

	assert.True(t, h.DisconnectClient(id, "kicked"))
	assert.False(t, h.DisconnectClient(id, "kicked"))
	assert.False(t, h.IsClientConnected(id))
	assert.Equal(t, 1, rec.disconnectCount())
	expectEOF(t, c)
}

func TestClientMetadata(t *testing.T) {
	h := newHub(t, testConfig(reactor.KindAuto))
	port := start(t, h)
	dialAdmitted(t, h, port)
	id := h.ConnectedClients()[0].ID

	assert.True(t, h.SetClientMetadata(id, "user", "alice"))
	v, ok := h.ClientMetadata(id, "user")
	assert.True(t, ok)
	assert.Equal(t, "alice", v)
	_, ok = h.ClientMetadata(id, "missing")
	assert.False(t, ok)
	assert.False(t, h.SetClientMetadata(424242, "user", "bob"))
}

func TestGroups(t *testing.T) {
	h := newHub(t, testConfig(reactor.KindAuto))
	port := start(t, h)

	a := dialAdmitted(t, h, port)
	b := dialAdmitted(t, h, port)
	clients := h.ConnectedClients()
	idA, idB := clients[0].ID, clients[1].ID

	err := h.AddToGroup(999999, "room")
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrClientNotFound))
	assert.True(t, api.IsConfigurationError(h.AddToGroup(idA, "")))

	created, err := h.CreateGroup("lobby")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = h.CreateGroup("lobby")
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, h.AddToGroup(idA, "room"))
	assert.Equal(t, []string{"lobby", "room"}, h.Groups())
	assert.Equal(t, []uint64{idA}, h.GroupMembers("room"))

	assert.Equal(t, 1, h.BroadcastToGroup("room", []byte("hi")))
	assert.Equal(t, "hi", string(readN(t, a, 2)))

	require.NoError(t, h.AddToGroup(idB, "room"))
	assert.True(t, h.RemoveFromGroup(idB, "room"))
	assert.False(t, h.RemoveFromGroup(idB, "room"))

	require.NoError(t, h.AddToGroup(idB, "room"))
	require.NoError(t, b.Close())
	require.Eventually(t, func() bool { return len(h.GroupMembers("room")) == 1 }, waitFor, tick)
	assert.Equal(t, []uint64{idA}, h.GroupMembers("room"))
}

func TestPerIPConnectionLimit(t *testing.T) {
	cfg := testConfig(reactor.KindAuto)
	cfg.MaxConnectionsPerIP = 1
	h := newHub(t, cfg)
	port := start(t, h)

	first := dialAdmitted(t, h, port)
	second := dial(t, port)
	expectEOF(t, second)
	assert.Equal(t, 1, h.ClientCount())

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, waitFor, tick)
	dialAdmitted(t, h, port)
}

func TestMessageRateLimitDropsExcess(t *testing.T) {
	cfg := testConfig(reactor.KindAuto)
	cfg.MaxMessagesPerMinute = 1
	h := newHub(t, cfg)
	rec := newRecorder(t, h)
	port := start(t, h)

	c := dialAdmitted(t, h, port)
	id := h.ConnectedClients()[0].ID
	_, err := c.Write([]byte("a"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return string(rec.received(id)) == "a" }, waitFor, tick)

	_, err = c.Write([]byte("b"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.Stats().DroppedMessages == 1 }, waitFor, tick)
	assert.Equal(t, "a", string(rec.received(id)))
}

type fakePublisher struct {
	mu     sync.Mutex
	events []api.Event
}

func (p *fakePublisher) Publish(ev api.Event) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) snapshot() []api.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]api.Event(nil), p.events...)
}

func TestPublisherReceivesLifecycleEvents(t *testing.T) {
	pub := &fakePublisher{}
	h := newHub(t, testConfig(reactor.KindAuto), hub.WithPublisher(pub))
	port := start(t, h)

	c := dialAdmitted(t, h, port)
	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return len(pub.snapshot()) == 2 }, waitFor, tick)

	evs := pub.snapshot()
	assert.Equal(t, api.EventConnect, evs[0].Kind)
	assert.Equal(t, api.EventDisconnect, evs[1].Kind)
	assert.Equal(t, evs[0].ClientID, evs[1].ClientID)
	assert.Equal(t, h.InstanceID, evs[0].Hub)
	assert.Equal(t, "peer closed", evs[1].Reason)
}

func TestSetClientTimeout(t *testing.T) {
	h := newHub(t, hub.DefaultConfig())
	assert.Equal(t, 60*time.Second, h.ClientTimeout())
	h.SetClientTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, h.ClientTimeout())
	h.SetClientTimeout(-time.Second)
	assert.Equal(t, time.Duration(0), h.ClientTimeout())
}

func TestSetClientTimeoutWhileRunning(t *testing.T) {
	cfg := testConfig(reactor.KindAuto)
	cfg.IdleTimeout = 0
	h := newHub(t, cfg)
	port := start(t, h)

	dialAdmitted(t, h, port)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, h.ClientCount())

	h.SetClientTimeout(50 * time.Millisecond)
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, waitFor, tick)
}
