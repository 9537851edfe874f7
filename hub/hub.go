// File: hub/hub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Hub façade: lifecycle, fan-out and queries over the connection registry.

package hub

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/momentics/sockethub/api"
	"github.com/momentics/sockethub/internal/logger"
	"github.com/momentics/sockethub/internal/sockets"
	"github.com/momentics/sockethub/pool"
	"github.com/momentics/sockethub/reactor"
	"github.com/rs/zerolog"
)

// instance is the state of one Start..Stop cycle.
type instance struct {
	port int
	lfd  int
	src  reactor.EventSource
	stop chan struct{}
	done chan struct{} // closed once teardown completes
	wg   sync.WaitGroup

	live     atomic.Int32 // background goroutines not yet exited
	deferred atomic.Bool  // Stop ran on a background goroutine
}

// Hub accepts TCP clients on one port, delivers their inbound bytes to the
// registered message handler and fans data out to them.
type Hub struct {
	// InstanceID tags log lines and published events from this hub.
	InstanceID string

	cfg       Config
	baseLog   *logger.Logger
	log       *logger.Logger
	publisher api.Publisher

	registry *Registry
	handlers *HandlerRegistry
	groups   *Groups
	limiter  *RateLimiter
	bufPool  *pool.BufferPool

	nextID      atomic.Uint64
	idleTimeout atomic.Int64
	state       atomic.Int32
	port        atomic.Int32

	// lifeMu guards state transitions, run and lastPort. It is never held
	// while waiting for goroutines or running handlers.
	lifeMu   sync.Mutex
	run      *instance
	lastPort int

	calls *callers

	totalConns    atomic.Uint64
	rejected      atomic.Uint64
	bytesIn       atomic.Uint64
	bytesOut      atomic.Uint64
	messagesIn    atomic.Uint64
	messagesOut   atomic.Uint64
	dropped       atomic.Uint64
	idleEvictions atomic.Uint64
	startedAt     atomic.Int64
}

// New builds a stopped hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		InstanceID: uuid.New().String(),
		cfg:        DefaultConfig(),
		log:        logger.Nop(),
		registry:   NewRegistry(),
		groups:     NewGroups(),
		calls:      newCallers(),
	}
	for _, o := range opts {
		o(h)
	}
	h.baseLog = h.log.WithField("hub_id", h.InstanceID)
	h.log = h.baseLog.Component("hub")
	h.handlers = NewHandlerRegistry(h.log)
	h.limiter = NewRateLimiter(h.cfg.MaxConnectionsPerIP, h.cfg.MaxMessagesPerMinute)
	h.bufPool = pool.NewBufferPool(h.cfg.BufferSize, h.cfg.PoolCapacity)
	h.idleTimeout.Store(int64(h.cfg.IdleTimeout))
	h.lastPort = h.cfg.Port
	return h
}

// Config returns the configuration the hub was built with.
func (h *Hub) Config() Config { return h.cfg }

// Start binds port and launches the event loop and idle sweeper. It is a
// no-op when the hub is already running.
func (h *Hub) Start(port int) error {
	if err := ValidatePort(port); err != nil {
		return err
	}
	h.awaitStop(goroutineID())
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()

	if !h.state.CompareAndSwap(int32(api.StateStopped), int32(api.StateStarting)) {
		h.log.Zerolog().Warn().Int("port", port).Str("state", h.State().String()).Msg("start ignored, hub not stopped")
		return nil
	}
	if err := h.cfg.Validate(); err != nil {
		h.state.Store(int32(api.StateStopped))
		return err
	}

	lfd, err := sockets.Listen(port, h.cfg.Backlog, h.cfg.ReuseAddr)
	if err != nil {
		h.state.Store(int32(api.StateStopped))
		return api.NewResourceError("listen", err).WithContext("port", port)
	}
	src, err := reactor.New(h.cfg.Reactor)
	if err != nil {
		sockets.Close(lfd)
		h.state.Store(int32(api.StateStopped))
		return api.NewResourceError("reactor", err).WithContext("backend", h.cfg.Reactor.String())
	}
	if err := src.Add(lfd); err != nil {
		src.Close()
		sockets.Close(lfd)
		h.state.Store(int32(api.StateStopped))
		return api.NewResourceError("reactor add listener", err)
	}

	bound, err := sockets.LocalPort(lfd)
	if err != nil {
		bound = port
	}
	inst := &instance{port: bound, lfd: lfd, src: src, stop: make(chan struct{}), done: make(chan struct{})}
	h.run = inst
	h.lastPort = port
	h.port.Store(int32(port))
	h.startedAt.Store(time.Now().UnixNano())

	loop := newEventLoop(h, inst)
	sw := newSweeper(h, inst)
	inst.wg.Add(2)
	inst.live.Store(2)
	go loop.run()
	go sw.run()

	h.state.Store(int32(api.StateRunning))
	h.log.Zerolog().Info().
		Int("port", bound).
		Str("reactor", h.cfg.Reactor.String()).
		Bool("edge_triggered", src.EdgeTriggered()).
		Msg("hub started")
	return nil
}

// Stop halts the background goroutines, closes every client (firing the
// disconnect handler for each) and releases the listener. It is idempotent and
// callable from any goroutine, handlers included. Once it returns no handler
// is invoked, except when it is called from a handler running on the event
// loop or sweeper: that goroutine cannot wait for itself, so Stop returns at
// once and the teardown completes when the background goroutines exit.
func (h *Hub) Stop() {
	self := goroutineID()
	h.lifeMu.Lock()
	inst := h.run
	if inst == nil {
		h.lifeMu.Unlock()
		return
	}
	if !h.state.CompareAndSwap(int32(api.StateRunning), int32(api.StateStopping)) {
		h.lifeMu.Unlock()
		// another caller is already stopping this instance
		if !h.calls.reentrant(self) {
			<-inst.done
		}
		return
	}
	close(inst.stop)
	h.lifeMu.Unlock()

	if h.calls.isBackground(self) {
		inst.deferred.Store(true)
		h.log.Zerolog().Info().Int("port", inst.port).Msg("stop requested from handler, finishing in background")
		return
	}
	inst.wg.Wait()
	h.teardown(inst, self)
}

// awaitStop blocks until an in-progress stop has finished, unless the caller
// may itself be part of that stop.
func (h *Hub) awaitStop(self int64) {
	h.lifeMu.Lock()
	inst := h.run
	stopping := inst != nil && h.State() == api.StateStopping
	h.lifeMu.Unlock()
	if stopping && !h.calls.reentrant(self) {
		<-inst.done
	}
}

// leaveBackground runs as the event loop or sweeper exits. The last one out
// finishes a stop that was requested from one of their handlers.
func (h *Hub) leaveBackground(inst *instance, self int64) {
	h.calls.removeBackground(self)
	if inst.live.Add(-1) == 0 && inst.deferred.Load() {
		h.teardown(inst, self)
	}
}

// teardown closes the remaining clients and releases the instance. The
// background goroutines have exited when it runs.
func (h *Hub) teardown(inst *instance, self int64) {
	h.calls.beginTeardown(self)
	defer h.calls.endTeardown()

	for _, c := range h.registry.Snapshot() {
		h.closeClient(c, "hub stopped", nil)
	}
	// DisconnectClient calls already past their claim finish notifying
	h.calls.waitIdle(self)

	if err := inst.src.Close(); err != nil {
		h.log.Zerolog().Warn().Err(err).Msg("closing reactor")
	}
	if err := sockets.Close(inst.lfd); err != nil {
		h.log.Zerolog().Warn().Err(err).Msg("closing listener")
	}
	h.lifeMu.Lock()
	h.run = nil
	h.port.Store(0)
	h.state.Store(int32(api.StateStopped))
	h.lifeMu.Unlock()
	close(inst.done)
	h.log.Zerolog().Info().Int("port", inst.port).Msg("hub stopped")
}

// Restart stops the hub and starts it again on the last port it ran on, or
// Config.Port if it never ran. Called from a handler it only stops: the start
// is ignored while that stop is still in progress.
func (h *Hub) Restart() error {
	h.Stop()
	h.lifeMu.Lock()
	port := h.lastPort
	h.lifeMu.Unlock()
	return h.Start(port)
}

// State returns the lifecycle state.
func (h *Hub) State() api.State { return api.State(h.state.Load()) }

// IsRunning reports whether the hub is accepting clients.
func (h *Hub) IsRunning() bool { return h.State() == api.StateRunning }

// Port returns the listening port while running and 0 otherwise.
func (h *Hub) Port() int { return int(h.port.Load()) }

// OnMessage sets the handler receiving inbound chunks.
func (h *Hub) OnMessage(fn api.MessageHandler) error { return h.handlers.SetMessage(fn) }

// OnConnect sets the handler invoked for each admitted client.
func (h *Hub) OnConnect(fn api.ConnectHandler) error { return h.handlers.SetConnect(fn) }

// OnDisconnect sets the handler invoked once per departing client.
func (h *Hub) OnDisconnect(fn api.DisconnectHandler) error { return h.handlers.SetDisconnect(fn) }

// OnError sets the handler receiving I/O errors that ended a connection.
func (h *Hub) OnError(fn api.ErrorHandler) error { return h.handlers.SetError(fn) }

// Broadcast sends data to every connected client and returns how many sends
// succeeded.
func (h *Hub) Broadcast(data []byte) int {
	return h.sendAll(h.registry.Snapshot(), data)
}

// SendTo sends data to one client.
func (h *Hub) SendTo(id uint64, data []byte) bool {
	c, ok := h.registry.Get(id)
	if !ok {
		return false
	}
	return h.send(c, data)
}

func (h *Hub) send(c *ClientConnection, data []byte) bool {
	if !c.Send(data) {
		return false
	}
	h.bytesOut.Add(uint64(len(data)))
	h.messagesOut.Add(1)
	return true
}

func (h *Hub) sendAll(conns []*ClientConnection, data []byte) int {
	sent := 0
	for _, c := range conns {
		if h.send(c, data) {
			sent++
		}
	}
	return sent
}

// ConnectedClients lists the registered clients ordered by id.
func (h *Hub) ConnectedClients() []api.ClientInfo {
	out := make([]api.ClientInfo, 0, h.registry.Len())
	h.registry.Range(func(c *ClientConnection) {
		if c.IsConnected() {
			out = append(out, c.Info())
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int { return h.registry.Len() }

// SetClientTimeout changes the idle timeout; zero disables eviction and
// negative values are treated as zero. It applies to a running hub from the
// next sweep.
func (h *Hub) SetClientTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	h.idleTimeout.Store(int64(d))
	h.log.Zerolog().Debug().Dur("idle_timeout", d).Msg("client timeout updated")
}

// ClientTimeout returns the current idle timeout.
func (h *Hub) ClientTimeout() time.Duration { return time.Duration(h.idleTimeout.Load()) }

// DisconnectClient force-closes one client. It reports whether this call
// closed it.
func (h *Hub) DisconnectClient(id uint64, reason string) bool {
	self := goroutineID()
	h.calls.enter(self)
	defer h.calls.leave(self)

	c, ok := h.registry.Get(id)
	if !ok {
		return false
	}
	if reason == "" {
		reason = "disconnected by server"
	}
	return h.closeClient(c, reason, nil)
}

// IsClientConnected reports whether id is registered and live.
func (h *Hub) IsClientConnected(id uint64) bool {
	c, ok := h.registry.Get(id)
	return ok && c.IsConnected()
}

// SetClientMetadata attaches key=value to a client.
func (h *Hub) SetClientMetadata(id uint64, key, value string) bool {
	c, ok := h.registry.Get(id)
	if !ok {
		return false
	}
	c.SetMetadata(key, value)
	return true
}

// ClientMetadata reads a value set with SetClientMetadata.
func (h *Hub) ClientMetadata(id uint64, key string) (string, bool) {
	c, ok := h.registry.Get(id)
	if !ok {
		return "", false
	}
	return c.Metadata(key)
}

// CreateGroup registers an empty group. It reports false if name exists.
func (h *Hub) CreateGroup(name string) (bool, error) {
	if name == "" {
		return false, api.NewConfigurationError("group name must not be empty", api.ErrInvalidArgument)
	}
	return h.groups.Create(name), nil
}

// AddToGroup puts a connected client into a group, creating it on demand.
func (h *Hub) AddToGroup(id uint64, name string) error {
	if name == "" {
		return api.NewConfigurationError("group name must not be empty", api.ErrInvalidArgument)
	}
	c, ok := h.registry.Get(id)
	if !ok || !c.IsConnected() {
		return api.NewClientNotFoundError(id)
	}
	h.groups.Add(name, id)
	// a disconnect racing the insert may already have swept the groups
	if !c.IsConnected() {
		h.groups.Remove(name, id)
		return api.NewClientNotFoundError(id)
	}
	return nil
}

// RemoveFromGroup takes a client out of a group.
func (h *Hub) RemoveFromGroup(id uint64, name string) bool {
	return h.groups.Remove(name, id)
}

// BroadcastToGroup sends data to every connected member of name.
func (h *Hub) BroadcastToGroup(name string, data []byte) int {
	ids := h.groups.Members(name)
	conns := make([]*ClientConnection, 0, len(ids))
	for _, id := range ids {
		if c, ok := h.registry.Get(id); ok {
			conns = append(conns, c)
		}
	}
	return h.sendAll(conns, data)
}

// Groups lists group names.
func (h *Hub) Groups() []string { return h.groups.Names() }

// GroupMembers lists the client ids in name.
func (h *Hub) GroupMembers(name string) []uint64 { return h.groups.Members(name) }

// Stats returns hub counters.
func (h *Hub) Stats() api.Stats {
	var started time.Time
	if ns := h.startedAt.Load(); ns != 0 {
		started = time.Unix(0, ns)
	}
	return api.Stats{
		TotalConnections:    h.totalConns.Load(),
		ActiveConnections:   h.registry.Len(),
		RejectedConnections: h.rejected.Load(),
		BytesReceived:       h.bytesIn.Load(),
		BytesSent:           h.bytesOut.Load(),
		MessagesReceived:    h.messagesIn.Load(),
		MessagesSent:        h.messagesOut.Load(),
		DroppedMessages:     h.dropped.Load(),
		IdleEvictions:       h.idleEvictions.Load(),
		HandlerPanics:       h.handlers.Panics(),
		StartedAt:           started,
	}
}

// PoolStats returns receive buffer pool counters.
func (h *Hub) PoolStats() pool.Stats { return h.bufPool.Stats() }

// closeClient is the single teardown path. Only the caller that wins the
// connection's disconnect claim unregisters it and notifies.
func (h *Hub) closeClient(c *ClientConnection, reason string, cause error) bool {
	if !c.Disconnect() {
		return false
	}
	h.registry.Remove(c.id)
	h.groups.dropClient(c.id)
	h.limiter.ReleaseConnection(c.host)

	lvl := zerolog.DebugLevel
	if cause != nil {
		lvl = zerolog.WarnLevel
	}
	h.log.Zerolog().WithLevel(lvl).Err(cause).Uint64("client_id", c.id).Str("addr", c.addr).Str("reason", reason).Msg("client disconnected")

	if cause != nil {
		h.handlers.fireError(c.id, cause)
	}
	h.publish(api.EventDisconnect, c, reason)
	h.handlers.fireDisconnect(c.id, c.addr)
	return true
}

func (h *Hub) publish(kind api.EventKind, c *ClientConnection, reason string) {
	if h.publisher == nil {
		return
	}
	err := h.publisher.Publish(api.Event{
		Hub:      h.InstanceID,
		Kind:     kind,
		ClientID: c.id,
		Address:  c.addr,
		Reason:   reason,
		At:       time.Now(),
	})
	if err != nil {
		h.log.Zerolog().Warn().Err(err).Str("kind", string(kind)).Uint64("client_id", c.id).Msg("publish event")
	}
}
