// File: hub/eventloop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-goroutine acceptor and read dispatcher.

package hub

import (
	"errors"
	"time"

	"github.com/momentics/sockethub/affinity"
	"github.com/momentics/sockethub/api"
	"github.com/momentics/sockethub/internal/logger"
	"github.com/momentics/sockethub/internal/sockets"
	"github.com/momentics/sockethub/reactor"
)

// eventLoop multiplexes the listener and all client sockets of one instance.
// Only its goroutine accepts, reads and fires message handlers, so reads on a
// given client are delivered in arrival order.
type eventLoop struct {
	h      *Hub
	inst   *instance
	log    *logger.Logger
	events []reactor.Event

	// acceptPending is set when an edge-triggered accept batch hit its cap
	// with the backlog possibly non-empty; the listener is retried on the next
	// iteration without blocking.
	acceptPending bool
	// acceptRetry is set after a temporary accept failure under edge
	// triggering; the listener is retried after a regular wait.
	acceptRetry bool
}

func newEventLoop(h *Hub, inst *instance) *eventLoop {
	return &eventLoop{
		h:      h,
		inst:   inst,
		log:    h.baseLog.Component("eventloop"),
		events: make([]reactor.Event, h.cfg.MaxEvents),
	}
}

func (l *eventLoop) run() {
	defer l.inst.wg.Done()
	self := goroutineID()
	l.h.calls.addBackground(self)
	defer l.h.leaveBackground(l.inst, self)

	release, err := affinity.PinCurrentGoroutine(l.h.cfg.LoopCPU)
	defer release()
	if err != nil {
		l.log.Zerolog().Warn().Err(err).Int("cpu", l.h.cfg.LoopCPU).Msg("cpu pinning unavailable, continuing unpinned")
	}

	pollTimeout := l.h.cfg.PollTimeout
	for {
		select {
		case <-l.inst.stop:
			return
		default:
		}

		wait := pollTimeout
		if l.acceptPending {
			wait = 0
		}
		n, err := l.inst.src.Wait(l.events, wait)
		if err != nil {
			l.log.Zerolog().Error().Err(err).Msg("readiness wait failed")
			select {
			case <-l.inst.stop:
				return
			case <-time.After(pollTimeout):
			}
			continue
		}

		listenerSeen := false
		for i := 0; i < n; i++ {
			ev := l.events[i]
			if ev.Fd == l.inst.lfd {
				listenerSeen = true
				l.acceptBatch()
				continue
			}
			l.serviceRead(ev)
		}
		if (l.acceptPending || l.acceptRetry) && !listenerSeen {
			l.acceptBatch()
		}
	}
}

// acceptBatch accepts until the backlog is empty or AcceptBatch connections
// were taken in this pass.
func (l *eventLoop) acceptBatch() {
	l.acceptPending = false
	l.acceptRetry = false
	limit := l.h.cfg.AcceptBatch
	for taken := 0; limit == 0 || taken < limit; taken++ {
		nfd, addr, err := sockets.Accept(l.inst.lfd)
		if err != nil {
			switch {
			case sockets.IsWouldBlock(err):
				return
			case sockets.IsInterrupted(err):
				continue
			case sockets.IsTemporaryAccept(err):
				l.log.Zerolog().Warn().Err(err).Msg("accept failed, retrying on next wake-up")
				l.acceptRetry = l.inst.src.EdgeTriggered()
			default:
				l.log.Zerolog().Error().Err(err).Msg("accept failed")
			}
			return
		}
		l.admit(nfd, addr)
	}
	if l.inst.src.EdgeTriggered() {
		l.acceptPending = true
	}
}

func (l *eventLoop) admit(nfd int, addr string) {
	h := l.h
	host := hostOf(addr)

	if h.registry.Len() >= h.cfg.MaxConnections {
		l.reject(nfd, addr, "max connections reached")
		return
	}
	if !h.limiter.AcquireConnection(host) {
		l.reject(nfd, addr, "per-ip connection limit reached")
		return
	}
	if err := sockets.SetNoDelay(nfd); err != nil {
		l.log.Zerolog().Debug().Err(err).Str("addr", addr).Msg("TCP_NODELAY not applied")
	}

	id := h.nextID.Add(1)
	c := newClientConnection(id, nfd, addr, h.cfg.WriteTimeout, l.detach)
	if err := l.inst.src.Add(nfd); err != nil {
		h.limiter.ReleaseConnection(host)
		sockets.Close(nfd)
		h.rejected.Add(1)
		l.log.Zerolog().Error().Err(err).Str("addr", addr).Msg("registering client with reactor")
		return
	}
	h.registry.Insert(c)
	h.totalConns.Add(1)

	l.log.Zerolog().Debug().Uint64("client_id", id).Str("addr", addr).Msg("client connected")
	h.publish(api.EventConnect, c, "")
	h.handlers.fireConnect(id, addr)
}

func (l *eventLoop) reject(nfd int, addr, reason string) {
	sockets.Close(nfd)
	l.h.rejected.Add(1)
	l.log.Zerolog().Warn().Str("addr", addr).Str("reason", reason).Msg("connection rejected")
}

func (l *eventLoop) detach(fd int) {
	if err := l.inst.src.Remove(fd); err != nil {
		l.log.Zerolog().Debug().Err(err).Int("fd", fd).Msg("reactor remove")
	}
}

// serviceRead handles a readiness event for a client socket. Edge-triggered
// sources are drained until would-block; level-triggered ones get one read per
// wake-up.
func (l *eventLoop) serviceRead(ev reactor.Event) {
	c, ok := l.h.registry.ByFD(ev.Fd)
	if !ok {
		return
	}
	buf := l.h.bufPool.Get()
	defer l.h.bufPool.Put(buf)

	drain := l.inst.src.EdgeTriggered()
	for {
		n, err := c.read(buf)
		switch {
		case n > 0:
			l.deliver(c, buf[:n])
			if !drain {
				return
			}
		case err == nil:
			l.h.closeClient(c, "peer closed", nil)
			return
		case errors.Is(err, errConnClosed):
			return
		case sockets.IsWouldBlock(err):
			if ev.Hangup && !ev.Readable {
				l.h.closeClient(c, "peer hung up", nil)
			}
			return
		default:
			l.h.closeClient(c, "read error", err)
			return
		}
	}
}

func (l *eventLoop) deliver(c *ClientConnection, chunk []byte) {
	h := l.h
	c.recordReceived(len(chunk))
	h.bytesIn.Add(uint64(len(chunk)))
	h.messagesIn.Add(1)
	if !h.limiter.AllowMessage(c.host) {
		h.dropped.Add(1)
		l.log.Zerolog().Debug().Uint64("client_id", c.id).Int("bytes", len(chunk)).Msg("message dropped by rate limit")
		return
	}
	h.handlers.fireMessage(c.id, chunk)
}
