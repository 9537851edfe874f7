// File: hub/sweeper.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package hub

import (
	"time"

	"github.com/momentics/sockethub/internal/logger"
)

// sweeper evicts clients idle for longer than the hub's client timeout.
type sweeper struct {
	h    *Hub
	inst *instance
	log  *logger.Logger
}

func newSweeper(h *Hub, inst *instance) *sweeper {
	return &sweeper{h: h, inst: inst, log: h.baseLog.Component("sweeper")}
}

func (s *sweeper) run() {
	defer s.inst.wg.Done()
	self := goroutineID()
	s.h.calls.addBackground(self)
	defer s.h.leaveBackground(s.inst, self)
	ticker := time.NewTicker(s.h.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.inst.stop:
			return
		case now := <-ticker.C:
			s.sweep(now)
			s.h.limiter.Prune()
		}
	}
}

// sweep closes every client whose last activity is older than the timeout.
// Candidates are collected from a snapshot so no registry lock is held while
// handlers run.
func (s *sweeper) sweep(now time.Time) int {
	timeout := s.h.ClientTimeout()
	if timeout <= 0 {
		return 0
	}
	evicted := 0
	for _, c := range s.h.registry.Snapshot() {
		if now.Sub(c.LastActivity()) <= timeout {
			continue
		}
		if s.h.closeClient(c, "idle timeout", nil) {
			s.h.idleEvictions.Add(1)
			evicted++
		}
	}
	if evicted > 0 {
		s.log.Zerolog().Info().Int("evicted", evicted).Dur("timeout", timeout).Msg("idle clients evicted")
	}
	return evicted
}
