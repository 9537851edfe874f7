// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug handler and probe reflector for internal inspection.

package control

import (
	"sync"

	"github.com/momentics/sockethub/hub"
)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts a named debug hook.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any)
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}

// RegisterHubProbes exposes live hub state.
func RegisterHubProbes(dp *DebugProbes, h *hub.Hub) {
	dp.RegisterProbe("hub.id", func() any { return h.InstanceID })
	dp.RegisterProbe("hub.state", func() any { return h.State().String() })
	dp.RegisterProbe("hub.clients", func() any { return h.ConnectedClients() })
	dp.RegisterProbe("hub.groups", func() any {
		out := make(map[string][]uint64)
		for _, g := range h.Groups() {
			out[g] = h.GroupMembers(g)
		}
		return out
	})
	dp.RegisterProbe("hub.pool", func() any { return h.PoolStats() })
	dp.RegisterProbe("hub.client_timeout", func() any { return h.ClientTimeout().String() })
}
