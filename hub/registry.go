// File: hub/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrent id -> connection map with an fd index for the event loop.

package hub

import (
	"net"
	"sort"
	"sync"
)

// Registry tracks live connections. Readers (broadcast, enumeration, lookup)
// share the lock; insert and remove take it exclusively.
type Registry struct {
	mu   sync.RWMutex
	byID map[uint64]*ClientConnection
	byFD map[int]uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[uint64]*ClientConnection),
		byFD: make(map[int]uint64),
	}
}

// Insert adds c, replacing any stale fd mapping.
func (r *Registry) Insert(c *ClientConnection) {
	r.mu.Lock()
	r.byID[c.id] = c
	r.byFD[c.fd] = c.id
	r.mu.Unlock()
}

// Remove deletes id and returns the connection it held. The fd index entry is
// only dropped while it still points at id; the number may already belong to
// a newer socket.
func (r *Registry) Remove(id uint64) (*ClientConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	if cur, ok := r.byFD[c.fd]; ok && cur == id {
		delete(r.byFD, c.fd)
	}
	return c, true
}

// Get looks up a connection by id.
func (r *Registry) Get(id uint64) (*ClientConnection, bool) {
	r.mu.RLock()
	c, ok := r.byID[id]
	r.mu.RUnlock()
	return c, ok
}

// ByFD looks up a connection by socket descriptor.
func (r *Registry) ByFD(fd int) (*ClientConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byFD[fd]
	if !ok {
		return nil, false
	}
	c, ok := r.byID[id]
	return c, ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	n := len(r.byID)
	r.mu.RUnlock()
	return n
}

// Snapshot returns the registered connections ordered by id.
func (r *Registry) Snapshot() []*ClientConnection {
	r.mu.RLock()
	out := make([]*ClientConnection, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Range applies fn to every connection under the read lock. fn must not
// insert or remove.
func (r *Registry) Range(fn func(*ClientConnection)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byID {
		fn(c)
	}
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
