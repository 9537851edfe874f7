// File: hub/groups.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Named client groups for targeted fan-out.

package hub

import (
	"sort"
	"sync"
)

// Groups maps group names to member client ids.
type Groups struct {
	mu      sync.RWMutex
	members map[string]map[uint64]struct{}
}

// NewGroups creates an empty group table.
func NewGroups() *Groups {
	return &Groups{members: make(map[string]map[uint64]struct{})}
}

// Create registers name with no members. It reports false if name exists.
func (g *Groups) Create(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.members[name]; ok {
		return false
	}
	g.members[name] = make(map[uint64]struct{})
	return true
}

// Add puts id into name, creating the group if needed.
func (g *Groups) Add(name string, id uint64) {
	g.mu.Lock()
	set, ok := g.members[name]
	if !ok {
		set = make(map[uint64]struct{})
		g.members[name] = set
	}
	set[id] = struct{}{}
	g.mu.Unlock()
}

// Remove takes id out of name. Empty groups are kept.
func (g *Groups) Remove(name string, id uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.members[name]
	if !ok {
		return false
	}
	if _, ok := set[id]; !ok {
		return false
	}
	delete(set, id)
	return true
}

// Members returns the ids in name, ascending.
func (g *Groups) Members(name string) []uint64 {
	g.mu.RLock()
	set := g.members[name]
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Names returns all group names, sorted.
func (g *Groups) Names() []string {
	g.mu.RLock()
	out := make([]string, 0, len(g.members))
	for name := range g.members {
		out = append(out, name)
	}
	g.mu.RUnlock()
	sort.Strings(out)
	return out
}

// dropClient removes id from every group.
func (g *Groups) dropClient(id uint64) {
	g.mu.Lock()
	for _, set := range g.members {
		delete(set, id)
	}
	g.mu.Unlock()
}
