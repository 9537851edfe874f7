// File: hub/reentry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Tracks the goroutines that invoke handlers so Start and Stop called from a
// handler never wait on the goroutine they are running on.

package hub

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// goroutineID returns the runtime id of the calling goroutine, parsed from the
// "goroutine N [" header of its stack trace.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseInt(string(b), 10, 64)
	return id
}

// callers records which goroutines can be running a handler: the event loop
// and sweeper, goroutines inside DisconnectClient, and the goroutine tearing
// an instance down.
type callers struct {
	mu         sync.Mutex
	idle       *sync.Cond
	background map[int64]struct{}
	firing     map[int64]int
	teardown   int64
}

func newCallers() *callers {
	c := &callers{
		background: make(map[int64]struct{}),
		firing:     make(map[int64]int),
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

func (c *callers) addBackground(id int64) {
	c.mu.Lock()
	c.background[id] = struct{}{}
	c.mu.Unlock()
}

func (c *callers) removeBackground(id int64) {
	c.mu.Lock()
	delete(c.background, id)
	c.mu.Unlock()
}

func (c *callers) isBackground(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.background[id]
	return ok
}

// enter marks id as closing a client from outside the background goroutines.
func (c *callers) enter(id int64) {
	c.mu.Lock()
	c.firing[id]++
	c.mu.Unlock()
}

func (c *callers) leave(id int64) {
	c.mu.Lock()
	if c.firing[id]--; c.firing[id] <= 0 {
		delete(c.firing, id)
	}
	c.idle.Broadcast()
	c.mu.Unlock()
}

// waitIdle blocks until no goroutine other than self is between enter and
// leave.
func (c *callers) waitIdle(self int64) {
	c.mu.Lock()
	for len(c.firing) > 1 || (len(c.firing) == 1 && c.firing[self] == 0) {
		c.idle.Wait()
	}
	c.mu.Unlock()
}

func (c *callers) beginTeardown(id int64) {
	c.mu.Lock()
	c.teardown = id
	c.mu.Unlock()
}

func (c *callers) endTeardown() {
	c.mu.Lock()
	c.teardown = 0
	c.mu.Unlock()
}

// reentrant reports whether id is currently able to be inside a handler, in
// which case lifecycle calls must not wait for a stop to complete.
func (c *callers) reentrant(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.background[id]; ok {
		return true
	}
	return c.firing[id] > 0 || (c.teardown != 0 && c.teardown == id)
}
