// File: hub/limiter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-IP admission and message-rate limiting.

package hub

import (
	"sync"
	"time"
)

const messageWindow = time.Minute

// RateLimiter caps concurrent connections and messages per minute for each
// remote IP. A zero limit disables that check.
type RateLimiter struct {
	mu          sync.Mutex
	maxConns    int
	maxMessages int
	conns       map[string]int
	history     map[string][]time.Time
	now         func() time.Time
}

// NewRateLimiter creates a limiter; zero values disable the respective cap.
func NewRateLimiter(maxConnsPerIP, maxMessagesPerMinute int) *RateLimiter {
	return &RateLimiter{
		maxConns:    maxConnsPerIP,
		maxMessages: maxMessagesPerMinute,
		conns:       make(map[string]int),
		history:     make(map[string][]time.Time),
		now:         time.Now,
	}
}

// AcquireConnection reserves a connection slot for host.
func (l *RateLimiter) AcquireConnection(host string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.maxConns > 0 && l.conns[host] >= l.maxConns {
		return false
	}
	l.conns[host]++
	return true
}

// ReleaseConnection frees a slot taken by AcquireConnection.
func (l *RateLimiter) ReleaseConnection(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.conns[host]
	if !ok {
		return
	}
	if n <= 1 {
		// history outlives the connection so reconnecting does not reset
		// the window
		delete(l.conns, host)
		l.trim(host, l.now().Add(-messageWindow))
		return
	}
	l.conns[host] = n - 1
}

// Prune drops message history that has aged out of the window for hosts with
// no open connection.
func (l *RateLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-messageWindow)
	for host := range l.history {
		if l.conns[host] == 0 {
			l.trim(host, cutoff)
		}
	}
}

// trim removes entries older than cutoff. Callers hold l.mu.
func (l *RateLimiter) trim(host string, cutoff time.Time) []time.Time {
	times := l.history[host]
	keep := 0
	for keep < len(times) && times[keep].Before(cutoff) {
		keep++
	}
	times = times[keep:]
	if len(times) == 0 {
		delete(l.history, host)
		return nil
	}
	l.history[host] = times
	return times
}

// AllowMessage records one inbound chunk for host and reports whether it is
// within the sliding one-minute window.
func (l *RateLimiter) AllowMessage(host string) bool {
	if l.maxMessages <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	times := l.trim(host, now.Add(-messageWindow))
	if len(times) >= l.maxMessages {
		return false
	}
	l.history[host] = append(times, now)
	return true
}

// trackedHosts returns the number of hosts with message history.
func (l *RateLimiter) trackedHosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.history)
}

// Connections returns the number of slots held by host.
func (l *RateLimiter) Connections(host string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conns[host]
}
