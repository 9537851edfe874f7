// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

import "time"

// State enumerates the lifecycle of a hub instance.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// ClientInfo is a point-in-time view of one connection.
type ClientInfo struct {
	ID            uint64    `json:"id"`
	Address       string    `json:"address"`
	ConnectedAt   time.Time `json:"connected_at"`
	LastActivity  time.Time `json:"last_activity"`
	BytesReceived uint64    `json:"bytes_received"`
	BytesSent     uint64    `json:"bytes_sent"`
}

// Stats provides a standard layout for hub health/statistics reporting.
type Stats struct {
	TotalConnections    uint64
	ActiveConnections   int
	RejectedConnections uint64
	BytesReceived       uint64
	BytesSent           uint64
	MessagesReceived    uint64
	MessagesSent        uint64
	DroppedMessages     uint64
	IdleEvictions       uint64
	HandlerPanics       uint64
	StartedAt           time.Time
}

// EventKind names a lifecycle notification.
type EventKind string

const (
	EventConnect    EventKind = "connect"
	EventDisconnect EventKind = "disconnect"
)

// Event is the envelope published to external sinks on connection lifecycle
// changes.
type Event struct {
	Hub      string    `json:"hub"`
	Kind     EventKind `json:"kind"`
	ClientID uint64    `json:"client_id"`
	Address  string    `json:"addr"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}
