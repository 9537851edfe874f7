// File: notify/nats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package notify forwards hub lifecycle events to NATS.
package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/momentics/sockethub/api"
	"github.com/momentics/sockethub/internal/logger"
	"github.com/nats-io/nats.go"
)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes api.Event values as JSON on <prefix>.<kind>.
type NATSPublisher struct {
	conn   Conn
	prefix string
}

var _ api.Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher wraps conn. An empty prefix defaults to "sockethub".
func NewNATSPublisher(conn Conn, prefix string) *NATSPublisher {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		prefix = "sockethub"
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject used for kind.
func (p *NATSPublisher) Subject(kind api.EventKind) string {
	return p.prefix + "." + string(kind)
}

// Publish implements api.Publisher.
func (p *NATSPublisher) Publish(ev api.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Kind, err)
	}
	if err := p.conn.Publish(p.Subject(ev.Kind), data); err != nil {
		return fmt.Errorf("publish %s: %w", p.Subject(ev.Kind), err)
	}
	return nil
}

// Connect dials url and returns a publisher plus a func that drains and
// closes the connection.
func Connect(url, prefix string, log *logger.Logger) (*NATSPublisher, func(), error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("notify")
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("sockethub"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Zerolog().Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Zerolog().Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, nil, api.NewResourceError("nats connect", err).WithContext("url", url)
	}
	pub := newConnectedPublisher(nc, url, prefix, log)
	closeFn := func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return pub, closeFn, nil
}

func newConnectedPublisher(conn Conn, url, prefix string, log *logger.Logger) *NATSPublisher {
	pub := NewNATSPublisher(conn, prefix)
	log.Zerolog().Info().Str("url", url).Str("prefix", pub.prefix).Msg("connected to NATS")
	return pub
}
