// control/config.go
// Author: momentics <momentics@gmail.com>
//
// File-backed hub configuration.

package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/momentics/sockethub/api"
	"github.com/momentics/sockethub/hub"
	"github.com/momentics/sockethub/internal/logger"
	"github.com/momentics/sockethub/reactor"
)

// Duration is a time.Duration that reads and writes JSON as "1m30s". Plain
// numbers are taken as seconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(x * float64(time.Second))
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// FileConfig is the on-disk configuration of a hub process.
type FileConfig struct {
	Port                 int              `json:"port"`
	MaxConnections       int              `json:"max_connections"`
	BufferSize           int              `json:"buffer_size"`
	IdleTimeout          Duration         `json:"idle_timeout"`
	Backlog              int              `json:"backlog"`
	SweepInterval        Duration         `json:"sweep_interval"`
	PollTimeout          Duration         `json:"poll_timeout"`
	AcceptBatch          int              `json:"accept_batch"`
	MaxEvents            int              `json:"max_events"`
	PoolCapacity         int              `json:"pool_capacity"`
	WriteTimeout         Duration         `json:"write_timeout"`
	Reactor              string           `json:"reactor"`
	LoopCPU              int              `json:"loop_cpu"`
	MaxConnectionsPerIP  int              `json:"max_connections_per_ip"`
	MaxMessagesPerMinute int              `json:"max_messages_per_minute"`
	ReuseAddr            bool             `json:"reuse_addr"`
	NATSURL              string           `json:"nats_url"`
	NATSSubjectPrefix    string           `json:"nats_subject_prefix"`
	Log                  logger.LogConfig `json:"log"`
}

// DefaultFileConfig mirrors hub.DefaultConfig and logger.DefaultLogConfig.
func DefaultFileConfig() *FileConfig {
	c := hub.DefaultConfig()
	return &FileConfig{
		Port:                 c.Port,
		MaxConnections:       c.MaxConnections,
		BufferSize:           c.BufferSize,
		IdleTimeout:          Duration(c.IdleTimeout),
		Backlog:              c.Backlog,
		SweepInterval:        Duration(c.SweepInterval),
		PollTimeout:          Duration(c.PollTimeout),
		AcceptBatch:          c.AcceptBatch,
		MaxEvents:            c.MaxEvents,
		PoolCapacity:         c.PoolCapacity,
		WriteTimeout:         Duration(c.WriteTimeout),
		Reactor:              c.Reactor.String(),
		LoopCPU:              c.LoopCPU,
		MaxConnectionsPerIP:  c.MaxConnectionsPerIP,
		MaxMessagesPerMinute: c.MaxMessagesPerMinute,
		ReuseAddr:            c.ReuseAddr,
		NATSSubjectPrefix:    "sockethub",
		Log:                  logger.DefaultLogConfig(),
	}
}

// LoadConfig reads path over the defaults. A missing file yields the
// defaults. The result is validated.
func LoadConfig(path string) (*FileConfig, error) {
	cfg := DefaultFileConfig()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, api.NewConfigurationError("decode "+path+": "+err.Error(), api.ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the port, the reactor name and every hub field.
func (c *FileConfig) Validate() error {
	if err := hub.ValidatePort(c.Port); err != nil {
		return err
	}
	if _, err := reactor.ParseKind(c.Reactor); err != nil {
		return api.NewConfigurationError(err.Error(), api.ErrInvalidArgument).WithContext("reactor", c.Reactor)
	}
	return c.HubConfig().Validate()
}

// HubConfig converts to hub.Config. An unknown reactor name maps to auto;
// Validate reports it.
func (c *FileConfig) HubConfig() hub.Config {
	kind, err := reactor.ParseKind(c.Reactor)
	if err != nil {
		kind = reactor.KindAuto
	}
	return hub.Config{
		Port:                 c.Port,
		MaxConnections:       c.MaxConnections,
		BufferSize:           c.BufferSize,
		IdleTimeout:          time.Duration(c.IdleTimeout),
		Backlog:              c.Backlog,
		SweepInterval:        time.Duration(c.SweepInterval),
		PollTimeout:          time.Duration(c.PollTimeout),
		AcceptBatch:          c.AcceptBatch,
		MaxEvents:            c.MaxEvents,
		PoolCapacity:         c.PoolCapacity,
		WriteTimeout:         time.Duration(c.WriteTimeout),
		Reactor:              kind,
		LoopCPU:              c.LoopCPU,
		MaxConnectionsPerIP:  c.MaxConnectionsPerIP,
		MaxMessagesPerMinute: c.MaxMessagesPerMinute,
		ReuseAddr:            c.ReuseAddr,
	}
}
