// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for hub and process monitoring.
// Exposes counters in a thread-safe map with dynamic registration.

package control

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/momentics/sockethub/hub"
	"github.com/momentics/sockethub/internal/logger"
	"github.com/shirou/gopsutil/v3/process"
)

// MetricsRegistry holds the latest sampled values keyed by dotted name.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
	log     *logger.Logger

	pid      int32
	procOnce sync.Once
	proc     *process.Process
	procErr  error
}

// NewMetricsRegistry creates an empty registry sampling the current process.
func NewMetricsRegistry(log *logger.Logger) *MetricsRegistry {
	if log == nil {
		log = logger.Nop()
	}
	return &MetricsRegistry{
		metrics: make(map[string]any),
		log:     log.Component("metrics"),
		pid:     int32(os.Getpid()),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Get returns one metric.
func (mr *MetricsRegistry) Get(key string) (any, bool) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	v, ok := mr.metrics[key]
	return v, ok
}

// Updated returns the time of the last Set.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}

// CollectHub samples hub counters and buffer pool usage.
func (mr *MetricsRegistry) CollectHub(h *hub.Hub) {
	st := h.Stats()
	ps := h.PoolStats()
	mr.Set("hub.state", h.State().String())
	mr.Set("hub.port", h.Port())
	mr.Set("hub.connections.active", st.ActiveConnections)
	mr.Set("hub.connections.total", st.TotalConnections)
	mr.Set("hub.connections.rejected", st.RejectedConnections)
	mr.Set("hub.bytes.received", st.BytesReceived)
	mr.Set("hub.bytes.sent", st.BytesSent)
	mr.Set("hub.messages.received", st.MessagesReceived)
	mr.Set("hub.messages.sent", st.MessagesSent)
	mr.Set("hub.messages.dropped", st.DroppedMessages)
	mr.Set("hub.evictions.idle", st.IdleEvictions)
	mr.Set("hub.handler.panics", st.HandlerPanics)
	mr.Set("hub.pool.allocated", ps.Allocated)
	mr.Set("hub.pool.reused", ps.Reused)
	mr.Set("hub.pool.dropped", ps.Dropped)
	mr.Set("hub.pool.idle", ps.Idle)
}

// CollectProcess samples resource usage of the current process. Fields the
// platform cannot report are skipped.
func (mr *MetricsRegistry) CollectProcess() error {
	mr.procOnce.Do(func() {
		mr.proc, mr.procErr = process.NewProcess(mr.pid)
	})
	if mr.procErr != nil {
		return mr.procErr
	}
	mem, err := mr.proc.MemoryInfo()
	if err != nil {
		return err
	}
	mr.Set("process.rss_bytes", mem.RSS)
	if pct, err := mr.proc.CPUPercent(); err == nil {
		mr.Set("process.cpu_percent", pct)
	}
	if n, err := mr.proc.NumFDs(); err == nil {
		mr.Set("process.num_fds", n)
	}
	if n, err := mr.proc.NumThreads(); err == nil {
		mr.Set("process.num_threads", n)
	}
	return nil
}

// Run samples h and the process every interval until ctx is done. onSample,
// if not nil, is called after each round.
func (mr *MetricsRegistry) Run(ctx context.Context, h *hub.Hub, every time.Duration, onSample func(map[string]any)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mr.CollectHub(h)
			if err := mr.CollectProcess(); err != nil {
				mr.log.Zerolog().Debug().Err(err).Msg("process metrics unavailable")
			}
			if onSample != nil {
				onSample(mr.GetSnapshot())
			}
		}
	}
}
