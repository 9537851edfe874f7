// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Watches the configuration file and dispatches reload hooks.

package control

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/momentics/sockethub/hub"
	"github.com/momentics/sockethub/internal/logger"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a config file on change and passes the result to hooks.
// The parent directory is watched so rename-on-save editors are followed.
type Watcher struct {
	path     string
	log      *logger.Logger
	fsw      *fsnotify.Watcher
	Debounce time.Duration

	mu    sync.Mutex
	hooks []func(*FileConfig)

	stop      chan struct{}
	done      chan struct{}
	started   atomic.Bool
	closeOnce sync.Once
}

// NewWatcher creates a watcher for path. Call Start to begin delivering.
func NewWatcher(path string, log *logger.Logger) (*Watcher, error) {
	if log == nil {
		log = logger.Nop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		path:     abs,
		log:      log.Component("control"),
		fsw:      fsw,
		Debounce: DefaultDebounce,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// OnReload registers a hook called with every successfully loaded config.
func (w *Watcher) OnReload(fn func(*FileConfig)) {
	w.mu.Lock()
	w.hooks = append(w.hooks, fn)
	w.mu.Unlock()
}

// Start launches the watch goroutine.
func (w *Watcher) Start() {
	if w.started.CompareAndSwap(false, true) {
		go w.watch()
	}
}

// Close stops watching and waits for the watch goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stop)
		err = w.fsw.Close()
		if w.started.Load() {
			<-w.done
		}
	})
	return err
}

func (w *Watcher) watch() {
	defer close(w.done)
	var pending <-chan time.Time
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(w.Debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Zerolog().Error().Err(err).Msg("config watcher error")
		case <-pending:
			pending = nil
			w.Reload()
		}
	}
}

// Reload loads the file now and runs the hooks. A config that fails to load
// is logged and the hooks are not called.
func (w *Watcher) Reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.log.Zerolog().Error().Err(err).Str("path", w.path).Msg("config reload rejected")
		return
	}
	w.mu.Lock()
	hooks := make([]func(*FileConfig), len(w.hooks))
	copy(hooks, w.hooks)
	w.mu.Unlock()
	w.log.Zerolog().Info().Str("path", w.path).Int("hooks", len(hooks)).Msg("config reloaded")
	for _, fn := range hooks {
		fn(cfg)
	}
}

// BindHub applies reloaded runtime-mutable settings to h. Only the client
// idle timeout can change on a running hub; other fields take effect on the
// next start.
func BindHub(w *Watcher, h *hub.Hub) {
	w.OnReload(func(cfg *FileConfig) {
		d := time.Duration(cfg.IdleTimeout)
		if d != h.ClientTimeout() {
			h.SetClientTimeout(d)
		}
	})
}
