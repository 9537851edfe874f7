// Package control
// Author: momentics <momentics@gmail.com>
//
// Operational layer around a hub: file configuration, hot reload, runtime
// metrics and debug introspection.
//
// Provides:
//   - JSON configuration loading with defaults (LoadConfig)
//   - fsnotify-driven reload hooks and hub binding (Watcher, BindHub)
//   - hub and process metrics sampling (MetricsRegistry)
//   - named state probes (DebugProbes)
package control
