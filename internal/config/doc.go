// Package config loads and watches the homewatchd configuration file.
//
// Load(path) reads the YAML file, applies defaults (30s monitor cycle,
// 10s delivery scan, 50-event batches, 30-day retention, port 8080), then
// validates ranges and enums. A missing file yields the pure defaults so the
// daemon can start with zero configuration.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It tolerates the rename→create
// pattern used by atomic-save editors by re-adding the watch after a reload.
//
// Interval fields use the Duration wrapper so YAML values read as "30s",
// "10m" or "24h".
package config
