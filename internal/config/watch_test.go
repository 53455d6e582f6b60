package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatchDeliversReload(t *testing.T) {
	path := writeConfig(t, "monitor:\n  interval: 30s")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- Watch(ctx, path, func(cfg *Config) {
			select {
			case got <- cfg:
			default:
			}
		})
	}()

	// Give the watcher a moment to register before rewriting the file.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("monitor:\n  interval: 5s"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-got:
		if cfg.Monitor.Interval.Std() != 5*time.Second {
			t.Errorf("reloaded interval = %v", cfg.Monitor.Interval.Std())
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback never fired")
	}

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Watch returned %v after cancel", err)
	}
}

func TestWatchIgnoresInvalidRewrite(t *testing.T) {
	path := writeConfig(t, "monitor:\n  interval: 30s")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	go Watch(ctx, path, func(cfg *Config) { got <- cfg }) //nolint:errcheck

	time.Sleep(50 * time.Millisecond)
	// Broken YAML must not reach the callback.
	if err := os.WriteFile(path, []byte("monitor: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-got:
		t.Fatalf("callback fired for invalid config: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}
