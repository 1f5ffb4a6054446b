package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnProjectConfigWrite(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("log_level: info\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPLK_CONFIG", configPath)

	changes := make(chan *Config, 4)
	w, err := NewWatcher(func(cfg *Config) { changes <- cfg })
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(configPath, []byte("log_level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changes:
		if cfg.LogLevel != "debug" {
			t.Errorf("reloaded LogLevel = %q, want %q", cfg.LogLevel, "debug")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload callback")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(func(*Config) {})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	w.Stop()
	w.Stop() // must not block or panic
}

func TestWatcher_StartTwiceIsNoOp(t *testing.T) {
	w, err := NewWatcher(func(*Config) {})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()
	if err := w.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
}

func TestWatcher_MissingPathsDoNotError(t *testing.T) {
	t.Setenv("SPLK_CONFIG", filepath.Join(t.TempDir(), "nonexistent.yaml"))

	w, err := NewWatcher(func(*Config) {})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() with missing config paths should not error, got %v", err)
	}
	w.Stop()
}
