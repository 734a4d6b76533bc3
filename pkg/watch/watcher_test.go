package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestNew(t *testing.T) {
	if _, err := New(&Config{}, nil); err == nil {
		t.Error("New() with empty path: want error")
	}

	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	w, err := New(cfg, quietLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() before Watch error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestFileWatcher_Directory(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.DebounceInterval = 30 * time.Millisecond

	w, err := New(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	var reloads atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Watch(ctx, func() error {
			reloads.Add(1)
			return nil
		})
	}()
	time.Sleep(50 * time.Millisecond)

	// A burst of writes collapses into one reload.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(dir, "rules.yaml"), []byte("category: x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, 2*time.Second, func() bool { return reloads.Load() >= 1 })

	// Ignored extension.
	before := reloads.Load()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if got := reloads.Load(); got != before {
		t.Errorf("reloads = %d after .txt write, want %d", got, before)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}

func TestFileWatcher_SingleFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "ruleflow.yaml")
	other := filepath.Join(dir, "other.yaml")
	if err := os.WriteFile(target, []byte("a: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Path = target
	cfg.DebounceInterval = 20 * time.Millisecond
	w, err := New(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Stop() }()

	var reloads atomic.Int32
	go func() {
		_ = w.Watch(context.Background(), func() error {
			reloads.Add(1)
			return nil
		})
	}()
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(other, []byte("b: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if reloads.Load() != 0 {
		t.Fatal("sibling file triggered a reload")
	}

	if err := os.WriteFile(target, []byte("a: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool { return reloads.Load() == 1 })
}

func TestFileWatcher_AlreadyRunning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	w, err := New(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	_ = w.Stop()

	if err := w.Watch(context.Background(), func() error { return nil }); err != ErrAlreadyRunning {
		t.Errorf("Watch() after Stop error = %v, want ErrAlreadyRunning", err)
	}
}

func TestShouldProcessEvent(t *testing.T) {
	fw := &FileWatcher{config: DefaultConfig()}

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{name: "yaml write", event: fsnotify.Event{Name: "/r/a.yaml", Op: fsnotify.Write}, want: true},
		{name: "yml create", event: fsnotify.Event{Name: "/r/a.YML", Op: fsnotify.Create}, want: true},
		{name: "chmod only", event: fsnotify.Event{Name: "/r/a.yaml", Op: fsnotify.Chmod}, want: false},
		{name: "other extension", event: fsnotify.Event{Name: "/r/a.json", Op: fsnotify.Write}, want: false},
		{name: "hidden file", event: fsnotify.Event{Name: "/r/.a.yaml", Op: fsnotify.Write}, want: false},
		{name: "remove", event: fsnotify.Event{Name: "/r/a.yaml", Op: fsnotify.Remove}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fw.shouldProcessEvent(tt.event); got != tt.want {
				t.Errorf("shouldProcessEvent(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
	}
	waitFor(t, time.Second, func() bool { return calls.Load() == 1 })

	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}

	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("callback ran after Stop")
	}
	d.Trigger(func() { calls.Add(1) })
	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("Trigger after Stop scheduled a callback")
	}
}
