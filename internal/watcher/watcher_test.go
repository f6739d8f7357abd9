package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"recast/internal/config"
	"recast/internal/logging"
)

func newTestWatcher(t *testing.T, handler Handler) *Watcher {
	t.Helper()
	cfg := config.WatcherConfig{Enabled: true, DebounceMs: 20}
	w, err := New(t.TempDir(), cfg, []string{"bin", "obj"}, logging.Nop(), handler)
	if err != nil {
		t.Skipf("fsnotify unavailable: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestDebouncerCoalesces(t *testing.T) {
	var mu sync.Mutex
	runs := 0

	d := NewDebouncer(30 * time.Millisecond)
	for i := 0; i < 5; i++ {
		d.Trigger(func() {
			mu.Lock()
			runs++
			mu.Unlock()
		})
	}

	time.Sleep(120 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Errorf("runs = %d, want a single coalesced run", runs)
	}
}

func TestDebouncerCancel(t *testing.T) {
	var mu sync.Mutex
	runs := 0

	d := NewDebouncer(20 * time.Millisecond)
	d.Trigger(func() {
		mu.Lock()
		runs++
		mu.Unlock()
	})
	d.Cancel()

	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if runs != 0 {
		t.Errorf("runs = %d after cancel, want 0", runs)
	}
}

func TestDebouncerFlushRunsImmediately(t *testing.T) {
	runs := 0
	d := NewDebouncer(time.Hour)
	d.Trigger(func() { runs++ })
	d.Flush()
	if runs != 1 {
		t.Errorf("runs = %d after flush, want 1", runs)
	}
	// a second flush has nothing left to run
	d.Flush()
	if runs != 1 {
		t.Errorf("runs = %d after second flush, want 1", runs)
	}
}

func TestSkipDir(t *testing.T) {
	w := newTestWatcher(t, nil)

	tests := []struct {
		name string
		skip bool
	}{
		{"bin", true},
		{"obj", true},
		{".git", true},
		{".recast", true},
		{"src", false},
		{"Models", false},
	}
	for _, tt := range tests {
		if got := w.skipDir(tt.name); got != tt.skip {
			t.Errorf("skipDir(%q) = %v, want %v", tt.name, got, tt.skip)
		}
	}
}

func TestObserveFiltersAndBatches(t *testing.T) {
	var mu sync.Mutex
	var got []string
	w := newTestWatcher(t, func(changed []string) {
		mu.Lock()
		got = append([]string(nil), changed...)
		mu.Unlock()
	})

	join := func(p string) string { return filepath.Join(w.root, filepath.FromSlash(p)) }
	w.observe(fsnotify.Event{Name: join("App/B.cs"), Op: fsnotify.Write})
	w.observe(fsnotify.Event{Name: join("App/A.cs"), Op: fsnotify.Write})
	w.observe(fsnotify.Event{Name: join("App/A.cs"), Op: fsnotify.Write})
	w.observe(fsnotify.Event{Name: join("notes.txt"), Op: fsnotify.Write})
	w.observe(fsnotify.Event{Name: join("App/C.cs"), Op: fsnotify.Chmod})
	w.debouncer.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "App/A.cs" || got[1] != "App/B.cs" {
		t.Errorf("changed = %v, want sorted unique document paths", got)
	}
}

func TestWatcherReportsWrites(t *testing.T) {
	ch := make(chan []string, 1)
	w := newTestWatcher(t, func(changed []string) {
		select {
		case ch <- changed:
		default:
		}
	})

	dir := filepath.Join(w.root, "App")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	path := filepath.Join(dir, "Greeter.cs")
	if err := os.WriteFile(path, []byte("namespace App { }\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case changed := <-ch:
		found := false
		for _, p := range changed {
			if p == "App/Greeter.cs" {
				found = true
			}
		}
		if !found {
			t.Errorf("changed = %v, want App/Greeter.cs", changed)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change report within the timeout")
	}
}
