package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalesces(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func() { calls.Add(1) })
	defer d.Cancel()

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d; want 1", got)
	}
}

func TestDebouncerCancel(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(50*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Cancel()

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("calls after cancel = %d; want 0", got)
	}
}

func TestDebouncerFiresAgainAfterQuiet(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { calls.Add(1) })
	defer d.Cancel()

	d.Trigger()
	time.Sleep(100 * time.Millisecond)
	d.Trigger()
	time.Sleep(100 * time.Millisecond)

	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d; want 2", got)
	}
}

// startWatcher wires a watcher for path to a notification channel and
// cleans both up with the test.
func startWatcher(t *testing.T, path string) (*Watcher, <-chan struct{}) {
	t.Helper()
	changed := make(chan struct{}, 8)
	w, err := New(path, 50*time.Millisecond, func() {
		changed <- struct{}{}
	})
	if err != nil {
		t.Fatalf("New(%q) error: %v", path, err)
	}
	if w.Polling() {
		t.Skip("fsnotify unavailable in this environment")
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
	})
	w.Start(ctx)
	return w, changed
}

func waitChanged(t *testing.T, changed <-chan struct{}) {
	t.Helper()
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification within 3s")
	}
}

func TestWatcherDetectsWrite(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "collection.toml")
	if err := os.WriteFile(manifest, []byte("name = \"main\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, changed := startWatcher(t, manifest)

	if err := os.WriteFile(manifest, []byte("name = \"renamed\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	waitChanged(t, changed)
}

func TestWatcherDetectsAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "collection.toml")
	if err := os.WriteFile(manifest, []byte("name = \"main\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, changed := startWatcher(t, manifest)

	// Same write pattern as utils.AtomicWriteFile: temp file then rename.
	tmp := filepath.Join(dir, ".collection.toml.tmp")
	if err := os.WriteFile(tmp, []byte("name = \"swapped\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, manifest); err != nil {
		t.Fatal(err)
	}
	waitChanged(t, changed)
}

func TestWatcherDetectsCreate(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "collection.toml")

	_, changed := startWatcher(t, manifest)

	if err := os.WriteFile(manifest, []byte("name = \"fresh\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	waitChanged(t, changed)
}

func TestPollOnce(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "collection.toml")

	w := &Watcher{manifestPath: manifest, parentDir: dir}

	if w.pollOnce() {
		t.Error("pollOnce() on still-missing file = true; want false")
	}

	if err := os.WriteFile(manifest, []byte("name = \"main\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if !w.pollOnce() {
		t.Error("pollOnce() after create = false; want true")
	}
	if w.pollOnce() {
		t.Error("pollOnce() with no further change = true; want false")
	}

	// Size change is detected even when the mtime granularity hides the
	// rewrite.
	if err := os.WriteFile(manifest, []byte("name = \"main\"\ndescription = \"x\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if !w.pollOnce() {
		t.Error("pollOnce() after rewrite = false; want true")
	}

	if err := os.Remove(manifest); err != nil {
		t.Fatal(err)
	}
	if !w.pollOnce() {
		t.Error("pollOnce() after remove = false; want true")
	}
	if w.pollOnce() {
		t.Error("pollOnce() on already-missing file = true; want false")
	}
}
