package script

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w, err := NewWatcher(dir, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func writeScript(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("powerup = { type = \"t\" }\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
}

func awaitChange(t *testing.T, w *Watcher) Change {
	t.Helper()
	select {
	case c, ok := <-w.Changes():
		if !ok {
			t.Fatal("change channel closed unexpectedly")
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func TestWatcherReportsWrite(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	path := filepath.Join(dir, "multiball.lua")
	writeScript(t, path)

	c := awaitChange(t, w)
	if c.Kind != ChangeWrite {
		t.Errorf("kind = %v, want write", c.Kind)
	}
	if filepath.Base(c.Path) != "multiball.lua" {
		t.Errorf("path = %q, want multiball.lua", c.Path)
	}
}

func TestWatcherCoalescesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	path := filepath.Join(dir, "wide.lua")
	for i := 0; i < 3; i++ {
		writeScript(t, path)
	}

	c := awaitChange(t, w)
	if c.Kind != ChangeWrite {
		t.Errorf("kind = %v, want write", c.Kind)
	}

	select {
	case extra := <-w.Changes():
		t.Errorf("rapid writes should coalesce, got extra change %+v", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherIgnoresNonScripts(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden.lua"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	writeScript(t, filepath.Join(dir, "real.lua"))

	// The first change to arrive must be the real script; the other
	// files never produce one.
	c := awaitChange(t, w)
	if filepath.Base(c.Path) != "real.lua" {
		t.Errorf("path = %q, want real.lua", c.Path)
	}
}

func TestWatcherReportsRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slow.lua")
	writeScript(t, path)

	w := newTestWatcher(t, dir)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	c := awaitChange(t, w)
	if c.Kind != ChangeRemove {
		t.Errorf("kind = %v, want remove", c.Kind)
	}
	if c.Path != path {
		t.Errorf("path = %q, want %q", c.Path, path)
	}
}

func TestWatcherClose(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if _, ok := <-w.Changes(); ok {
		t.Error("change channel should be closed after Close")
	}
}

func TestNewWatcherMissingDir(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestNewWatcherFileNotDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.lua")
	writeScript(t, path)

	if _, err := NewWatcher(path); err == nil {
		t.Error("expected error for non-directory path")
	}
}

func TestListScripts(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, filepath.Join(dir, "b.lua"))
	writeScript(t, filepath.Join(dir, "a.lua"))
	writeScript(t, filepath.Join(dir, ".skip.lua"))
	if err := os.WriteFile(filepath.Join(dir, "readme.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.lua"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	paths, err := ListScripts(dir)
	if err != nil {
		t.Fatalf("ListScripts: %v", err)
	}

	if len(paths) != 2 {
		t.Fatalf("got %d scripts, want 2: %v", len(paths), paths)
	}
	if filepath.Base(paths[0]) != "a.lua" || filepath.Base(paths[1]) != "b.lua" {
		t.Errorf("scripts not sorted: %v", paths)
	}
}

func TestListScriptsMissingDir(t *testing.T) {
	if _, err := ListScripts(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestChangeKindString(t *testing.T) {
	tests := []struct {
		kind ChangeKind
		want string
	}{
		{ChangeWrite, "write"},
		{ChangeRemove, "remove"},
		{ChangeKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ChangeKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
