// Package script watches a directory of Lua power-up scripts and
// reports changes so a running session can hot-reload them.
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/brickstorm/internal/app"
)

// ChangeKind classifies a script file change.
type ChangeKind int

const (
	// ChangeWrite indicates the script was created or modified.
	ChangeWrite ChangeKind = iota

	// ChangeRemove indicates the script was deleted or renamed away.
	ChangeRemove
)

// String returns the change kind name.
func (k ChangeKind) String() string {
	switch k {
	case ChangeWrite:
		return "write"
	case ChangeRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Change is a debounced script file change.
type Change struct {
	// Path is the absolute path to the changed script.
	Path string

	// Kind is what happened to the file.
	Kind ChangeKind

	// Time is when the last underlying event arrived.
	Time time.Time
}

// Watcher watches a single scripts directory for .lua changes.
// Rapid events on the same path are coalesced; editors that save by
// writing a temp file and renaming it over the target produce a single
// write change.
type Watcher struct {
	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	dir     string
	delay   time.Duration
	log     *app.Logger
	pending map[string]*pendingChange
	changes chan Change
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

type pendingChange struct {
	kind  ChangeKind
	timer *time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long a path must stay quiet before its change
// is reported.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithWatchLogger sets the watcher's logger.
func WithWatchLogger(l *app.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatcher starts watching dir for script changes.
func NewWatcher(dir string, opts ...WatcherOption) (*Watcher, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("scripts directory %s: %w", absDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scripts path %s is not a directory", absDir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(absDir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", absDir, err)
	}

	w := &Watcher{
		fsw:     fsw,
		dir:     absDir,
		delay:   100 * time.Millisecond,
		log:     app.NullLogger,
		pending: make(map[string]*pendingChange),
		changes: make(chan Change, 16),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.processLoop()

	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Changes returns the channel of debounced script changes. The channel
// closes when the watcher is closed.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Close stops the watcher and closes the change channel.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	close(w.closeCh)
	w.wg.Wait()
	close(w.changes)

	return w.fsw.Close()
}

// processLoop consumes raw fsnotify events until closed.
func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("script watcher: %v", err)
		}
	}
}

// handleEvent classifies a raw event and queues it for debounced
// delivery. The latest kind wins when events coalesce, so a remove
// followed by a quick re-create reports a single write.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !isScript(ev.Name) {
		return
	}

	var kind ChangeKind
	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		kind = ChangeRemove
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		kind = ChangeWrite
	default:
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	if p, exists := w.pending[ev.Name]; exists {
		p.kind = kind
		p.timer.Reset(w.delay)
		return
	}

	p := &pendingChange{kind: kind}
	p.timer = time.AfterFunc(w.delay, func() {
		w.fire(ev.Name)
	})
	w.pending[ev.Name] = p
}

// fire delivers a pending change once its path has been quiet for the
// debounce window. Delivery is non-blocking; a full channel drops the
// change rather than stalling the timer goroutine.
func (w *Watcher) fire(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	p, exists := w.pending[path]
	if !exists {
		return
	}
	delete(w.pending, path)

	change := Change{Path: path, Kind: p.kind, Time: time.Now()}
	select {
	case w.changes <- change:
	default:
		w.log.Warn("script watcher: change channel full, dropping %s for %s", change.Kind, path)
	}
}

// isScript reports whether path names a Lua script. Hidden files are
// skipped so editor lock files do not trigger reloads.
func isScript(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return filepath.Ext(base) == ".lua"
}

// ListScripts returns the sorted absolute paths of the Lua scripts in
// dir. Hidden files are skipped.
func ListScripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scripts directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !isScript(entry.Name()) {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		paths = append(paths, abs)
	}
	sort.Strings(paths)
	return paths, nil
}
