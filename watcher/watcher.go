// Package watcher provides file watching for configuration live reload.
//
// Changes are detected by polling modification times. Polling is slower to
// react than inotify-style APIs but behaves identically on every platform
// and over network file systems, where configuration files often live.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event represents a file change event.
type Event struct {
	// Path is the absolute path to the changed file.
	Path string

	// Op is the operation that triggered the event.
	Op Operation

	// Time is when the event occurred.
	Time time.Time
}

// Operation represents the type of file operation.
type Operation int

const (
	// OpWrite indicates the file was modified.
	OpWrite Operation = iota

	// OpCreate indicates a new file was created.
	OpCreate

	// OpRemove indicates the file was deleted.
	OpRemove
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Handler is called when a file change is detected.
type Handler func(event Event)

// Watcher monitors files for changes.
type Watcher struct {
	mu sync.RWMutex

	// Watched files and their last modification times. A zero time means
	// the file does not exist yet and we are waiting for its creation.
	files map[string]time.Time

	handlers []Handler

	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running bool

	// Rapid successive changes are coalesced into one event per file.
	debounce  time.Duration
	pendingMu sync.Mutex
	pending   map[string]pendingEvent
}

type pendingEvent struct {
	Op   Operation
	Time time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithDebounce sets the debounce duration for rapid changes. Zero disables
// debouncing.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// New creates a new file watcher.
func New(opts ...Option) *Watcher {
	w := &Watcher{
		files:    make(map[string]time.Time),
		interval: 500 * time.Millisecond,
		debounce: 100 * time.Millisecond,
		pending:  make(map[string]pendingEvent),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Watch adds a file to the watch list. Watching a file that does not exist
// yet is allowed; its creation will be reported as an OpCreate event.
func (w *Watcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			w.files[absPath] = time.Time{}
			return nil
		}
		return err
	}

	w.files[absPath] = info.ModTime()
	return nil
}

// Unwatch removes a file from the watch list.
func (w *Watcher) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.files, absPath)
	return nil
}

// WatchDir adds all files in a directory matching a glob pattern.
func (w *Watcher) WatchDir(dir string, pattern string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	matches, err := filepath.Glob(filepath.Join(absDir, pattern))
	if err != nil {
		return err
	}

	for _, path := range matches {
		if err := w.Watch(path); err != nil {
			return err
		}
	}

	return nil
}

// OnChange registers a handler for file change events.
func (w *Watcher) OnChange(handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching files for changes. Calling Start on a running
// watcher is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.pollLoop()

	if w.debounce > 0 {
		w.wg.Add(1)
		go w.debounceLoop()
	}
}

// Stop stops watching files and waits for the loops to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.running = false
	w.mu.Unlock()

	w.wg.Wait()
}

// IsRunning returns whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// WatchedFiles returns the list of watched files.
func (w *Watcher) WatchedFiles() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	files := make([]string, 0, len(w.files))
	for path := range w.files {
		files = append(files, path)
	}
	return files
}

func (w *Watcher) pollLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.checkFiles()
		}
	}
}

func (w *Watcher) checkFiles() {
	w.mu.RLock()
	files := make(map[string]time.Time, len(w.files))
	for path, modTime := range w.files {
		files[path] = modTime
	}
	w.mu.RUnlock()

	for path, lastMod := range files {
		if event := w.checkFile(path, lastMod); event != nil {
			if w.debounce > 0 {
				w.queueEvent(*event)
			} else {
				w.emitEvent(*event)
			}
		}
	}
}

// checkFile compares a file's current state against the recorded one and
// returns the resulting event, if any.
func (w *Watcher) checkFile(path string, lastMod time.Time) *Event {
	info, err := os.Stat(path)

	if os.IsNotExist(err) {
		if lastMod.IsZero() {
			return nil
		}
		w.setModTime(path, time.Time{})
		return &Event{Path: path, Op: OpRemove, Time: time.Now()}
	}
	if err != nil {
		return nil
	}

	currentMod := info.ModTime()

	if lastMod.IsZero() {
		w.setModTime(path, currentMod)
		return &Event{Path: path, Op: OpCreate, Time: time.Now()}
	}

	if !currentMod.Equal(lastMod) {
		w.setModTime(path, currentMod)
		return &Event{Path: path, Op: OpWrite, Time: time.Now()}
	}

	return nil
}

func (w *Watcher) setModTime(path string, t time.Time) {
	w.mu.Lock()
	w.files[path] = t
	w.mu.Unlock()
}

// queueEvent records an event for debounced delivery, coalescing it with any
// event already pending for the same file: a removal supersedes everything,
// a creation is not downgraded by later writes, and repeated writes keep the
// latest timestamp.
func (w *Watcher) queueEvent(event Event) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	existing, exists := w.pending[event.Path]
	if !exists {
		w.pending[event.Path] = pendingEvent{Op: event.Op, Time: event.Time}
		return
	}

	op := event.Op
	if event.Op == OpWrite && existing.Op != OpWrite {
		op = existing.Op
	}
	w.pending[event.Path] = pendingEvent{Op: op, Time: event.Time}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flushPending()
		}
	}
}

// flushPending emits events whose file has been quiet for a full debounce
// period.
func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	stableThreshold := time.Now().Add(-w.debounce)

	var toEmit []Event
	for path, pending := range w.pending {
		if pending.Time.Before(stableThreshold) {
			toEmit = append(toEmit, Event{Path: path, Op: pending.Op, Time: pending.Time})
			delete(w.pending, path)
		}
	}
	w.pendingMu.Unlock()

	for _, event := range toEmit {
		w.emitEvent(event)
	}
}

// emitEvent calls all handlers with the event. A panicking handler must not
// take down the watcher goroutine, so each call is recovered.
func (w *Watcher) emitEvent(event Event) {
	w.mu.RLock()
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() { _ = recover() }()
			handler(event)
		}()
	}
}
