package treeconf

import (
	"fmt"
	"sync"

	"github.com/treeconf/treeconf/loader"
	"github.com/treeconf/treeconf/watcher"
)

// FileSource binds a Configuration to a file on disk. Load reads the file
// through the given loader and installs the resulting tree; WatchAndReload
// keeps the configuration in sync with later edits to the file.
//
// A reload replaces the whole tree, so observers receive a single reload
// event rather than one event per changed key. Live views anchored into the
// old tree detach, since the reloaded tree is built from scratch.
type FileSource struct {
	mu      sync.Mutex
	config  *Configuration
	path    string
	ldr     loader.FileLoader
	watch   *watcher.Watcher
	onError func(error)
}

// FileSourceOption configures a FileSource.
type FileSourceOption func(*FileSource)

// WithReloadErrorHandler installs a callback for errors during automatic
// reload. Without one, a failed reload keeps the previous tree silently.
func WithReloadErrorHandler(fn func(error)) FileSourceOption {
	return func(s *FileSource) {
		s.onError = fn
	}
}

// NewFileSource creates a file source for the given configuration.
func NewFileSource(config *Configuration, path string, ldr loader.FileLoader, opts ...FileSourceOption) *FileSource {
	s := &FileSource{
		config: config,
		path:   path,
		ldr:    ldr,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the watched file path.
func (s *FileSource) Path() string {
	return s.path
}

// Load reads the file and replaces the configuration's tree. A missing file
// is not an error; the configuration is emptied instead.
func (s *FileSource) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileSource) load() error {
	root, err := s.ldr.LoadFrom(s.path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", s.path, err)
	}
	return s.config.SetRootNode(root)
}

// WatchAndReload starts watching the file and reloads the configuration on
// every change. A removal of the file empties the configuration.
func (s *FileSource) WatchAndReload(opts ...watcher.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watch != nil {
		return fmt.Errorf("already watching %s", s.path)
	}

	w := watcher.New(opts...)
	if err := w.Watch(s.path); err != nil {
		return err
	}
	w.OnChange(func(ev watcher.Event) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.load(); err != nil && s.onError != nil {
			s.onError(err)
		}
	})
	w.Start()
	s.watch = w
	return nil
}

// StopWatching stops the file watcher, if running.
func (s *FileSource) StopWatching() {
	s.mu.Lock()
	w := s.watch
	s.watch = nil
	s.mu.Unlock()

	if w != nil {
		w.Stop()
	}
}
