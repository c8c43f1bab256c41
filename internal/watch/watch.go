// Package watch reports debounced source changes under a set of directory
// trees, for run --watch.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config holds watcher options.
type Config struct {
	// Roots are walked and every directory below them is watched
	Roots []string
	// Extensions of files whose changes count, e.g. ".go"
	Extensions []string
	Debounce   time.Duration
}

// DefaultConfig watches Go sources and YAML suites under roots.
func DefaultConfig(roots ...string) Config {
	return Config{
		Roots:      roots,
		Extensions: []string{".go", ".yaml", ".yml"},
		Debounce:   300 * time.Millisecond,
	}
}

// Change is one debounced batch of file events.
type Change struct {
	// Paths lists the changed files, sorted
	Paths []string
}

// Has reports whether any changed path has one of the extensions.
func (c Change) Has(exts ...string) bool {
	return slices.ContainsFunc(c.Paths, func(p string) bool {
		return slices.Contains(exts, filepath.Ext(p))
	})
}

// Watcher coalesces bursts of file events into single change signals.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	cfg       Config
	onChange  chan Change
	errs      chan error
	done      chan struct{}

	// owned by Start, then by loop
	watched map[string]bool
	pending map[string]bool
}

// New creates a watcher. Call Start to begin watching.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsWatcher: fsw,
		cfg:       cfg,
		onChange:  make(chan Change, 1),
		errs:      make(chan error, 1),
		done:      make(chan struct{}),
		watched:   map[string]bool{},
		pending:   map[string]bool{},
	}, nil
}

// Start adds every directory under the roots and returns the change channel.
// Hidden directories, vendor and testdata are skipped. Directories created
// later are added as they appear.
func (w *Watcher) Start() (<-chan Change, error) {
	for _, root := range w.cfg.Roots {
		if err := w.addTree(root, false); err != nil {
			return nil, fmt.Errorf("watching %s: %w", root, err)
		}
	}
	go w.loop()
	return w.onChange, nil
}

// addTree watches root and the directories below it. With collect set, the
// relevant files found are recorded as changed: they may have been written
// before the directory was watched.
func (w *Watcher) addTree(root string, collect bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if collect && w.relevantFile(path) {
				w.pending[path] = true
			}
			return nil
		}
		if path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if w.watched[path] {
			return nil
		}
		w.watched[path] = true
		return w.fsWatcher.Add(path)
	})
}

// Errors carries watcher failures. Only the first unread error is kept.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func skipDir(name string) bool {
	return name == "vendor" || name == "testdata" || name == "node_modules" ||
		(strings.HasPrefix(name, ".") && name != ".")
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.record(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
			} else {
				timer.Reset(w.cfg.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.flush()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.fail(err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// record notes event and reports whether anything relevant changed.
func (w *Watcher) record(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.forget(event.Name)
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if skipDir(filepath.Base(event.Name)) {
				return false
			}
			// a directory gone again before it was walked is no failure
			if err := w.addTree(event.Name, true); err != nil && !errors.Is(err, fs.ErrNotExist) {
				w.fail(fmt.Errorf("watching %s: %w", event.Name, err))
			}
			return len(w.pending) > 0
		}
	}
	if !w.relevantFile(event.Name) {
		return false
	}
	w.pending[event.Name] = true
	return true
}

// forget drops path and everything below it from the watched set; fsnotify
// has already dropped their watches.
func (w *Watcher) forget(path string) {
	prefix := path + string(filepath.Separator)
	maps.DeleteFunc(w.watched, func(dir string, _ bool) bool {
		return dir == path || strings.HasPrefix(dir, prefix)
	})
}

// flush sends the pending paths, merged with a change nobody has read yet.
// loop is the only sender, so the send after draining never blocks.
func (w *Watcher) flush() {
	select {
	case unread := <-w.onChange:
		for _, p := range unread.Paths {
			w.pending[p] = true
		}
	default:
	}
	paths := slices.Sorted(maps.Keys(w.pending))
	clear(w.pending)
	w.onChange <- Change{Paths: paths}
}

func (w *Watcher) fail(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

func (w *Watcher) relevantFile(path string) bool {
	return slices.Contains(w.cfg.Extensions, filepath.Ext(path))
}
