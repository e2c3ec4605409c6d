// Package watch monitors a directory tree for freshly generated spec files
// and reports them once writes have settled.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const specSuffix = "_spec.rb"

// skipDirs are directory names never watched or scanned.
var skipDirs = map[string]bool{
	".git":         true,
	".factorytune": true,
	"node_modules": true,
}

// Config controls the settle debounce and the polling fallback.
type Config struct {
	// Settle is how long a file must stay quiet before it is dispatched.
	Settle time.Duration
	// Poll is the scan interval used when inotify is unavailable.
	Poll time.Duration
}

// Watcher reports spec files that have settled after a create or write.
// Paths are delivered on Settled; the channel is never closed, so consumers
// stop reading after Close.
type Watcher struct {
	root    string
	cfg     Config
	watcher *fsnotify.Watcher // nil in polling mode
	settled chan string
	done    chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer
	seen    map[string]time.Time

	closeOnce sync.Once
}

// New starts watching the tree rooted at root. When inotify can't be set
// up the watcher degrades to a polling scan at the configured interval.
func New(root string, cfg Config) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", root)
	}

	if cfg.Settle <= 0 {
		cfg.Settle = 500 * time.Millisecond
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 2 * time.Second
	}

	w := &Watcher{
		root:    root,
		cfg:     cfg,
		settled: make(chan string, 64),
		done:    make(chan struct{}),
		pending: make(map[string]*time.Timer),
		seen:    make(map[string]time.Time),
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		// Continue without inotify - poll the tree instead.
		w.scan(true)
		go w.pollLoop()
		return w, nil
	}
	w.watcher = fsw

	if err := w.addTree(root); err != nil {
		fsw.Close()
		w.watcher = nil
		w.scan(true)
		go w.pollLoop()
		return w, nil
	}

	go w.eventLoop()

	return w, nil
}

// Settled returns the channel of settled spec file paths.
func (w *Watcher) Settled() <-chan string {
	return w.settled
}

// Mode reports how changes are being detected.
func (w *Watcher) Mode() string {
	if w.watcher != nil {
		return "fsnotify"
	}
	return "poll"
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Close stops the watcher and cancels pending dispatches.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
		w.mu.Lock()
		for _, t := range w.pending {
			t.Stop()
		}
		w.pending = make(map[string]*time.Timer)
		w.mu.Unlock()
	})
}

// addTree registers every directory under root with the fsnotify watcher.
// fsnotify does not recurse on its own.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// eventLoop drains fsnotify events until the watcher is closed.
func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0 {
				w.handle(event.Name, event.Op)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Ignore errors, keep watching
		}
	}
}

// handle routes one fsnotify event: new directories extend the watch,
// spec file writes enter the settle debounce.
func (w *Watcher) handle(name string, op fsnotify.Op) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || skippable(rel) {
		return
	}

	if op&fsnotify.Create != 0 {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			w.addTree(name)
			return
		}
	}

	if strings.HasSuffix(name, specSuffix) {
		w.debounce(name)
	}
}

// debounce arms (or re-arms) the settle timer for a path.
func (w *Watcher) debounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.cfg.Settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.cfg.Settle, func() {
		w.deliver(path)
	})
}

// deliver dispatches a settled path to the consumer. Files that vanished
// during the settle window are dropped.
func (w *Watcher) deliver(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		return
	}

	select {
	case <-w.done:
	case w.settled <- path:
	}
}

// pollLoop rescans the tree at the configured interval.
func (w *Watcher) pollLoop() {
	ticker := time.NewTicker(w.cfg.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.scan(false)
		}
	}
}

// scan walks the tree comparing spec file mtimes against the last pass.
// With prime set it only records what exists, so files already on disk at
// startup are not dispatched.
func (w *Watcher) scan(prime bool) {
	filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] && path != w.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, specSuffix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		w.mu.Lock()
		last, known := w.seen[path]
		changed := !known || info.ModTime().After(last)
		if changed {
			w.seen[path] = info.ModTime()
		}
		w.mu.Unlock()

		if changed && !prime {
			w.debounce(path)
		}
		return nil
	})
}

// skippable reports whether any element of the relative path is a skip
// directory.
func skippable(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if skipDirs[part] {
			return true
		}
	}
	return false
}
