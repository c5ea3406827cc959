package engine

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/shader"
	"github.com/fsnotify/fsnotify"
)

// Watcher collects file system events for shader source files.
//
// The parent directory of every registered file is watched rather than the file itself, so
// editors that save by writing a temporary file and renaming it over the original are still seen.
// Events for files that are not registered are dropped. Inline WGSL sources are never watched.
// All methods are safe for concurrent use and on a nil *Watcher.
type Watcher struct {
	mu sync.Mutex

	fs      *fsnotify.Watcher
	files   map[string]map[string]int // absolute path -> registered identifier -> reference count
	dirs    map[string]int            // watched directory -> number of registered files inside it
	changed map[string]struct{}       // absolute paths written since the last Poll
	closed  bool
}

// NewWatcher creates a watcher for the given shader source identifiers.
//
// Parameters:
//   - paths: file paths to watch, inline sources are ignored
//
// Returns:
//   - *Watcher: the new watcher
//   - error: an error if a path's directory could not be watched, the other paths are still registered
func NewWatcher(paths ...string) (*Watcher, error) {
	w := newWatcher()
	return w, w.Add(paths...)
}

func newWatcher() *Watcher {
	return &Watcher{
		files:   make(map[string]map[string]int),
		dirs:    make(map[string]int),
		changed: make(map[string]struct{}),
	}
}

// Add registers paths. Registering the same identifier twice requires two calls to Remove.
// The fsnotify watcher is started on the first registered file. A file that does not exist yet
// is reported once it is created, as long as its directory exists.
//
// Parameters:
//   - paths: file paths to watch, empty and inline sources are ignored
//
// Returns:
//   - error: the joined errors of paths whose directory could not be watched
func (w *Watcher) Add(paths ...string) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("watcher: closed")
	}

	var errs []error
	for _, p := range paths {
		if p == "" || shader.IsInlineSource(p) {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("watch %s: %w", p, err))
			continue
		}
		if ids, ok := w.files[abs]; ok {
			ids[p]++
			continue
		}
		if err := w.watchDirLocked(filepath.Dir(abs)); err != nil {
			errs = append(errs, fmt.Errorf("watch %s: %w", p, err))
			continue
		}
		w.files[abs] = map[string]int{p: 1}
	}
	return errors.Join(errs...)
}

// watchDirLocked adds one reference to dir, starting the fsnotify watcher and watching dir as needed.
func (w *Watcher) watchDirLocked(dir string) error {
	if w.dirs[dir] > 0 {
		w.dirs[dir]++
		return nil
	}
	if w.fs == nil {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		w.fs = fw
		go w.run(fw)
	}
	if err := w.fs.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = 1
	return nil
}

// Remove drops one registration of each path. The path stops being watched, and pending
// changes for it are discarded, once every Add has been matched by a Remove.
//
// Parameters:
//   - paths: file paths to stop watching
func (w *Watcher) Remove(paths ...string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, p := range paths {
		if p == "" || shader.IsInlineSource(p) {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		ids, ok := w.files[abs]
		if !ok || ids[p] == 0 {
			continue
		}
		if ids[p]--; ids[p] > 0 {
			continue
		}
		delete(ids, p)
		if len(ids) > 0 {
			continue
		}
		delete(w.files, abs)
		delete(w.changed, abs)

		dir := filepath.Dir(abs)
		if w.dirs[dir]--; w.dirs[dir] <= 0 {
			delete(w.dirs, dir)
			if w.fs != nil {
				_ = w.fs.Remove(dir)
			}
		}
	}
}

// Paths returns the registered identifiers in sorted order.
//
// Returns:
//   - []string: the watched paths
func (w *Watcher) Paths() []string {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var paths []string
	for _, ids := range w.files {
		for id := range ids {
			paths = append(paths, id)
		}
	}
	sort.Strings(paths)
	return paths
}

// Poll returns the identifiers of every registered file written or created since the last poll.
// A file that is removed is not reported until it is written back.
//
// Returns:
//   - []string: the changed paths in sorted order, nil when nothing changed
func (w *Watcher) Poll() []string {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var changed []string
	for abs := range w.changed {
		for id := range w.files[abs] {
			changed = append(changed, id)
		}
		delete(w.changed, abs)
	}
	sort.Strings(changed)
	return changed
}

// Close stops the fsnotify watcher. Calling Close more than once is a no-op.
//
// Returns:
//   - error: an error if the underlying watcher failed to close
func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	fw := w.fs
	w.fs = nil
	w.closed = true
	w.mu.Unlock()

	if fw == nil {
		return nil
	}
	return fw.Close()
}

// run records write and create events for registered files until fw is closed.
func (w *Watcher) run(fw *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			abs := filepath.Clean(ev.Name)
			w.mu.Lock()
			if _, ok := w.files[abs]; ok {
				w.changed[abs] = struct{}{}
			}
			w.mu.Unlock()
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			log.Printf("[Engine] shader watcher: %v", err)
		}
	}
}
