// Package signals lets another process stop an in-flight run. `deepthink
// stop` drops a file into the signals directory and the running process
// notices it through fsnotify.
package signals

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const stopFile = "stop"

// Dir returns the signals directory under dataDir.
func Dir(dataDir string) string {
	return filepath.Join(dataDir, "signals")
}

// Watcher observes the signals directory for a stop request. A request
// stays pending until Clear, which also re-arms StopRequested, so one
// Watcher can serve many runs.
type Watcher struct {
	dir string

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher creates the signals directory if needed and starts watching it.
// If fsnotify is unavailable the watcher still works through ShouldStop.
func NewWatcher(dir string) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:    dir,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return w, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return w, nil
	}
	w.watcher = watcher

	go w.watch()

	return w, nil
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == stopFile && event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				// Events can arrive after Clear removed the file.
				if w.pending() {
					w.trigger()
				}
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) pending() bool {
	_, err := os.Stat(filepath.Join(w.dir, stopFile))
	return err == nil
}

func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		close(w.stopCh)
	}
}

// StopRequested returns a channel that is closed when a stop signal
// arrives. Clear replaces it, so fetch it again for every run.
func (w *Watcher) StopRequested() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopCh
}

// ShouldStop reports whether a stop signal has been received.
func (w *Watcher) ShouldStop() bool {
	// Also check the file directly in case the watcher missed it
	if w.pending() {
		w.trigger()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// Clear removes a pending stop file and re-arms the watcher. Call it before
// starting a run so a stale request does not stop it.
func (w *Watcher) Clear() error {
	err := os.Remove(filepath.Join(w.dir, stopFile))
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		w.stopped = false
		w.stopCh = make(chan struct{})
	}
	return err
}

// Close stops watching.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

// SendStop asks the process watching dir to stop its run.
func SendStop(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, stopFile), []byte(time.Now().Format(time.RFC3339)), 0644)
}
