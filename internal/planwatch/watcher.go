// Package planwatch watches a plan file on disk for changes and emits
// debounced change events, for dev/CI-less setups that trigger a manual
// coordination cycle off a local edit instead of a forge webhook.
package planwatch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher monitors one plan file for writes and renames-into-place
// (common with editors that write a temp file then rename over the
// original), debouncing rapid successive writes into a single event.
type Watcher struct {
	path     string
	debounce time.Duration

	fsw    *fsnotify.Watcher
	events chan struct{}

	timerMu sync.Mutex
	timer   *time.Timer

	stopCh    chan struct{}
	stoppedCh chan struct{}

	runningMu sync.Mutex
	running   bool
}

// New builds a Watcher for the plan file at path.
func New(path string) *Watcher {
	return &Watcher{
		path:      path,
		debounce:  defaultDebounce,
		events:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start begins watching. The parent directory is watched rather than
// the file itself so renames-into-place (which replace the inode) are
// still observed.
func (w *Watcher) Start() error {
	w.runningMu.Lock()
	defer w.runningMu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}
	w.fsw = fsw
	w.running = true
	go w.loop()
	return nil
}

// Stop terminates the watcher and closes the Events channel.
func (w *Watcher) Stop() {
	w.runningMu.Lock()
	if !w.running {
		w.runningMu.Unlock()
		return
	}
	w.running = false
	w.runningMu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh
	w.fsw.Close()

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()

	close(w.events)
}

// Events delivers one signal per debounced change to the watched file.
// The channel is buffered to 1; a pending signal is not duplicated.
func (w *Watcher) Events() <-chan struct{} { return w.events }

func (w *Watcher) loop() {
	defer close(w.stoppedCh)
	target := filepath.Base(w.path)

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.debounceSignal()
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) debounceSignal() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.emit)
}

func (w *Watcher) emit() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
