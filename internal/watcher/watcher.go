// Package watcher debounces filesystem events on the services directory
// into Reload Control Messages, so newly dropped *.service files are
// picked up without an operator explicitly hitting /reload.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kodflow/daemon/internal/control"
)

// debounce coalesces a burst of filesystem events (e.g. an editor's
// write-then-rename) into a single Reload message.
const debounce = 250 * time.Millisecond

// Watcher watches a single directory and posts Reload messages onto a
// Control Channel.
type Watcher struct {
	dir string
	ch  *control.Channel
}

// New creates a Watcher for dir, posting Reload messages to ch.
func New(dir string, ch *control.Channel) *Watcher {
	return &Watcher{dir: dir, ch: ch}
}

// Run watches until stop is closed, or until fsnotify.NewWatcher or
// watching the directory fails. Errors are logged to stderr; a failure to
// watch never keeps the daemon itself from starting (the directory was
// already scanned once before Run is called).
func (w *Watcher) Run(stop <-chan struct{}) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "watcher: %v\n", err)
		return
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		fmt.Fprintf(os.Stderr, "watcher: watching %s: %v\n", w.dir, err)
		return
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-stop:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !isServiceFileEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(debounce)
			}
		case <-timerC:
			w.ch.Post(control.Message{Kind: control.Reload})
			timer = nil
			timerC = nil
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "watcher: %v\n", err)
		}
	}
}

func isServiceFileEvent(event fsnotify.Event) bool {
	if filepath.Ext(event.Name) != ".service" {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}
