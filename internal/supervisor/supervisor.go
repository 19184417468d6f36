// Package supervisor implements the Supervisor Loop: the single consumer
// of the Control Channel, dispatching Start/Stop/Restart/Reload/Shutdown
// against the Unit Registry and each unit's Service Runtime, and the
// restart-policy reconciler described in spec.md §4.4.
package supervisor

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kodflow/daemon/internal/control"
	"github.com/kodflow/daemon/internal/service"
	"github.com/kodflow/daemon/internal/unit"
)

// reconcilePoll bounds how quickly the reconciler notices a unit's service
// has left a running state. It intentionally doesn't need to be as tight
// as the Monitor's own 30ms poll.
const reconcilePoll = 50 * time.Millisecond

// ReloadFunc rescans the services directory, returning the number of newly
// loaded units. Supplied by cmd/getupd, backed by internal/loader.
type ReloadFunc func() (int, error)

// Loop is the Supervisor Loop.
type Loop struct {
	registry *unit.Registry
	channel  *control.Channel
	reload   ReloadFunc

	mu      sync.Mutex
	desired map[string]bool // unit Path -> operator wants it running
}

// New creates a Loop consuming from channel and dispatching against
// registry. reload may be nil if Reload messages should be ignored.
func New(registry *unit.Registry, channel *control.Channel, reload ReloadFunc) *Loop {
	return &Loop{
		registry: registry,
		channel:  channel,
		reload:   reload,
		desired:  make(map[string]bool),
	}
}

// Run consumes messages until a Shutdown message is dispatched, then stops
// every still-running unit and returns. It does not close the channel or
// touch the HTTP transport; per spec.md §4.6 that is the caller's job.
func (l *Loop) Run() {
	for m := range l.channel.Messages() {
		if l.dispatch(m) {
			return
		}
	}
}

// dispatch handles one message, returning true if it was Shutdown.
func (l *Loop) dispatch(m control.Message) bool {
	defer m.Ack()

	switch m.Kind {
	case control.Start:
		l.handleStart(m.Name)
	case control.Stop:
		l.handleStop(m.Name)
	case control.Restart:
		l.handleRestart(m.Name)
	case control.Reload:
		l.handleReload()
	case control.Shutdown:
		l.handleShutdown()
		return true
	}
	return false
}

func (l *Loop) handleStart(name string) {
	u, ok := l.registry.GetByName(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "supervisor: Start: unknown unit %q\n", name)
		return
	}
	l.setDesired(u.Path, true)
	if err := u.Service.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "supervisor: Start %s: %v\n", name, err)
		return
	}
	go l.reconcile(u)
}

func (l *Loop) handleStop(name string) {
	u, ok := l.registry.GetByName(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "supervisor: Stop: unknown unit %q\n", name)
		return
	}
	l.setDesired(u.Path, false)
	if err := u.Service.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "supervisor: Stop %s: %v\n", name, err)
	}
}

func (l *Loop) handleRestart(name string) {
	u, ok := l.registry.GetByName(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "supervisor: Restart: unknown unit %q\n", name)
		return
	}
	l.setDesired(u.Path, true)
	if err := u.Service.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "supervisor: Restart %s: stop: %v\n", name, err)
	}
	if err := u.Service.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "supervisor: Restart %s: start: %v\n", name, err)
		return
	}
	go l.reconcile(u)
}

func (l *Loop) handleReload() {
	if l.reload == nil {
		return
	}
	n, err := l.reload()
	if err != nil {
		fmt.Fprintf(os.Stderr, "supervisor: Reload: %v\n", err)
		return
	}
	if n > 0 {
		fmt.Fprintf(os.Stderr, "supervisor: Reload: loaded %d new unit(s)\n", n)
	}
}

// handleShutdown stops every unit whose service is Starting or Running. It
// does not wait on units that were already terminal.
func (l *Loop) handleShutdown() {
	var wg sync.WaitGroup
	for _, u := range l.registry.All() {
		st := u.Service.Status()
		if st != service.Starting && st != service.Running {
			continue
		}
		wg.Add(1)
		go func(u *unit.Unit) {
			defer wg.Done()
			l.setDesired(u.Path, false)
			if err := u.Service.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "supervisor: Shutdown: stopping %s: %v\n", u.Service.Name(), err)
			}
		}(u)
	}
	wg.Wait()
}

func (l *Loop) setDesired(path string, want bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.desired[path] = want
}

func (l *Loop) isDesired(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.desired[path]
}
