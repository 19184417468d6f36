package service

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kodflow/daemon/internal/kernel"
)

// monitor polls a single live child and reacts to its exit or to a
// cancellation request. It is the only writer of a Runtime's exitStatus
// and of its Running -> Stopped|Failed transition (spec.md §4.3).
type monitor struct {
	runtime *Runtime
	done    chan struct{}
}

func newMonitor(r *Runtime, done chan struct{}) *monitor {
	return &monitor{runtime: r, done: done}
}

// run is the Monitor loop. Each iteration: if a cancellation has been
// requested, drive the graceful-signal-then-SIGKILL sequence; then
// non-blockingly poll for the child's exit.
func (m *monitor) run() {
	defer close(m.done)

	var cancelling bool
	var cancelledAt time.Time
	var killed bool

	for {
		if m.runtime.cancel.Load() {
			if !cancelling {
				cancelling = true
				cancelledAt = time.Now()
				m.runtime.setStopping()
				if err := m.runtime.sendGraceful(); err != nil {
					switch {
					case errors.Is(err, kernel.ErrInvalidSignal):
						// Escalate straight to SIGKILL (spec.md §4.2 step 7).
						m.runtime.Kill()
						killed = true
					case errors.Is(err, kernel.ErrProcessNotFound):
						// Already gone; nothing left to signal or wait for.
						m.runtime.markGone()
						return
					case errors.Is(err, kernel.ErrPermissionDenied):
						fmt.Fprintf(os.Stderr, "service %s: permission denied sending graceful signal: %v\n", m.runtime.Name(), err)
					}
				}
			}
			if !killed && time.Since(cancelledAt) >= GracefulTimeout {
				m.runtime.Kill()
				killed = true
				// Rearm so a subsequent iteration (there shouldn't be one
				// once the child exits) is a no-op rather than re-killing.
				m.runtime.cancel.Store(false)
			}
		}

		if status, exited := m.runtime.tryWait(); exited {
			if status == nil {
				fmt.Fprintf(os.Stderr, "service %s: failed to wait for child\n", m.runtime.Name())
				return
			}
			m.runtime.recordExit(status)
			return
		}

		time.Sleep(pollInterval)
	}
}
