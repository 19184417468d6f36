package service

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kodflow/daemon/internal/kernel"
)

// GracefulTimeout is the window between the graceful termination signal
// and SIGKILL. Not per-service configurable in this version.
const GracefulTimeout = 10 * time.Second

// pollInterval bounds how quickly the Monitor notices a child has exited.
const pollInterval = 30 * time.Millisecond

// Config is the immutable part of a Service Runtime, produced by the
// Loader from a unit file's [Service] section.
type Config struct {
	Name                  string
	ServiceType           string
	ExecStart             string
	ExecReload            string
	CapabilityBoundingSet string
	NoNewPrivs            bool
	RestartPolicy         RestartPolicy
}

// Runtime is the mutable per-service state described in spec.md §3: child
// handle, exit status, and current phase, serialised by mu. Only one
// spawn is outstanding per service at any time (Start is the only place a
// child is created, and it refuses while a child is live).
type Runtime struct {
	mu sync.Mutex

	cfg Config

	currentState State
	cmd          *exec.Cmd
	exitStatus   *ExitStatus

	// cancel is read by the Monitor goroutine spawned from Start; setting
	// it requests a graceful-then-forced stop. It is the single mechanism
	// behind both Stop() and a supervisor-wide Shutdown.
	cancel atomic.Bool
	// done is closed by the Monitor once it has recorded the child's exit.
	done chan struct{}
	// waitCh receives exactly one value, produced by the dedicated waiter
	// goroutine started in Start, so tryWait can poll non-blockingly
	// without violating exec.Cmd's single-Wait-call contract.
	waitCh chan *ExitStatus

	stdout io.Writer
}

// New creates a Runtime in the Stopped state from a parsed configuration.
func New(cfg Config) *Runtime {
	return &Runtime{cfg: cfg, currentState: Stopped}
}

// SetStdout sets the writer the child's stdout is piped to when started.
// stderr is always inherited per spec.md §4.2.
func (r *Runtime) SetStdout(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stdout = w
}

// Name returns the service's configured name (the unit it belongs to).
func (r *Runtime) Name() string {
	return r.cfg.Name
}

// RestartPolicyValue returns the configured restart policy.
func (r *Runtime) RestartPolicyValue() RestartPolicy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.RestartPolicy
}

// Status returns a snapshot of the current state.
func (r *Runtime) Status() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentState
}

// PID returns the child's process id, or 0 if no child is live.
func (r *Runtime) PID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil || r.cmd.Process == nil {
		return 0
	}
	return r.cmd.Process.Pid
}

// Start tokenises ExecStart on ASCII whitespace and spawns the child.
// Calling Start while a child is live is a programmer error and returns
// an error rather than leaking the previous child (see spec.md §4.2).
func (r *Runtime) Start() error {
	r.mu.Lock()
	if r.currentState == Starting || r.currentState == Running || r.currentState == Stopping {
		r.mu.Unlock()
		return fmt.Errorf("service %s: start called while child is live (state=%s)", r.cfg.Name, r.currentState)
	}

	argv := strings.Fields(r.cfg.ExecStart)
	if len(argv) == 0 {
		r.currentState = Failed
		r.mu.Unlock()
		return fmt.Errorf("service %s: empty ExecStart", r.cfg.Name)
	}

	r.currentState = Starting
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stderr = os.Stderr
	if r.stdout != nil {
		cmd.Stdout = r.stdout
	}

	if err := cmd.Start(); err != nil {
		r.currentState = Failed
		r.exitStatus = nil
		r.mu.Unlock()
		return fmt.Errorf("service %s: spawn: %w", r.cfg.Name, err)
	}

	r.cmd = cmd
	r.currentState = Running
	r.exitStatus = nil
	r.cancel.Store(false)
	r.done = make(chan struct{})
	r.waitCh = make(chan *ExitStatus, 1)
	done := r.done
	waitCh := r.waitCh
	r.mu.Unlock()

	go func() {
		waitErr := cmd.Wait()
		waitCh <- exitStatusFromError(waitErr)
	}()

	go newMonitor(r, done).run()
	return nil
}

// Stop idempotently requests the child terminate: it is a no-op unless
// the service is Starting or Running, after which it blocks the caller
// for at most GracefulTimeout + epsilon while the Monitor performs the
// graceful-signal-then-SIGKILL sequence and records the exit.
func (r *Runtime) Stop() error {
	r.mu.Lock()
	if r.currentState != Starting && r.currentState != Running {
		r.mu.Unlock()
		return nil
	}
	r.currentState = Stopping
	done := r.done
	r.mu.Unlock()

	r.cancel.Store(true)

	select {
	case <-done:
	case <-time.After(GracefulTimeout + 500*time.Millisecond):
		// The Monitor missed its own deadline (e.g. blocked wait); force it.
		r.Kill()
		<-done
	}
	return nil
}

// Kill sends SIGKILL to the child unconditionally, used by the Monitor
// once the graceful grace period has elapsed.
func (r *Runtime) Kill() error {
	pid := r.PID()
	if pid == 0 {
		return nil
	}
	return kernel.Kill(pid)
}

// sendGraceful sends the graceful termination signal, classifying kill(2)
// failures per spec.md §4.2 step 7.
func (r *Runtime) sendGraceful() error {
	pid := r.PID()
	if pid == 0 {
		return nil
	}
	return kernel.Send(pid, kernel.GracefulSignal)
}

// tryWait performs a non-blocking poll of the child; absent means still
// running.
func (r *Runtime) tryWait() (*ExitStatus, bool) {
	r.mu.Lock()
	waitCh := r.waitCh
	r.mu.Unlock()
	if waitCh == nil {
		return nil, false
	}
	select {
	case status := <-waitCh:
		return status, true
	default:
		return nil, false
	}
}

// setStopping marks the service Stopping when the Monitor observes a
// cancellation. Stop() (which a supervisor-wide Shutdown also goes
// through) has normally set Stopping already, so this only changes a
// service still Starting or Running. A requested stop always lands on Stopped
// regardless of the child's exit status; only an unprompted exit while
// Running is judged by exit code for the Stopped/Failed split.
func (r *Runtime) setStopping() {
	r.mu.Lock()
	if r.currentState == Starting || r.currentState == Running {
		r.currentState = Stopping
	}
	r.mu.Unlock()
}

// recordExit is invoked exactly once, by the Monitor, to transition the
// service out of a running state. It is the only writer of exitStatus and
// of the Running/Stopping -> Stopped|Failed edge.
func (r *Runtime) recordExit(status *ExitStatus) {
	r.mu.Lock()
	r.exitStatus = status
	if r.currentState == Stopping {
		// A requested stop: graceful exit or forced SIGKILL both land here.
		r.currentState = Stopped
	} else if status != nil && !status.Exited() {
		r.currentState = Failed
	} else {
		r.currentState = Stopped
	}
	r.cmd = nil
	r.mu.Unlock()
}

// markGone transitions the service straight to Stopped without an
// exit status, used when kill(2) reports the process is already gone.
func (r *Runtime) markGone() {
	r.mu.Lock()
	r.exitStatus = nil
	r.currentState = Stopped
	r.cmd = nil
	r.mu.Unlock()
}

// Snapshot is the read-only view of a Runtime used for JSON serialization
// and for restart-policy decisions. child and exit_status are deliberately
// excluded from the JSON-facing fields per spec.md §4.1.
type Snapshot struct {
	ServiceType           string
	ExecStart             string
	ExecReload            string
	Restart               *RestartPolicy
	CapabilityBoundingSet string
	NoNewPrivs            bool
	CurrentState          State
	RestartPolicy         RestartPolicy
	ExitStatus            *ExitStatus
}

// Snapshot returns a consistent read of every field, including the ones
// never serialized, for internal use (e.g. the restart reconciler).
func (r *Runtime) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		ServiceType:           r.cfg.ServiceType,
		ExecStart:             r.cfg.ExecStart,
		ExecReload:            r.cfg.ExecReload,
		Restart:               nil, // carried parse artifact; the loader never populates it
		CapabilityBoundingSet: r.cfg.CapabilityBoundingSet,
		NoNewPrivs:            r.cfg.NoNewPrivs,
		CurrentState:          r.currentState,
		RestartPolicy:         r.cfg.RestartPolicy,
		ExitStatus:            r.exitStatus,
	}
}
