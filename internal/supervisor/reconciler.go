package supervisor

import (
	"time"

	"github.com/kodflow/daemon/internal/control"
	"github.com/kodflow/daemon/internal/service"
	"github.com/kodflow/daemon/internal/unit"
)

// reconcile waits for u's service to leave a running state, then applies
// the restart-policy decision from spec.md §4.4. It is started once per
// successful Start/Restart dispatch and exits once it has made its
// decision (or once the unit was intentionally stopped).
func (l *Loop) reconcile(u *unit.Unit) {
	for {
		st := u.Service.Status()
		if st != service.Starting && st != service.Running && st != service.Stopping {
			break
		}
		time.Sleep(reconcilePoll)
	}

	if !l.isDesired(u.Path) {
		// Stop() was called for this unit; do not second-guess the operator.
		return
	}

	snap := u.Service.Snapshot()
	if !shouldRestart(snap) {
		return
	}

	l.channel.Post(control.Message{Kind: control.Start, Name: u.Service.Name()})
}

// shouldRestart implements the restart-policy decision table, including
// the open-question resolution that a signal-terminated child never
// restarts under OnFailure even though it is not a clean exit.
func shouldRestart(snap service.Snapshot) bool {
	switch snap.RestartPolicy {
	case service.RestartAlways:
		return true
	case service.RestartOnFailure:
		if snap.ExitStatus == nil {
			return false
		}
		return snap.ExitStatus.Signal == "" && snap.ExitStatus.Code != 0
	default: // RestartNever
		return false
	}
}
