// Package daemonize implements the pre-main hook spec.md §1 calls out as
// a collaborator rather than core supervisor logic: working directory,
// umask, and pidfile bookkeeping around the daemon's real entry point.
//
// Fork/detach (true double-fork daemonization) is POSIX process surgery
// that has no idiomatic Go library in this pack (see DESIGN.md) and no
// portable stdlib primitive either; the foreground path below is fully
// implemented, and -daemonize is a narrow, explicitly labeled exec-reparent
// fallback rather than a from-scratch syscall implementation.
package daemonize

import (
	"fmt"
	"os"
	"os/exec"
)

// Options configures the pre-main hook.
type Options struct {
	// WorkDir is chdir'd into before the supervisor starts.
	WorkDir string
	// PIDFile, if non-empty, receives the running process's pid.
	PIDFile string
	// Umask, if non-zero, is applied via syscall.Umask on platforms that
	// support it (see umask_unix.go / umask_other.go).
	Umask int
	// Daemonize requests the process detach from its controlling
	// terminal. See Run's doc comment for the caveats of this path.
	Daemonize bool
}

// reexecEnv marks a child process as the already-detached re-exec, so a
// second Run doesn't fork again.
const reexecEnv = "GETUPD_REEXEC"

// Run applies WorkDir and Umask, and — if Daemonize is set and this isn't
// already the re-exec'd child — re-execs the current binary with stdio
// redirected to /dev/null and the parent exiting immediately. This is not
// a true double-fork: the re-exec'd child remains attached to the
// original process group and session. It is documented as such; a fully
// POSIX-correct daemonize needs setsid(2) and a real fork(2), which Go's
// runtime does not support safely after goroutines have started (see
// DESIGN.md). Callers that need a pid-1-correct daemon should run under
// an init system instead of -daemonize.
func Run(opts Options) error {
	if opts.WorkDir != "" {
		if err := os.Chdir(opts.WorkDir); err != nil {
			return fmt.Errorf("daemonize: chdir %s: %w", opts.WorkDir, err)
		}
	}

	applyUmask(opts.Umask)

	if opts.Daemonize && os.Getenv(reexecEnv) == "" {
		if err := reexecDetached(); err != nil {
			return fmt.Errorf("daemonize: detach: %w", err)
		}
		os.Exit(0)
	}

	if opts.PIDFile != "" {
		if err := WritePIDFile(opts.PIDFile); err != nil {
			return fmt.Errorf("daemonize: pidfile: %w", err)
		}
	}

	return nil
}

// reexecDetached re-execs argv[0] with the same arguments, redirecting
// stdin/stdout/stderr to /dev/null and marking the child so it does not
// recurse, then returns to the caller so main can os.Exit(0).
func reexecDetached() error {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer devNull.Close()

	self, err := os.Executable()
	if err != nil {
		return err
	}

	cmd := exec.Command(self, os.Args[1:]...)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.Env = append(os.Environ(), reexecEnv+"=1")
	return cmd.Start()
}

// WritePIDFile writes the current process's pid to path.
func WritePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}

// RemovePIDFile removes path, ignoring a not-exist error.
func RemovePIDFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
