//go:build unix

package kernel

import "syscall"

func errProcessNotFound() error  { return syscall.ESRCH }
func errPermissionDenied() error { return syscall.EPERM }
func errInvalidSignal() error    { return syscall.EINVAL }
