//go:build unix

package daemonize

import "syscall"

// applyUmask sets the process umask when mask is non-zero.
func applyUmask(mask int) {
	if mask != 0 {
		syscall.Umask(mask)
	}
}
