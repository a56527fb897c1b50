//go:build unix

package ipc

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsTransient reports whether err is an interrupted system call that should
// be retried.
func IsTransient(err error) bool {
	return errors.Is(err, unix.EINTR)
}

// isPipe reports whether fd refers to a pipe (FIFO).
func isPipe(fd uintptr) bool {
	var stat unix.Stat_t
	if err := unix.Fstat(int(fd), &stat); err != nil {
		return false
	}
	return stat.Mode&unix.S_IFMT == unix.S_IFIFO
}

// Personal.AI order the ending
