//go:build !unix

package ipc

import (
	"errors"
	"syscall"
)

func IsTransient(err error) bool {
	return errors.Is(err, syscall.EINTR)
}

// Descriptor inheritance is only supported on unix; on other platforms the
// descriptor is trusted as-is.
func isPipe(fd uintptr) bool {
	return true
}

// Personal.AI order the ending
