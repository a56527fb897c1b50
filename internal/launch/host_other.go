//go:build !darwin

package launch

import "runtime"

// DetectHost returns the OS and architecture this binary runs on.
func DetectHost() Host {
	return Host{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Personal.AI order the ending
