//go:build darwin

package launch

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// DetectHost returns the native OS and architecture. An amd64 binary running
// under Rosetta reports arm64, since that is the hardware the library
// decision depends on.
func DetectHost() Host {
	arch := runtime.GOARCH
	if arch == "amd64" {
		if translated, err := unix.SysctlUint32("sysctl.proc_translated"); err == nil && translated == 1 {
			arch = "arm64"
		}
	}
	return Host{OS: runtime.GOOS, Arch: arch}
}

// Personal.AI order the ending
