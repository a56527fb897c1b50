// Package launch decides how the recognizer worker process is invoked.
//
// Some native inference libraries are only shipped for amd64. On an arm64
// Mac the worker then has to run under Rosetta, which means it must be
// started as a fresh process through the `arch -x86_64` wrapper instead of
// inheriting the supervisor's state.
package launch

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/turtacn/Auris/pkg/consts"
)

// StartMethod is the process-creation strategy used for the worker.
type StartMethod string

const (
	// Fork starts the worker with a copy of the supervisor's environment.
	Fork StartMethod = "fork"
	// Spawn starts the worker from a minimal environment.
	Spawn StartMethod = "spawn"
)

// Valid reports whether m names a known start method.
func (m StartMethod) Valid() bool {
	return m == Fork || m == Spawn
}

// Host describes the machine the supervisor runs on. Arch is the native
// hardware architecture, not necessarily the one this binary was built for.
type Host struct {
	OS   string `yaml:"os"`
	Arch string `yaml:"arch"`
}

// Strategy is the immutable launch decision for the worker.
type Strategy struct {
	StartMethod StartMethod `yaml:"start_method"`
	// ExecutableOverride replaces the worker command's executable when set:
	// wrapper argv followed by the executable itself.
	ExecutableOverride []string `yaml:"executable_override,omitempty"`
	Rationale          string   `yaml:"rationale"`
}

// Command returns the argv used to start the worker.
func (s Strategy) Command(command []string) []string {
	if len(s.ExecutableOverride) == 0 || len(command) == 0 {
		return append([]string(nil), command...)
	}
	argv := append([]string(nil), s.ExecutableOverride...)
	return append(argv, command[1:]...)
}

// spawnEnvAllowlist is what a spawned worker inherits from the supervisor.
var spawnEnvAllowlist = []string{"PATH", "HOME", "TMPDIR", "LANG", "LC_ALL", "USER", "SYSTEMROOT"}

// Environ returns the worker environment: base filtered by start method,
// followed by extra.
func (s Strategy) Environ(base []string, extra ...string) []string {
	var env []string
	if s.StartMethod == Spawn {
		for _, kv := range base {
			key, _, _ := strings.Cut(kv, "=")
			for _, allowed := range spawnEnvAllowlist {
				if key == allowed {
					env = append(env, kv)
					break
				}
			}
		}
	} else {
		env = append(env, base...)
	}
	return append(env, extra...)
}

var (
	startMu    sync.Mutex
	startFixed StartMethod
)

func init() {
	if m := StartMethod(os.Getenv(consts.EnvStartMethod)); m.Valid() {
		startFixed = m
	}
}

// CurrentStartMethod returns the process-wide start method and whether it
// has been fixed yet.
func CurrentStartMethod() (StartMethod, bool) {
	startMu.Lock()
	defer startMu.Unlock()
	return startFixed, startFixed != ""
}

// FixStartMethod sets the process-wide start method if it is not fixed yet.
// When it is already fixed the call is a no-op; the active method is
// returned either way.
func FixStartMethod(m StartMethod) (active StartMethod, changed bool) {
	startMu.Lock()
	defer startMu.Unlock()
	if startFixed != "" {
		return startFixed, false
	}
	startFixed = m
	return m, true
}

// RequiresTranslation reports whether a library built for libArch cannot
// be loaded natively on host and has to run under Rosetta.
func RequiresTranslation(host Host, libArch string) bool {
	return host.OS == "darwin" && host.Arch == "arm64" && libArch == "amd64"
}

// Resolve computes the launch strategy for host. It never fails and is
// idempotent: once the process-wide start method is fixed, later calls
// observe the same value.
func Resolve(host Host, libArch, executable string) Strategy {
	if RequiresTranslation(host, libArch) {
		active, _ := FixStartMethod(Spawn)
		rationale := fmt.Sprintf("%s/%s host with %s inference library: worker runs under Rosetta", host.OS, host.Arch, libArch)
		if active != Spawn {
			rationale += fmt.Sprintf("; start method already fixed to %s", active)
		}
		return Strategy{
			StartMethod:        active,
			ExecutableOverride: []string{"arch", "-x86_64", executable},
			Rationale:          rationale,
		}
	}

	method := Fork
	if active, ok := CurrentStartMethod(); ok {
		method = active
	}
	return Strategy{
		StartMethod: method,
		Rationale:   fmt.Sprintf("%s/%s host runs %s inference library natively", host.OS, host.Arch, libArch),
	}
}

// Resolver computes the strategy at most once for its lifetime.
type Resolver struct {
	Host        Host
	LibraryArch string
	Executable  string

	once     sync.Once
	strategy Strategy
}

// NewResolver returns a Resolver for the current host.
func NewResolver(libArch, executable string) *Resolver {
	return &Resolver{
		Host:        DetectHost(),
		LibraryArch: libArch,
		Executable:  executable,
	}
}

// Strategy returns the cached launch decision.
func (r *Resolver) Strategy() Strategy {
	r.once.Do(func() {
		r.strategy = Resolve(r.Host, r.LibraryArch, r.Executable)
	})
	return r.strategy
}

// Personal.AI order the ending
