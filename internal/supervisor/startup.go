// Package supervisor launches the recognizer worker and supervises its
// startup handshake.
package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/turtacn/Auris/internal/console"
	"github.com/turtacn/Auris/internal/launch"
	"github.com/turtacn/Auris/internal/lifecycle"
	"github.com/turtacn/Auris/internal/monitor"
	"github.com/turtacn/Auris/internal/registry"
	"github.com/turtacn/Auris/pkg/consts"
	aerrors "github.com/turtacn/Auris/pkg/errors"
	"github.com/turtacn/Auris/pkg/logger"
)

// ModelChecker validates prerequisites before a worker is launched.
type ModelChecker interface {
	Check() error
}

// StrategyResolver supplies the launch strategy.
type StrategyResolver interface {
	Strategy() launch.Strategy
}

// ConsoleReporter renders user-facing startup status.
type ConsoleReporter interface {
	ServingStarted()
	StartupFailed(exitCode int, causes []string)
	StartupCancelled()
}

// Shutdowner is a ShutdownSignal the supervisor can also raise.
type Shutdowner interface {
	ShutdownSignal
	Request() bool
}

// resettable registries are cleared before a new worker starts.
type resettable interface {
	Reset(ctx context.Context) error
}

// CrashCauses lists the usual reasons a worker dies while loading its model.
var CrashCauses = []string{
	"Model file missing or corrupt",
	"Native inference library does not match the system architecture",
	"Insufficient memory or other system resources",
	"Executable architecture does not match the inference library (x86_64 vs arm64)",
}

// Supervisor starts the recognizer worker. Only one startup runs at a time.
type Supervisor struct {
	mu sync.Mutex

	command  []string
	env      []string
	checker  ModelChecker
	resolver StrategyResolver
	reporter ConsoleReporter
	registry registry.Registry
	ownedDir string // set when registry was opened by the supervisor
	shutdown Shutdowner
	stdin    *os.File
	interval time.Duration
	log      logger.Logger
}

// New creates a Supervisor for the given worker command. Without
// WithRegistry a SQLite registry is opened in a temporary directory on the
// first start and removed by Close.
func New(command []string, opts ...Option) *Supervisor {
	s := &Supervisor{
		command:  command,
		shutdown: lifecycle.Default,
		stdin:    os.Stdin,
		interval: consts.DefaultPollInterval,
		log:      logger.Log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		exe := ""
		if len(command) > 0 {
			exe = command[0]
		}
		s.resolver = launch.NewResolver(runtime.GOARCH, exe)
	}
	if s.reporter == nil {
		s.reporter = console.NewReporter()
	}
	return s
}

// Check runs the model prerequisite check on its own.
func (s *Supervisor) Check() error {
	if s.checker == nil {
		return nil
	}
	return s.checker.Check()
}

// Close releases a registry the supervisor opened itself.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownedDir == "" {
		return nil
	}
	err := s.registry.Close()
	os.RemoveAll(s.ownedDir)
	s.registry, s.ownedDir = nil, ""
	return err
}

func (s *Supervisor) connectionRegistry(ctx context.Context) (registry.Registry, error) {
	if s.registry != nil {
		return s.registry, nil
	}
	dir, err := os.MkdirTemp("", "auris-")
	if err != nil {
		return nil, aerrors.New(aerrors.ErrCodeRegistryFailed, "StartRecognizer", "failed to create registry directory", err)
	}
	reg, err := registry.OpenSQLite(ctx, filepath.Join(dir, consts.DefaultRegistryFile))
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	s.registry, s.ownedDir = reg, dir
	return reg, nil
}

// StartRecognizer checks prerequisites, launches the worker, and waits for
// its readiness handshake.
//
// On Ready the running worker is returned. If the worker exits first,
// shutdown is requested and a *errors.StartupError carrying the exit code is
// returned. If shutdown is requested first, the worker is killed and returned
// with a nil error: cancellation is not a failure.
func (s *Supervisor) StartRecognizer(ctx context.Context) (*WorkerProcess, error) {
	if !s.mu.TryLock() {
		return nil, aerrors.New(aerrors.ErrCodeAlreadyStarting, "StartRecognizer", "a recognizer startup is already in progress", nil)
	}
	defer s.mu.Unlock()

	attempt := uuid.New().String()
	log := s.log.With("attempt", attempt)

	if err := s.Check(); err != nil {
		log.Error("Model check failed", "err", err)
		return nil, err
	}

	strategy := s.resolver.Strategy()
	log.Info("Launch strategy resolved", "start_method", strategy.StartMethod, "override", strategy.ExecutableOverride, "rationale", strategy.Rationale)

	reg, err := s.connectionRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if r, ok := reg.(resettable); ok {
		if err := r.Reset(ctx); err != nil {
			return nil, aerrors.New(aerrors.ErrCodeRegistryFailed, "StartRecognizer", "failed to reset connection registry", err)
		}
	}

	wp, err := NewWorkerProcess(ProcessConfig{
		Command:   s.command,
		Env:       s.env,
		Strategy:  strategy,
		Registry:  reg,
		Stdin:     s.stdin,
		AttemptID: attempt,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	if err := wp.Start(); err != nil {
		log.Error("Failed to launch recognizer worker", "err", err)
		return nil, err
	}
	log = log.With("pid", wp.PID())
	log.Info("Recognizer worker started, waiting for model to load")

	begin := time.Now()
	verdict, err := Watch(ctx, wp, s.shutdown, s.interval)
	if err != nil {
		log.Error("Readiness channel failed", "err", err)
		wp.Terminate()
		wp.Close()
		return nil, err
	}
	monitor.ObserveStartup(verdict.Kind.String(), time.Since(begin).Seconds())

	switch verdict.Kind {
	case Ready:
		log.Info("Model loaded, serving started", "ticks", verdict.Ticks)
		wp.markReady()
		s.reporter.ServingStarted()
		return wp, nil

	case Crashed:
		log.Error("Recognizer worker exited unexpectedly", "exit_code", verdict.ExitCode)
		s.reporter.StartupFailed(verdict.ExitCode, CrashCauses)
		s.shutdown.Request()
		wp.Close()
		return nil, &aerrors.StartupError{ExitCode: verdict.ExitCode}

	default:
		log.Warn("Shutdown requested while loading model")
		s.reporter.StartupCancelled()
		if err := wp.Terminate(); err != nil {
			log.Error("Failed to terminate recognizer worker", "err", err)
		}
		return wp, nil
	}
}

// Personal.AI order the ending
