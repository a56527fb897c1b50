package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/turtacn/Auris/internal/ipc"
	"github.com/turtacn/Auris/internal/launch"
	"github.com/turtacn/Auris/internal/monitor"
	"github.com/turtacn/Auris/internal/registry"
	"github.com/turtacn/Auris/pkg/consts"
	aerrors "github.com/turtacn/Auris/pkg/errors"
	"github.com/turtacn/Auris/pkg/logger"
	"github.com/turtacn/Auris/pkg/protocol"
)

// ProcessConfig describes how to build a WorkerProcess.
type ProcessConfig struct {
	Command  []string
	Env      []string // Extra KEY=VALUE pairs
	Strategy launch.Strategy
	Registry registry.Registry
	// Stdin is handed to the worker as its standard input. Nil means the
	// null device.
	Stdin     *os.File
	AttemptID string
	// Logger defaults to logger.Log.
	Logger logger.Logger
}

// WorkerProcess owns a recognizer worker: its command line, the inbound and
// outbound channels, and the shared connection registry.
type WorkerProcess struct {
	cmd      *exec.Cmd
	argv     []string
	pipes    *ipc.Pipes
	registry registry.Registry
	log      logger.Logger

	msgs <-chan protocol.Message
	errs <-chan error

	stop     chan struct{}
	stopOnce sync.Once

	exited   chan struct{}
	mu       sync.Mutex
	exitCode int
	waitErr  error
	ready    bool
}

// NewWorkerProcess prepares the worker command and its channels without
// starting it.
func NewWorkerProcess(cfg ProcessConfig) (*WorkerProcess, error) {
	argv := cfg.Strategy.Command(cfg.Command)
	if len(argv) == 0 {
		return nil, aerrors.New(aerrors.ErrCodeConfigInvalid, "NewWorkerProcess", "worker command is empty", nil)
	}

	if cfg.Registry == nil || cfg.Registry.Location() == "" {
		return nil, aerrors.New(aerrors.ErrCodeConfigInvalid, "NewWorkerProcess", "connection registry must be shareable with the worker", nil)
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Log
	}

	pipes, err := ipc.NewPipes()
	if err != nil {
		return nil, aerrors.New(aerrors.ErrCodeProcessStartFail, "NewWorkerProcess", "failed to create worker channels", err)
	}

	extra := []string{
		pipes.Env(),
		fmt.Sprintf("%s=%s", consts.EnvStartMethod, cfg.Strategy.StartMethod),
	}
	extra = append(extra, fmt.Sprintf("%s=%s", consts.EnvRegistryPath, cfg.Registry.Location()))
	if cfg.AttemptID != "" {
		extra = append(extra, fmt.Sprintf("%s=%s", consts.EnvAttemptID, cfg.AttemptID))
	}
	extra = append(extra, cfg.Env...)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = cfg.Strategy.Environ(os.Environ(), extra...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if cfg.Stdin != nil {
		cmd.Stdin = cfg.Stdin
	}
	cmd.ExtraFiles = pipes.ChildFiles()

	return &WorkerProcess{
		cmd:      cmd,
		argv:     argv,
		pipes:    pipes,
		registry: cfg.Registry,
		log:      log,
		stop:     make(chan struct{}),
		exited:   make(chan struct{}),
	}, nil
}

// Start launches the worker and returns as soon as the OS process exists.
// Model loading proceeds in the worker concurrently.
func (wp *WorkerProcess) Start() error {
	wp.log.Info("Supervisor: Launching recognizer worker", "cmd", wp.argv)
	if err := wp.cmd.Start(); err != nil {
		wp.pipes.Close()
		return aerrors.New(aerrors.ErrCodeProcessStartFail, "Start", "failed to launch recognizer worker", err)
	}
	wp.pipes.ReleaseChildEnds()
	wp.msgs, wp.errs = wp.pipes.Outbound().Pump(wp.stop)

	go wp.reap()
	return nil
}

func (wp *WorkerProcess) reap() {
	err := wp.cmd.Wait()
	code := exitCodeOf(wp.cmd.ProcessState)

	wp.mu.Lock()
	wp.exitCode = code
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		wp.waitErr = err
	}
	wp.mu.Unlock()

	monitor.ObserveExit(code)
	wp.log.Info("Supervisor: Recognizer worker exited", "pid", wp.PID(), "exit_code", code)
	close(wp.exited)
}

// exitCodeOf reports the exit status, or the negated signal number when the
// process was killed by a signal.
func exitCodeOf(ps *os.ProcessState) int {
	if ps == nil {
		return -1
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return ps.ExitCode()
}

// PID returns the worker's process id, or 0 before Start.
func (wp *WorkerProcess) PID() int {
	if wp.cmd.Process == nil {
		return 0
	}
	return wp.cmd.Process.Pid
}

// Argv returns the command line the worker was started with.
func (wp *WorkerProcess) Argv() []string {
	return append([]string(nil), wp.argv...)
}

// IsAlive is true from Start until the process has exited.
func (wp *WorkerProcess) IsAlive() bool {
	if wp.cmd.Process == nil {
		return false
	}
	select {
	case <-wp.exited:
		return false
	default:
		return true
	}
}

// ExitCode returns the exit code once the process has exited.
func (wp *WorkerProcess) ExitCode() (int, bool) {
	select {
	case <-wp.exited:
	default:
		return 0, false
	}
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.exitCode, true
}

// Ready reports whether the worker completed the readiness handshake.
func (wp *WorkerProcess) Ready() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.ready
}

func (wp *WorkerProcess) markReady() {
	wp.mu.Lock()
	wp.ready = true
	wp.mu.Unlock()
}

// Exited is closed once the process has exited.
func (wp *WorkerProcess) Exited() <-chan struct{} { return wp.exited }

// Messages delivers messages written by the worker. It is closed when the
// worker closes its outbound channel.
func (wp *WorkerProcess) Messages() <-chan protocol.Message { return wp.msgs }

// Errors delivers receive failures on the outbound channel.
func (wp *WorkerProcess) Errors() <-chan error { return wp.errs }

// Inbound is the writer for messages to the worker.
func (wp *WorkerProcess) Inbound() *ipc.Writer { return wp.pipes.Inbound() }

// Registry is the connection registry shared with the worker.
func (wp *WorkerProcess) Registry() registry.Registry { return wp.registry }

// Stop sends a SIGTERM signal to the worker to initiate a graceful shutdown.
func (wp *WorkerProcess) Stop() error {
	if !wp.IsAlive() {
		return nil
	}
	wp.log.Info("Supervisor: Sending SIGTERM", "pid", wp.PID())
	return ignoreDone(wp.cmd.Process.Signal(syscall.SIGTERM))
}

// Terminate kills the worker immediately. It is used when the worker never
// became ready, so there is nothing to drain.
func (wp *WorkerProcess) Terminate() error {
	if !wp.IsAlive() {
		return nil
	}
	wp.log.Warn("Supervisor: Sending SIGKILL", "pid", wp.PID())
	return ignoreDone(wp.cmd.Process.Kill())
}

// StopWithin stops the worker gracefully and kills it if it has not exited
// after timeout.
func (wp *WorkerProcess) StopWithin(timeout time.Duration) error {
	if err := wp.Stop(); err != nil {
		return err
	}
	select {
	case <-wp.exited:
		return nil
	case <-time.After(timeout):
		wp.log.Warn("Supervisor: Graceful stop timed out", "pid", wp.PID(), "timeout", timeout)
		if err := wp.Terminate(); err != nil {
			return err
		}
		<-wp.exited
		return nil
	}
}

// Wait blocks until the worker has exited.
func (wp *WorkerProcess) Wait() error {
	if wp.cmd.Process == nil {
		return nil
	}
	<-wp.exited
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.waitErr
}

// Close stops reading from the worker and releases the channels.
func (wp *WorkerProcess) Close() error {
	wp.stopOnce.Do(func() { close(wp.stop) })
	return wp.pipes.Close()
}

func ignoreDone(err error) error {
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Personal.AI order the ending
