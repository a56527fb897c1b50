package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/Auris/internal/ipc"
	"github.com/turtacn/Auris/internal/lifecycle"
	"github.com/turtacn/Auris/internal/supervisor"
	"github.com/turtacn/Auris/pkg/consts"
	aerrors "github.com/turtacn/Auris/pkg/errors"
	"github.com/turtacn/Auris/pkg/fsm"
	"github.com/turtacn/Auris/pkg/logger"
	"github.com/turtacn/Auris/pkg/protocol"
)

const (
	evCheck   fsm.Event = "check"
	evStart   fsm.Event = "start"
	evReady   fsm.Event = "ready"
	evCancel  fsm.Event = "cancel"
	evFail    fsm.Event = "fail"
	evDrain   fsm.Event = "drain"
	evStopped fsm.Event = "stopped"
	evCrash   fsm.Event = "crash"
)

// Starter is the part of the supervisor the engine drives.
type Starter interface {
	Check() error
	StartRecognizer(ctx context.Context) (*supervisor.WorkerProcess, error)
}

// StopReporter is told when the worker has been stopped.
type StopReporter interface {
	Stopped()
}

// Engine runs the serve lifecycle: start the worker, serve until shutdown or
// worker exit, then drain.
type Engine struct {
	fsm          *fsm.StateMachine
	starter      Starter
	shutdown     *lifecycle.Shutdown
	reporter     StopReporter
	drainTimeout time.Duration
	worker       *supervisor.WorkerProcess
}

func NewEngine(starter Starter, shutdown *lifecycle.Shutdown, reporter StopReporter, drainTimeout time.Duration) *Engine {
	e := &Engine{
		fsm:          fsm.New(fsm.State(consts.StatePending)),
		starter:      starter,
		shutdown:     shutdown,
		reporter:     reporter,
		drainTimeout: drainTimeout,
	}
	e.setupFSM()
	return e
}

func (e *Engine) setupFSM() {
	pending := fsm.State(consts.StatePending)
	checking := fsm.State(consts.StateChecking)
	starting := fsm.State(consts.StateStarting)
	serving := fsm.State(consts.StateServing)
	draining := fsm.State(consts.StateDraining)
	stopped := fsm.State(consts.StateStopped)
	failed := fsm.State(consts.StateFailed)

	e.fsm.AddTransition(pending, checking, evCheck, nil)
	e.fsm.AddTransition(checking, starting, evStart, nil)
	e.fsm.AddTransition(checking, failed, evFail, nil)
	e.fsm.AddTransition(starting, serving, evReady, nil)
	e.fsm.AddTransition(starting, stopped, evCancel, nil)
	e.fsm.AddTransition(starting, failed, evFail, nil)
	e.fsm.AddTransition(serving, draining, evDrain, nil)
	e.fsm.AddTransition(serving, failed, evCrash, nil)
	e.fsm.AddTransition(draining, stopped, evStopped, nil)
	e.fsm.SetTerminal(stopped, failed)

	e.fsm.Observe(func(from, to fsm.State, event fsm.Event) {
		logger.Log.Debug("Engine: State transition", "from", from, "to", to, "event", event)
	})
}

// State returns the current lifecycle state.
func (e *Engine) State() consts.ProcessState {
	return consts.ProcessState(e.fsm.Current())
}

// Start runs the lifecycle to completion. SIGINT and SIGTERM request
// shutdown. It returns nil when the run ended because shutdown was requested.
func (e *Engine) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Log.Info("Signal: Stop received. Shutting down.", "signal", sig.String())
			e.shutdown.Request()
		case <-e.shutdown.Done():
		}
	}()

	e.fsm.Fire(evCheck)
	if err := e.starter.Check(); err != nil {
		logger.Log.Error("Model prerequisites not met", "err", err)
		e.fsm.Fire(evFail)
		return err
	}

	e.fsm.Fire(evStart)

	wp, err := e.starter.StartRecognizer(ctx)
	if err != nil {
		e.fsm.Fire(evFail)
		return err
	}
	if !wp.Ready() {
		// Shutdown won the race; the worker has already been killed.
		wp.Wait()
		wp.Close()
		e.fsm.Fire(evCancel)
		return nil
	}

	e.worker = wp
	e.fsm.Fire(evReady)
	return e.serve(ctx, wp)
}

func (e *Engine) serve(ctx context.Context, wp *supervisor.WorkerProcess) error {
	defer wp.Close()

	msgs, errs := wp.Messages(), wp.Errors()
serving:
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			e.handleWorkerMessage(msg)

		case err := <-errs:
			if !ipc.IsTransient(err) {
				logger.Log.Warn("Stopped reading from recognizer worker", "err", err)
				errs = nil
			}

		case <-wp.Exited():
			code, _ := wp.ExitCode()
			logger.Log.Error("Recognizer worker exited while serving", "exit_code", code)
			e.fsm.Fire(evCrash)
			e.shutdown.Request()
			return aerrors.New(aerrors.ErrCodeWorkerExited, "Serve", fmt.Sprintf("recognizer worker exited with code %d", code), nil)

		case <-e.shutdown.Done():
			break serving
		case <-ctx.Done():
			break serving
		}
	}

	logger.Log.Info("Phase: Drain. Stopping recognizer worker.", "timeout", e.drainTimeout)
	e.fsm.Fire(evDrain)
	if err := wp.StopWithin(e.drainTimeout); err != nil {
		logger.Log.Error("Failed to stop recognizer worker", "err", err)
	}
	e.fsm.Fire(evStopped)
	if e.reporter != nil {
		e.reporter.Stopped()
	}
	return nil
}

// handleWorkerMessage logs what the worker reports after readiness.
func (e *Engine) handleWorkerMessage(msg protocol.Message) {
	if msg.Type == protocol.MsgError {
		logger.Log.Warn("Recognizer worker reported an error", "err", msg.Text)
		return
	}
	logger.Log.Debug("Recognizer worker message", "type", msg.Type, "text", msg.Text)
}

// Personal.AI order the ending
