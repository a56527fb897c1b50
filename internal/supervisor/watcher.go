package supervisor

import (
	"context"
	"time"

	"github.com/turtacn/Auris/internal/ipc"
	aerrors "github.com/turtacn/Auris/pkg/errors"
	"github.com/turtacn/Auris/pkg/logger"
	"github.com/turtacn/Auris/pkg/protocol"
)

// VerdictKind is the outcome of waiting for a worker to become ready.
type VerdictKind int

const (
	Ready VerdictKind = iota + 1
	Crashed
	Cancelled
)

func (k VerdictKind) String() string {
	switch k {
	case Ready:
		return "ready"
	case Crashed:
		return "crashed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Verdict is produced exactly once per startup attempt.
type Verdict struct {
	Kind VerdictKind
	// ExitCode is set for Crashed.
	ExitCode int
	// Ticks is the number of poll intervals that elapsed before the verdict.
	Ticks int
	// Message is the readiness message for Ready.
	Message protocol.Message
}

// Observable is the view of a started worker the watcher needs.
type Observable interface {
	Messages() <-chan protocol.Message
	Errors() <-chan error
	Exited() <-chan struct{}
	IsAlive() bool
	ExitCode() (int, bool)
}

// ShutdownSignal is a monotonic shutdown request.
type ShutdownSignal interface {
	Requested() bool
	Done() <-chan struct{}
}

// Watch waits until the worker reports readiness, exits, or shutdown is
// requested, whichever is observed first. Every wake-up is evaluated in a
// fixed order: shutdown (or ctx) first, then a readiness message, then
// receive errors, then process exit. A readiness message already delivered
// when the exit is observed still counts as Ready.
//
// Transient receive errors are retried. A message cut short by the worker
// closing its end is treated as end of stream, so the exit decides the
// verdict. Any other receive error is returned as ErrCodeChannelBroken.
func Watch(ctx context.Context, w Observable, shutdown ShutdownSignal, interval time.Duration) (Verdict, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	msgs := w.Messages()
	errs := w.Errors()
	exited := w.Exited()
	ticks := 0

	cancelled := func() bool {
		return shutdown.Requested() || ctx.Err() != nil
	}

	for {
		if cancelled() {
			return Verdict{Kind: Cancelled, Ticks: ticks}, nil
		}

		select {
		case msg, ok := <-msgs:
			if !ok {
				// Outbound closed; the exit will follow.
				msgs = nil
				continue
			}
			if cancelled() {
				return Verdict{Kind: Cancelled, Ticks: ticks}, nil
			}
			return Verdict{Kind: Ready, Ticks: ticks, Message: msg}, nil

		case err := <-errs:
			if ipc.IsTransient(err) {
				logger.Log.Debug("Watcher: Receive interrupted, retrying", "err", err)
				continue
			}
			// Messages decoded before the failure are still buffered.
			if msg, ok := pending(msgs); ok {
				if cancelled() {
					return Verdict{Kind: Cancelled, Ticks: ticks}, nil
				}
				return Verdict{Kind: Ready, Ticks: ticks, Message: msg}, nil
			}
			if ipc.IsTruncated(err) {
				// The worker closed its end mid-message; its exit decides.
				logger.Log.Debug("Watcher: Outbound closed mid-message", "err", err)
				errs = nil
				continue
			}
			return Verdict{}, aerrors.New(aerrors.ErrCodeChannelBroken, "Watch", "failed to receive from recognizer worker", err)

		case <-exited:
			return settleExit(w, msgs, cancelled, ticks, interval), nil

		case <-shutdown.Done():
		case <-ctx.Done():

		case <-ticker.C:
			ticks++
			if !w.IsAlive() {
				return settleExit(w, msgs, cancelled, ticks, interval), nil
			}
		}
	}
}

func pending(msgs <-chan protocol.Message) (protocol.Message, bool) {
	if msgs == nil {
		return protocol.Message{}, false
	}
	select {
	case msg, ok := <-msgs:
		return msg, ok
	default:
		return protocol.Message{}, false
	}
}

// settleExit decides between Ready and Crashed once the worker has exited.
// Output the worker wrote just before exiting may still be in flight, so the
// message channel gets up to one more interval to deliver or close.
func settleExit(w Observable, msgs <-chan protocol.Message, cancelled func() bool, ticks int, interval time.Duration) Verdict {
	if cancelled() {
		return Verdict{Kind: Cancelled, Ticks: ticks}
	}
	if msgs != nil {
		select {
		case msg, ok := <-msgs:
			if ok && !cancelled() {
				return Verdict{Kind: Ready, Ticks: ticks, Message: msg}
			}
		case <-time.After(interval):
		}
	}
	if cancelled() {
		return Verdict{Kind: Cancelled, Ticks: ticks}
	}
	code, _ := w.ExitCode()
	return Verdict{Kind: Crashed, ExitCode: code, Ticks: ticks}
}

// Personal.AI order the ending
