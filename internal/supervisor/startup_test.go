//go:build unix

package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/Auris/internal/launch"
	"github.com/turtacn/Auris/internal/lifecycle"
	"github.com/turtacn/Auris/internal/registry"
	aerrors "github.com/turtacn/Auris/pkg/errors"
	"github.com/turtacn/Auris/pkg/logger"
	"github.com/turtacn/Auris/pkg/protocol"
)

type recordingReporter struct {
	mu        sync.Mutex
	serving   int
	cancelled int
	failures  []int
	causes    []string
}

func (r *recordingReporter) ServingStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serving++
}

func (r *recordingReporter) StartupFailed(exitCode int, causes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, exitCode)
	r.causes = causes
}

func (r *recordingReporter) StartupCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled++
}

type staticResolver struct{ s launch.Strategy }

func (r staticResolver) Strategy() launch.Strategy { return r.s }

type checkerFunc func() error

func (f checkerFunc) Check() error { return f() }

func newTestSupervisor(t *testing.T, script string, opts ...Option) (*Supervisor, *recordingReporter, *lifecycle.Shutdown) {
	t.Helper()
	rep := &recordingReporter{}
	sig := lifecycle.NewShutdown()
	base := []Option{
		WithReporter(rep),
		WithShutdown(sig),
		WithResolver(staticResolver{launch.Strategy{StartMethod: launch.Fork}}),
		WithPollInterval(testInterval),
		WithLogger(logger.Discard()),
		WithStdin(nil),
	}
	s := New([]string{"sh", "-c", script}, append(base, opts...)...)
	t.Cleanup(func() { s.Close() })
	return s, rep, sig
}

func cleanupWorker(t *testing.T, wp *WorkerProcess) {
	t.Helper()
	if wp == nil {
		return
	}
	t.Cleanup(func() {
		wp.Terminate()
		wp.Wait()
		wp.Close()
	})
}

// Worker exits with code 1 before it is ready.
func TestStartRecognizer_Crash(t *testing.T) {
	s, rep, sig := newTestSupervisor(t, "exit 1")

	wp, err := s.StartRecognizer(context.Background())
	cleanupWorker(t, wp)

	require.Error(t, err)
	assert.Nil(t, wp)

	var se *aerrors.StartupError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.ExitCode)
	assert.True(t, sig.Requested(), "a crash during startup requests shutdown")

	assert.Equal(t, []int{1}, rep.failures)
	assert.Equal(t, CrashCauses, rep.causes)
	assert.Len(t, rep.causes, 4)
	assert.Zero(t, rep.serving)
}

// Shutdown is requested before the worker ever responds.
func TestStartRecognizer_CancelledByShutdown(t *testing.T) {
	s, rep, sig := newTestSupervisor(t, "exec sleep 10")
	sig.Request()

	wp, err := s.StartRecognizer(context.Background())
	cleanupWorker(t, wp)

	require.NoError(t, err, "cancellation is not an error")
	require.NotNil(t, wp)

	done := make(chan struct{})
	go func() {
		wp.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled worker was not terminated")
	}

	code, ok := wp.ExitCode()
	assert.True(t, ok)
	assert.Equal(t, -9, code)
	assert.False(t, wp.Ready())
	assert.Equal(t, 1, rep.cancelled)
	assert.Zero(t, rep.serving)
	assert.Empty(t, rep.failures)
}

// Worker reports readiness after a few poll intervals.
func TestStartRecognizer_Ready(t *testing.T) {
	s, rep, sig := newTestSupervisor(t, `sleep 0.1; printf '{"type":"ready"}\n' >&4; exec sleep 10`)

	wp, err := s.StartRecognizer(context.Background())
	cleanupWorker(t, wp)

	require.NoError(t, err)
	require.NotNil(t, wp)
	assert.True(t, wp.IsAlive())
	assert.True(t, wp.Ready())
	assert.Equal(t, 1, rep.serving, "serving started is reported exactly once")
	assert.False(t, sig.Requested())
}

func TestStartRecognizer_ModelCheckFailure(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "launched")
	checkErr := &aerrors.ModelValidationError{Path: "/models/encoder.onnx", Reason: "model file missing"}

	s, _, sig := newTestSupervisor(t, "touch "+marker,
		WithModelChecker(checkerFunc(func() error { return checkErr })))

	wp, err := s.StartRecognizer(context.Background())
	assert.Nil(t, wp)
	assert.Same(t, checkErr, err, "checker errors propagate unchanged")
	assert.False(t, sig.Requested())

	time.Sleep(2 * testInterval)
	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "no worker may be started when the model check fails")
}

func TestStartRecognizer_LaunchFailure(t *testing.T) {
	rep := &recordingReporter{}
	s := New([]string{"/nonexistent/auris-worker"},
		WithReporter(rep),
		WithShutdown(lifecycle.NewShutdown()),
		WithResolver(staticResolver{launch.Strategy{StartMethod: launch.Fork}}),
		WithLogger(logger.Discard()),
	)
	t.Cleanup(func() { s.Close() })

	_, err := s.StartRecognizer(context.Background())
	require.Error(t, err)
	assert.Equal(t, aerrors.ErrCodeProcessStartFail, aerrors.CodeOf(err))
}

func TestStartRecognizer_OneAtATime(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	s, _, sig := newTestSupervisor(t, "exec sleep 10",
		WithModelChecker(checkerFunc(func() error {
			close(entered)
			<-release
			return nil
		})))

	type result struct {
		wp  *WorkerProcess
		err error
	}
	first := make(chan result, 1)
	go func() {
		wp, err := s.StartRecognizer(context.Background())
		first <- result{wp, err}
	}()

	<-entered
	_, err := s.StartRecognizer(context.Background())
	assert.Equal(t, aerrors.ErrCodeAlreadyStarting, aerrors.CodeOf(err))

	sig.Request()
	close(release)

	res := <-first
	cleanupWorker(t, res.wp)
	assert.NoError(t, res.err)
}

func TestStartRecognizer_ResetsRegistry(t *testing.T) {
	ctx := context.Background()
	reg, err := registry.OpenSQLite(ctx, filepath.Join(t.TempDir(), "connections.db"))
	require.NoError(t, err)
	defer reg.Close()
	require.NoError(t, reg.Add(ctx, "stale"))

	s, _, _ := newTestSupervisor(t, `printf '{"type":"ready"}\n' >&4; exec sleep 10`, WithRegistry(reg))
	wp, err := s.StartRecognizer(ctx)
	cleanupWorker(t, wp)
	require.NoError(t, err)

	ids, err := wp.Registry().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

// The worker dies partway through writing its first message.
func TestStartRecognizer_TruncatedMessageIsCrash(t *testing.T) {
	for i := 0; i < 10; i++ {
		s, rep, sig := newTestSupervisor(t, `printf '{"type":' >&4; exit 3`)

		wp, err := s.StartRecognizer(context.Background())
		cleanupWorker(t, wp)

		var se *aerrors.StartupError
		require.True(t, errors.As(err, &se), "attempt %d: got %v", i, err)
		assert.Equal(t, 3, se.ExitCode)
		assert.True(t, sig.Requested())
		assert.Equal(t, []int{3}, rep.failures)
	}
}

func TestStartRecognizer_RejectsMemoryRegistry(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "launched")
	s, _, _ := newTestSupervisor(t, "touch "+marker, WithRegistry(registry.NewMemory()))

	wp, err := s.StartRecognizer(context.Background())
	assert.Nil(t, wp)
	assert.Equal(t, aerrors.ErrCodeConfigInvalid, aerrors.CodeOf(err))

	time.Sleep(2 * testInterval)
	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr))
}

// A real worker registers a connection that the supervisor then lists.
func TestStartRecognizer_WorkerSharesRegistry(t *testing.T) {
	rep := &recordingReporter{}
	s := New([]string{os.Args[0]},
		WithReporter(rep),
		WithShutdown(lifecycle.NewShutdown()),
		WithResolver(staticResolver{launch.Strategy{StartMethod: launch.Fork}}),
		WithPollInterval(testInterval),
		WithLogger(logger.Discard()),
		WithStdin(nil),
		WithEnv(recognizerWorkerEnv+"=1"),
	)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	wp, err := s.StartRecognizer(ctx)
	cleanupWorker(t, wp)
	require.NoError(t, err)
	require.True(t, wp.Ready())
	assert.NotEmpty(t, wp.Registry().Location())

	require.NoError(t, wp.Inbound().Send(protocol.Message{Type: protocol.MsgRegister, Text: "conn-1"}))
	require.Eventually(t, func() bool {
		ids, err := wp.Registry().List(ctx)
		return err == nil && len(ids) == 1 && ids[0] == "conn-1"
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, wp.Inbound().Send(protocol.Message{Type: protocol.MsgUnregister, Text: "conn-1"}))
	require.Eventually(t, func() bool {
		ids, err := wp.Registry().List(ctx)
		return err == nil && len(ids) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSupervisor_CloseRemovesOwnedRegistry(t *testing.T) {
	s, _, _ := newTestSupervisor(t, `printf '{"type":"ready"}\n' >&4; exec sleep 10`)

	wp, err := s.StartRecognizer(context.Background())
	require.NoError(t, err)
	path := wp.Registry().Location()
	wp.Terminate()
	wp.Wait()
	wp.Close()

	require.NoError(t, s.Close())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
