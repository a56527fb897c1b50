package recognizer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/Auris/internal/ipc"
	"github.com/turtacn/Auris/internal/registry"
	"github.com/turtacn/Auris/pkg/protocol"
)

// harness wires an entrypoint to in-memory channels and plays the
// supervisor's side.
type harness struct {
	toWorker   *ipc.Writer
	fromWorker *ipc.Reader
	ch         Channels
	reg        *registry.Memory
}

func newHarness() *harness {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	reg := registry.NewMemory()
	return &harness{
		toWorker:   ipc.NewWriter(inW),
		fromWorker: ipc.NewReader(outR),
		reg:        reg,
		ch: Channels{
			In:       ipc.NewReader(inR),
			Out:      ipc.NewWriter(outW),
			Registry: reg,
		},
	}
}

func run(ctx context.Context, ep Entrypoint, ch Channels) <-chan error {
	done := make(chan error, 1)
	go func() { done <- ep(ctx, ch) }()
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("entrypoint did not return")
		return nil
	}
}

type stubLoader struct {
	info ModelInfo
	err  error
}

func (s stubLoader) Load(ctx context.Context) (ModelInfo, error) { return s.info, s.err }

func TestEntrypoint_ReadyThenShutdown(t *testing.T) {
	h := newHarness()
	done := run(context.Background(), NewEntrypoint(stubLoader{info: ModelInfo{Name: "paraformer", Files: 2, Bytes: 10}}), h.ch)

	msg, err := h.fromWorker.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgReady, msg.Type)
	assert.Equal(t, "paraformer", msg.Meta["model"])
	assert.Equal(t, "2", msg.Meta["files"])

	require.NoError(t, h.toWorker.Send(protocol.Message{Type: protocol.MsgShutdown}))
	assert.NoError(t, waitErr(t, done))
}

func TestEntrypoint_LoadFailureSendsNothing(t *testing.T) {
	h := newHarness()
	boom := errors.New("corrupt model")
	done := run(context.Background(), NewEntrypoint(stubLoader{err: boom}), h.ch)

	assert.ErrorIs(t, waitErr(t, done), boom)

	h.ch.Out.Close()
	_, err := h.fromWorker.Receive()
	assert.ErrorIs(t, err, io.EOF, "no readiness message may be written after a failed load")
}

func TestServe_UpdatesRegistry(t *testing.T) {
	h := newHarness()
	done := run(context.Background(), Serve, h.ch)

	require.NoError(t, h.toWorker.Send(protocol.Message{Type: protocol.MsgRegister, Text: "a"}))
	require.NoError(t, h.toWorker.Send(protocol.Message{Type: protocol.MsgRegister, Text: "b"}))
	require.NoError(t, h.toWorker.Send(protocol.Message{Type: protocol.MsgUnregister, Text: "a"}))
	require.NoError(t, h.toWorker.Send(protocol.Message{Type: "transcribe"}))
	require.NoError(t, h.toWorker.Close())

	assert.NoError(t, waitErr(t, done), "EOF on inbound ends serving")

	ids, err := h.reg.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

func TestServe_ContextCancelled(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	done := run(ctx, Serve, h.ch)

	cancel()
	assert.NoError(t, waitErr(t, done))
}

func TestFileLoader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "paraformer")
	require.NoError(t, os.Mkdir(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "encoder.onnx"), []byte("12345"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tokens.txt"), []byte("abc"), 0o600))

	info, err := (&FileLoader{Dir: dir, Files: []string{"encoder.onnx", "tokens.txt"}}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModelInfo{Name: "paraformer", Files: 2, Bytes: 8}, info)

	_, err = (&FileLoader{Dir: dir, Files: []string{"missing.onnx"}}).Load(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&FileLoader{Dir: dir, Files: []string{"encoder.onnx"}}).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
