// Package recognizer is the code that runs inside the worker process: it
// loads the model, performs the readiness handshake, and then consumes
// inbound messages from the supervisor.
package recognizer

import (
	"context"
	"os"
	"strconv"

	"github.com/turtacn/Auris/internal/ipc"
	"github.com/turtacn/Auris/internal/registry"
	"github.com/turtacn/Auris/pkg/logger"
	"github.com/turtacn/Auris/pkg/protocol"
)

// Channels is everything the worker receives from the supervisor.
type Channels struct {
	In       *ipc.Reader
	Out      *ipc.Writer
	Registry registry.Registry
	Stdin    *os.File
}

// Entrypoint runs inside the worker until the supervisor closes the inbound
// channel, asks it to shut down, or ctx is cancelled.
type Entrypoint func(ctx context.Context, ch Channels) error

// NewEntrypoint returns an Entrypoint that loads the model with loader and
// writes exactly one readiness message once it has.
func NewEntrypoint(loader Loader) Entrypoint {
	return func(ctx context.Context, ch Channels) error {
		info, err := loader.Load(ctx)
		if err != nil {
			logger.Log.Error("Worker: Model load failed", "err", err)
			return err
		}
		logger.Log.Info("Worker: Model loaded", "model", info.Name, "files", info.Files, "bytes", info.Bytes)

		ready := protocol.Message{
			Type: protocol.MsgReady,
			Meta: map[string]string{
				"model": info.Name,
				"files": strconv.Itoa(info.Files),
				"bytes": strconv.FormatInt(info.Bytes, 10),
				"pid":   strconv.Itoa(os.Getpid()),
			},
		}
		if err := ch.Out.Send(ready); err != nil {
			return err
		}
		return Serve(ctx, ch)
	}
}

// Serve consumes inbound messages until EOF, a shutdown message, or ctx is
// done. Register and unregister messages update the connection registry.
func Serve(ctx context.Context, ch Channels) error {
	msgs, errs := ch.In.Pump(ctx.Done())
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			if ipc.IsTransient(err) {
				continue
			}
			return err
		case msg, ok := <-msgs:
			if !ok {
				logger.Log.Info("Worker: Inbound channel closed")
				return nil
			}
			done, err := handle(ctx, ch, msg)
			if err != nil {
				logger.Log.Error("Worker: Failed to handle message", "type", msg.Type, "err", err)
				ch.Out.Send(protocol.Message{Type: protocol.MsgError, Text: err.Error()})
				continue
			}
			if done {
				return nil
			}
		}
	}
}

func handle(ctx context.Context, ch Channels, msg protocol.Message) (bool, error) {
	switch msg.Type {
	case protocol.MsgRegister:
		return false, ch.Registry.Add(ctx, msg.Text)
	case protocol.MsgUnregister:
		return false, ch.Registry.Remove(ctx, msg.Text)
	case protocol.MsgShutdown:
		logger.Log.Info("Worker: Shutdown requested by supervisor")
		return true, nil
	default:
		logger.Log.Debug("Worker: Ignoring message", "type", msg.Type)
		return false, nil
	}
}

// Personal.AI order the ending
