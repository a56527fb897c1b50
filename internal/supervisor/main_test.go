//go:build unix

package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"testing"

	"github.com/turtacn/Auris/internal/ipc"
	"github.com/turtacn/Auris/internal/recognizer"
	"github.com/turtacn/Auris/internal/registry"
	"github.com/turtacn/Auris/pkg/consts"
	"github.com/turtacn/Auris/pkg/logger"
)

// recognizerWorkerEnv makes the test binary act as a real recognizer worker.
const recognizerWorkerEnv = "AURIS_TEST_RECOGNIZER_WORKER"

func TestMain(m *testing.M) {
	if os.Getenv(recognizerWorkerEnv) == "1" {
		os.Exit(runRecognizerWorker())
	}
	os.Exit(m.Run())
}

type instantLoader struct{}

func (instantLoader) Load(context.Context) (recognizer.ModelInfo, error) {
	return recognizer.ModelInfo{Name: "test-model"}, nil
}

func runRecognizerWorker() int {
	logger.Log = logger.Discard()

	in, out, err := ipc.Inherited()
	if err != nil {
		return 2
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	reg, err := registry.OpenSQLite(ctx, os.Getenv(consts.EnvRegistryPath))
	if err != nil {
		return 3
	}
	defer reg.Close()

	entry := recognizer.NewEntrypoint(instantLoader{})
	if err := entry(ctx, recognizer.Channels{In: in, Out: out, Registry: reg}); err != nil {
		return 1
	}
	return 0
}
