package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/turtacn/Auris/internal/console"
	"github.com/turtacn/Auris/internal/ipc"
	"github.com/turtacn/Auris/internal/launch"
	"github.com/turtacn/Auris/internal/lifecycle"
	"github.com/turtacn/Auris/internal/model"
	"github.com/turtacn/Auris/internal/monitor"
	"github.com/turtacn/Auris/internal/orchestrator"
	"github.com/turtacn/Auris/internal/recognizer"
	"github.com/turtacn/Auris/internal/registry"
	"github.com/turtacn/Auris/internal/supervisor"
	"github.com/turtacn/Auris/pkg/consts"
	aerrors "github.com/turtacn/Auris/pkg/errors"
	"github.com/turtacn/Auris/pkg/logger"
	"github.com/turtacn/Auris/pkg/protocol"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "auris",
	Short:         "Auris: speech recognizer worker supervisor",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recognizer worker and serve until stopped",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		monitor.InitMetrics(cfg.Observability.MetricsPort)
		logger.Log.Info("Booting Auris...", "service", cfg.Service.Name)

		reg, err := openRegistry(cmd.Context(), cfg.Recognizer.Registry)
		if err != nil {
			return err
		}
		defer reg.Close()

		command, err := workerCommand(cfg)
		if err != nil {
			return err
		}

		reporter := console.NewReporter()
		sup := supervisor.New(command,
			supervisor.WithModelChecker(model.NewChecker(cfg.Recognizer.ModelDir, cfg.Recognizer.ModelFiles)),
			supervisor.WithResolver(launch.NewResolver(cfg.Recognizer.LibraryArch, command[0])),
			supervisor.WithReporter(reporter),
			supervisor.WithRegistry(reg),
			supervisor.WithShutdown(lifecycle.Default),
			supervisor.WithPollInterval(cfg.Recognizer.PollEvery()),
			supervisor.WithEnv(cfg.Service.Env...),
		)
		defer sup.Close()

		engine := orchestrator.NewEngine(sup, lifecycle.Default, reporter, cfg.Orchestration.Drain())
		if err := engine.Start(cmd.Context()); err != nil {
			logger.Log.Error("Engine fatal error", "err", err)
			return err
		}
		return nil
	},
}

var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run the recognizer worker (started by serve)",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger.Log = logger.Log.With("role", "worker", "attempt", os.Getenv(consts.EnvAttemptID))

		path := os.Getenv(consts.EnvRegistryPath)
		if path == "" {
			return aerrors.New(aerrors.ErrCodeConfigInvalid, "worker", consts.EnvRegistryPath+" is not set", nil)
		}

		in, out, err := ipc.Inherited()
		if err != nil {
			return err
		}
		defer in.Close()
		defer out.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg, err := registry.OpenSQLite(ctx, path)
		if err != nil {
			return err
		}
		defer reg.Close()

		entry := recognizer.NewEntrypoint(&recognizer.FileLoader{
			Dir:   cfg.Recognizer.ModelDir,
			Files: cfg.Recognizer.ModelFiles,
		})
		return entry(ctx, recognizer.Channels{In: in, Out: out, Registry: reg, Stdin: os.Stdin})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify model prerequisites without starting the worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := model.NewChecker(cfg.Recognizer.ModelDir, cfg.Recognizer.ModelFiles).Check(); err != nil {
			return err
		}
		console.NewReporterTo(cmd.OutOrStdout()).Success("Model files present in " + cfg.Recognizer.ModelDir)
		return nil
	},
}

var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "Print how the recognizer worker would be launched",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		command, err := workerCommand(cfg)
		if err != nil {
			return err
		}
		r := launch.NewResolver(cfg.Recognizer.LibraryArch, command[0])
		s := r.Strategy()

		out := struct {
			Host     launch.Host     `yaml:"host"`
			Library  string          `yaml:"library_arch"`
			Strategy launch.Strategy `yaml:"strategy"`
			Command  []string        `yaml:"command"`
		}{r.Host, cfg.Recognizer.LibraryArch, s, s.Command(command)}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "auris.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override observability.log_level")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(strategyCmd)
}

func loadConfig() (*protocol.Config, error) {
	cfg, err := protocol.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	logger.InitLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	return cfg, nil
}

// workerCommand returns the configured worker command, or this binary's
// own worker subcommand.
func workerCommand(cfg *protocol.Config) ([]string, error) {
	if len(cfg.Recognizer.Command) > 0 {
		return cfg.Recognizer.Command, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return []string{exe, "worker", "--config", cfgFile}, nil
}

func openRegistry(ctx context.Context, rc protocol.RegistryConfig) (registry.Registry, error) {
	switch rc.Backend {
	case "sqlite":
		return registry.OpenSQLite(ctx, rc.Path)
	case "memory":
		return nil, aerrors.New(aerrors.ErrCodeConfigInvalid, "openRegistry", "memory registry cannot be shared with the worker process", nil)
	default:
		return nil, aerrors.New(aerrors.ErrCodeConfigInvalid, "openRegistry", fmt.Sprintf("unknown registry backend %q", rc.Backend), nil)
	}
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Personal.AI order the ending
