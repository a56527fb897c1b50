package protocol

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/turtacn/Auris/pkg/consts"
	"gopkg.in/yaml.v3"
)

// Config represents the root configuration of an Auris deployment.
type Config struct {
	Version       string              `yaml:"version"`
	Service       ServiceConfig       `yaml:"service"`
	Recognizer    RecognizerConfig    `yaml:"recognizer"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServiceConfig struct {
	Name string   `yaml:"name"`
	Env  []string `yaml:"env"` // Extra KEY=VALUE pairs for the worker
}

type RecognizerConfig struct {
	ModelDir     string         `yaml:"model_dir"`
	ModelFiles   []string       `yaml:"model_files"`  // Required files relative to model_dir
	LibraryArch  string         `yaml:"library_arch"` // GOARCH the native inference library was built for
	Command      []string       `yaml:"command"`      // Worker command; defaults to "<self> worker"
	PollInterval string         `yaml:"poll_interval"`
	Registry     RegistryConfig `yaml:"registry"`
}

type RegistryConfig struct {
	Backend string `yaml:"backend"` // "sqlite" or "memory"
	Path    string `yaml:"path"`
}

type OrchestrationConfig struct {
	DrainTimeout string `yaml:"drain_timeout"`
}

type ObservabilityConfig struct {
	MetricsPort string `yaml:"metrics_port"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// LoadConfig reads and decodes a YAML config file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "auris"
	}
	if c.Recognizer.LibraryArch == "" {
		c.Recognizer.LibraryArch = runtime.GOARCH
	}
	if c.Recognizer.Registry.Backend == "" {
		c.Recognizer.Registry.Backend = "sqlite"
	}
	if c.Recognizer.Registry.Backend == "sqlite" && c.Recognizer.Registry.Path == "" {
		c.Recognizer.Registry.Path = consts.DefaultRegistryFile
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = "json"
	}
}

// PollEvery returns the readiness poll interval, falling back to the
// default when unset or unparsable.
func (r RecognizerConfig) PollEvery() time.Duration {
	return parseDuration(r.PollInterval, consts.DefaultPollInterval)
}

// Drain returns the graceful stop timeout.
func (o OrchestrationConfig) Drain() time.Duration {
	return parseDuration(o.DrainTimeout, consts.DefaultDrainTimeout)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Personal.AI order the ending
