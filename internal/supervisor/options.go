package supervisor

import (
	"os"
	"time"

	"github.com/turtacn/Auris/internal/registry"
	"github.com/turtacn/Auris/pkg/logger"
)

// Option configures the Supervisor
type Option func(*Supervisor)

// WithModelChecker sets the prerequisite check run before launch
func WithModelChecker(c ModelChecker) Option {
	return func(s *Supervisor) {
		s.checker = c
	}
}

// WithResolver sets the launch strategy source
func WithResolver(r StrategyResolver) Option {
	return func(s *Supervisor) {
		s.resolver = r
	}
}

// WithReporter sets the console reporter
func WithReporter(r ConsoleReporter) Option {
	return func(s *Supervisor) {
		s.reporter = r
	}
}

// WithRegistry sets the connection registry shared with the worker
func WithRegistry(r registry.Registry) Option {
	return func(s *Supervisor) {
		s.registry = r
	}
}

// WithShutdown sets the shutdown signal observed while waiting
func WithShutdown(sig Shutdowner) Option {
	return func(s *Supervisor) {
		s.shutdown = sig
	}
}

// WithPollInterval bounds each readiness wait
func WithPollInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Supervisor) {
		s.log = l
	}
}

// WithStdin sets the stream handed to the worker as standard input
func WithStdin(f *os.File) Option {
	return func(s *Supervisor) {
		s.stdin = f
	}
}

// WithEnv adds KEY=VALUE pairs to the worker environment
func WithEnv(env ...string) Option {
	return func(s *Supervisor) {
		s.env = append(s.env, env...)
	}
}

// Personal.AI order the ending
