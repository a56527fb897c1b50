package monitor

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/turtacn/Auris/pkg/logger"
)

var (
	// StartupDuration tracks the time from launch to the readiness verdict, in seconds.
	StartupDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auris_startup_duration_seconds",
		Help:    "Time from worker launch to the readiness verdict",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"verdict"})
	// StartupVerdicts counts startup attempts, partitioned by verdict.
	StartupVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auris_startup_verdicts_total",
		Help: "Total number of worker startup attempts by verdict",
	}, []string{"verdict"})
	// WorkerExits counts worker exits observed by the supervisor, by exit code.
	WorkerExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auris_worker_exits_total",
		Help: "Total number of recognizer worker exits by exit code",
	}, []string{"code"})

	registerOnce sync.Once
)

// ObserveStartup records the outcome of one startup attempt.
func ObserveStartup(verdict string, seconds float64) {
	StartupVerdicts.WithLabelValues(verdict).Inc()
	StartupDuration.WithLabelValues(verdict).Observe(seconds)
}

// ObserveExit records a worker exit.
func ObserveExit(code int) {
	WorkerExits.WithLabelValues(strconv.Itoa(code)).Inc()
}

// Register adds the Auris collectors to the default registry. It is safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(StartupDuration)
		prometheus.MustRegister(StartupVerdicts)
		prometheus.MustRegister(WorkerExits)
	})
}

// InitMetrics registers Prometheus metrics and starts an HTTP server to expose them.
// It takes an address string (e.g., ":9464") on which to listen for requests;
// an empty address registers the metrics without serving them.
func InitMetrics(addr string) {
	Register()
	if addr == "" {
		return
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Log.Info("Metrics server starting", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Log.Error("Metrics server failed", "err", err)
		}
	}()
}

// Personal.AI order the ending
