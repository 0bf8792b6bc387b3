package metrics

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	serverRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tether",
		Name:      "server_running",
		Help:      "Whether the supervisor holds a process handle (1=running, 0=not running).",
	})

	operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tether",
		Name:      "operations_total",
		Help:      "Start and stop requests by outcome.",
	}, []string{"operation", "outcome"})

	spawnLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tether",
		Name:      "spawn_latency_seconds",
		Help:      "Time spent spawning the supervised process in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	probeReachable = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tether",
		Name:      "server_reachable",
		Help:      "Result of the last reachability probe (1=reachable, 0=unreachable).",
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tether",
		Name:      "build_info",
		Help:      "Build metadata for the running tether binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(serverRunning, operations, spawnLatency, probeReachable, buildInfo)
}

// Registry returns the Prometheus registry containing all tether metrics.
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the tether registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// SetServerRunning records whether the supervisor slot is occupied.
func SetServerRunning(running bool) {
	serverRunning.Set(boolValue(running))
}

// SetServerReachable records the last probe result.
func SetServerReachable(reachable bool) {
	probeReachable.Set(boolValue(reachable))
}

// ObserveOperation counts a start or stop request.
func ObserveOperation(operation, outcome string) {
	if operation == "" || outcome == "" {
		return
	}
	operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveSpawnLatency records how long a spawn attempt took.
func ObserveSpawnLatency(d time.Duration) {
	spawnLatency.Observe(d.Seconds())
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
