package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// promMetrics mirrors the teacher's internal/metrics package: a set of
// promauto collectors registered once per pool instance, labeled by
// pool name and (where meaningful) provider id. GetMetrics() remains
// the source of truth — these are a side-effect projection of the same
// numbers onto a Prometheus registry, never read back by the pool
// itself.
type promMetrics struct {
	totalConnections  prometheus.Gauge
	activeConnections prometheus.Gauge
	busyConnections   prometheus.Gauge
	idleConnections   prometheus.Gauge
	poolUtilization   prometheus.Gauge
	averageResponseTime prometheus.Gauge

	totalRequests      prometheus.Counter
	successfulRequests prometheus.Counter
	failedRequests     prometheus.Counter
	connectionsCreated   *prometheus.CounterVec
	connectionsDestroyed *prometheus.CounterVec
	healthChecksPassed   prometheus.Counter
	healthChecksFailed   prometheus.Counter
	queueLength          prometheus.Gauge
}

func newPromMetrics(reg prometheus.Registerer, name string) *promMetrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"pool": name}
	return &promMetrics{
		totalConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rpcpool_connections_total", Help: "Total connections currently tracked by the pool.", ConstLabels: labels,
		}),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rpcpool_connections_active", Help: "Connections that are active (not deactivated by health).", ConstLabels: labels,
		}),
		busyConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rpcpool_connections_busy", Help: "Connections currently held by a caller.", ConstLabels: labels,
		}),
		idleConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rpcpool_connections_idle", Help: "Active connections available for selection.", ConstLabels: labels,
		}),
		poolUtilization: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rpcpool_utilization_percent", Help: "busy / total, as a percentage.", ConstLabels: labels,
		}),
		averageResponseTime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rpcpool_acquire_latency_ms_ema", Help: "EMA (alpha=0.1) of Acquire latency in milliseconds.", ConstLabels: labels,
		}),
		totalRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "rpcpool_requests_total", Help: "Total Acquire calls.", ConstLabels: labels,
		}),
		successfulRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "rpcpool_requests_successful_total", Help: "Acquire calls that returned a connection.", ConstLabels: labels,
		}),
		failedRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "rpcpool_requests_failed_total", Help: "Acquire calls that returned an error.", ConstLabels: labels,
		}),
		connectionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcpool_connections_created_total", Help: "Connections created, by provider.", ConstLabels: labels,
		}, []string{"provider_id"}),
		connectionsDestroyed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcpool_connections_destroyed_total", Help: "Connections destroyed, by provider.", ConstLabels: labels,
		}, []string{"provider_id"}),
		healthChecksPassed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rpcpool_health_checks_passed_total", Help: "Probe successes.", ConstLabels: labels,
		}),
		healthChecksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rpcpool_health_checks_failed_total", Help: "Probe failures.", ConstLabels: labels,
		}),
		queueLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rpcpool_queue_length", Help: "Waiters currently queued.", ConstLabels: labels,
		}),
	}
}

// Metrics is the programmatic snapshot returned by GetMetrics(), computed
// under the pool mutex so every field reflects one consistent instant.
type Metrics struct {
	TotalConnections    int
	ActiveConnections   int
	BusyConnections     int
	IdleConnections     int
	TotalRequests       uint64
	SuccessfulRequests  uint64
	FailedRequests      uint64
	AverageResponseTime float64 // EMA, milliseconds
	PoolUtilization     float64 // percent
	ConnectionsCreated  uint64
	ConnectionsDestroyed uint64
	HealthChecksPassed  uint64
	HealthChecksFailed  uint64
}

// metricsState holds the pool-wide counters that accumulate over the
// pool's lifetime and aren't derivable from the current registry
// contents alone. All access happens under the pool mutex.
type metricsState struct {
	totalRequests        uint64
	successfulRequests   uint64
	failedRequests       uint64
	averageResponseTime  float64
	connectionsCreated   uint64
	connectionsDestroyed uint64
	healthChecksPassed   uint64
	healthChecksFailed   uint64
}

// recordAcquire updates the Acquire-latency EMA (alpha=0.1) and the
// request counters. elapsedMs is the wall time spent inside Acquire.
func (m *metricsState) recordAcquire(elapsedMs float64, success bool) {
	m.totalRequests++
	if success {
		m.successfulRequests++
	} else {
		m.failedRequests++
	}
	if m.totalRequests == 1 {
		m.averageResponseTime = elapsedMs
	} else {
		m.averageResponseTime = 0.9*m.averageResponseTime + 0.1*elapsedMs
	}
}
