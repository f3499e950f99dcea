package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type pipelineMetrics struct {
	eventsTracked    *prometheus.CounterVec
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration prometheus.Histogram

	offlineQueueSize    prometheus.Gauge
	offlineQueueDropped *prometheus.CounterVec
	drainPasses         *prometheus.CounterVec

	sessionsStarted prometheus.Counter
	storageDegraded *prometheus.CounterVec

	laneSize     *prometheus.GaugeVec
	laneTasks    *prometheus.CounterVec
	laneDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *pipelineMetrics
)

func getMetrics() *pipelineMetrics {
	metricsOnce.Do(func() {
		m := &pipelineMetrics{
			eventsTracked: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "beacon_events_tracked_total",
					Help: "Tracked events by type and intake status.",
				},
				[]string{"type", "status"},
			),
			dispatchTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "beacon_dispatch_total",
					Help: "Dispatch attempts by outcome.",
				},
				[]string{"outcome"},
			),
			dispatchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "beacon_dispatch_duration_seconds",
					Help:    "Collector round trip duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			offlineQueueSize: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "beacon_offline_queue_size",
					Help: "Events currently waiting in the offline queue.",
				},
			),
			offlineQueueDropped: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "beacon_offline_queue_dropped_total",
					Help: "Events dropped from the offline queue by reason.",
				},
				[]string{"reason"},
			),
			drainPasses: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "beacon_drain_passes_total",
					Help: "Offline queue drain passes by status.",
				},
				[]string{"status"},
			),
			sessionsStarted: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "beacon_sessions_started_total",
					Help: "Sessions started, including those replacing an expired session.",
				},
			),
			storageDegraded: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "beacon_storage_degraded_total",
					Help: "Components that fell back to in-memory state.",
				},
				[]string{"component"},
			),
			laneSize: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "beacon_lane_size",
					Help: "Pending tasks by lane.",
				},
				[]string{"lane"},
			),
			laneTasks: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "beacon_lane_tasks_total",
					Help: "Completed lane tasks by lane and status.",
				},
				[]string{"lane", "status"},
			),
			laneDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "beacon_lane_task_duration_seconds",
					Help:    "Lane task duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"lane"},
			),
		}

		prometheus.MustRegister(
			m.eventsTracked,
			m.dispatchTotal,
			m.dispatchDuration,
			m.offlineQueueSize,
			m.offlineQueueDropped,
			m.drainPasses,
			m.sessionsStarted,
			m.storageDegraded,
			m.laneSize,
			m.laneTasks,
			m.laneDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordEventTracked(eventType, status string) {
	m := getMetrics()
	m.eventsTracked.WithLabelValues(eventType, status).Inc()
}

func RecordDispatch(outcome string, duration time.Duration, attempted bool) {
	m := getMetrics()
	m.dispatchTotal.WithLabelValues(outcome).Inc()
	if attempted {
		m.dispatchDuration.Observe(duration.Seconds())
	}
}

func SetOfflineQueueSize(size int) {
	m := getMetrics()
	m.offlineQueueSize.Set(float64(size))
}

func RecordQueueDrop(reason string) {
	m := getMetrics()
	m.offlineQueueDropped.WithLabelValues(reason).Inc()
}

func RecordDrainPass(status string) {
	m := getMetrics()
	m.drainPasses.WithLabelValues(status).Inc()
}

func RecordSessionStarted() {
	m := getMetrics()
	m.sessionsStarted.Inc()
}

func RecordStorageDegraded(component string) {
	m := getMetrics()
	m.storageDegraded.WithLabelValues(component).Inc()
}

func RecordLaneEnqueue(lane string, size int) {
	m := getMetrics()
	m.laneSize.WithLabelValues(lane).Set(float64(size))
}

func RecordLaneCompletion(lane string, duration time.Duration, success bool, size int) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.laneTasks.WithLabelValues(lane, status).Inc()
	m.laneDuration.WithLabelValues(lane).Observe(duration.Seconds())
	m.laneSize.WithLabelValues(lane).Set(float64(size))
}
