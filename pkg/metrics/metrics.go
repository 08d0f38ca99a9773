package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftkv_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftTerm = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftkv_raft_term",
			Help: "Current Raft term as observed by this node",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftkv_raft_peers_total",
			Help: "Total number of Raft peers (voters and learners) in the cluster",
		},
	)

	RaftLastLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftkv_raft_last_log_index",
			Help: "Highest Raft log index on this node",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftkv_raft_applied_index",
			Help: "Last Raft log index applied to the state machine",
		},
	)

	// KV state machine metrics
	KVKeysTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftkv_kv_keys_total",
			Help: "Number of keys currently held in the replicated KV map",
		},
	)

	SetTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raftkv_set_total",
			Help: "Total number of set operations submitted as client writes",
		},
	)

	GetTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raftkv_get_total",
			Help: "Total number of get operations by outcome",
		},
		[]string{"outcome"},
	)

	// Apply/snapshot latency
	ApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftkv_apply_duration_seconds",
			Help:    "Time taken to apply a committed Raft log entry to the state machine",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftkv_snapshot_build_duration_seconds",
			Help:    "Time taken to build and persist a state machine snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Storage errors
	StorageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raftkv_storage_errors_total",
			Help: "Total number of storage-layer errors by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftTerm)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftLastLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(KVKeysTotal)
	prometheus.MustRegister(SetTotal)
	prometheus.MustRegister(GetTotal)
	prometheus.MustRegister(ApplyDuration)
	prometheus.MustRegister(SnapshotBuildDuration)
	prometheus.MustRegister(StorageErrorsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
