/*
Package metrics provides Prometheus metrics collection and exposition for
the cluster daemon.

All metrics are registered at package init against the Prometheus
DefaultRegistry and exposed via the standard /metrics HTTP endpoint
(Handler). Gauges track instantaneous Raft/KV state (leader status, term,
log indices, key count); counters track cumulative operation totals (set,
get, storage errors); histograms track apply and snapshot-build latency.

# Metrics Catalog

raftkv_raft_is_leader: Gauge. 1 if this node holds Raft leadership, else 0.

raftkv_raft_term: Gauge. Current Raft term as observed by this node.

raftkv_raft_peers_total: Gauge. Voters plus learners in the current
configuration.

raftkv_raft_last_log_index / raftkv_raft_applied_index: Gauges. Log
tail and applied watermark.

raftkv_kv_keys_total: Gauge. Keys currently held in the replicated map.

raftkv_set_total: Counter. Client writes submitted.

raftkv_get_total{outcome}: CounterVec. Local reads by outcome
("hit"/"miss").

raftkv_apply_duration_seconds / raftkv_snapshot_build_duration_seconds:
Histograms. State machine Apply and snapshot-build latency.

raftkv_storage_errors_total{kind}: CounterVec. Errors constructed by
raftkverrors.New and raftkverrors.NewSnapshot, labeled by Kind. Every
storage/log/snapshot failure funnels through here regardless of which
package raised it; NotFound and InvalidArgument errors built by the
package's other helpers are not counted.

A Timer (NewTimer/ObserveDuration/ObserveDurationVec) is the shared
helper for recording latency into any histogram above. Package cluster's
Collector (not this package, to avoid an import cycle through
pkg/raftkverrors) polls Raft and KV state into the gauges every 15s.
*/
package metrics
