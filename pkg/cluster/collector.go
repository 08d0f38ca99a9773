package cluster

import (
	"time"

	"github.com/kvcluster/raftkv/pkg/metrics"
)

// Collector periodically samples a Node's Raft and KV state into the
// metrics package's Prometheus gauges.
type Collector struct {
	node   *Node
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over node.
func NewCollector(node *Node) *Collector {
	return &Collector{node: node, stopCh: make(chan struct{})}
}

// Start begins collecting metrics on a 15-second tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.node.IsLeader() {
		metrics.RaftLeader.Set(1)
	} else {
		metrics.RaftLeader.Set(0)
	}

	m, err := c.node.Metrics()
	if err == nil {
		metrics.RaftTerm.Set(float64(m.Term))
		metrics.RaftLastLogIndex.Set(float64(m.LastLogIndex))
		metrics.RaftAppliedIndex.Set(float64(m.AppliedIndex))
		metrics.RaftPeers.Set(float64(len(m.Voters) + len(m.Learners)))
	}

	metrics.KVKeysTotal.Set(float64(c.node.KeyCount()))
}
