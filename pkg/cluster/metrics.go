package cluster

import (
	"fmt"

	"github.com/hashicorp/raft"
)

// Metrics is a point-in-time view of the node's Raft state: current
// term, log tail, applied watermark, membership, leader id, and role,
// plus a textual stats dump for debugging.
type Metrics struct {
	Term         uint64
	LastLogIndex uint64
	AppliedIndex uint64
	State        string
	LeaderID     string
	Voters       map[string]string
	Learners     map[string]string
	Textual      string
}

// Metrics reports the current Raft metrics.
func (n *Node) Metrics() (Metrics, error) {
	if n.raft == nil {
		return Metrics{}, fmt.Errorf("raft not initialized")
	}

	stats := n.raft.Stats()

	cfg, err := n.configuration()
	if err != nil {
		return Metrics{}, err
	}

	m := Metrics{
		LastLogIndex: n.raft.LastIndex(),
		AppliedIndex: n.raft.AppliedIndex(),
		State:        n.raft.State().String(),
		LeaderID:     string(n.raft.Leader()),
		Voters:       map[string]string{},
		Learners:     map[string]string{},
		Textual:      fmt.Sprintf("%+v", stats),
	}
	if term, ok := stats["term"]; ok {
		fmt.Sscanf(term, "%d", &m.Term)
	}

	for _, srv := range cfg.Servers {
		if srv.Suffrage == raft.Nonvoter {
			m.Learners[string(srv.ID)] = string(srv.Address)
		} else {
			m.Voters[string(srv.ID)] = string(srv.Address)
		}
	}

	return m, nil
}
