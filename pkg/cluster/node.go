// Package cluster glues the log store and state machine into the Raft
// consensus engine: it owns the *raft.Raft handle and exposes the
// operations the external service needs (bootstrap, learner/membership
// changes, client writes, metrics).
package cluster

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/raft"

	"github.com/kvcluster/raftkv/pkg/metrics"
	"github.com/kvcluster/raftkv/pkg/raftkverrors"
	"github.com/kvcluster/raftkv/pkg/raftlog"
	"github.com/kvcluster/raftkv/pkg/rlog"
	"github.com/kvcluster/raftkv/pkg/statemachine"
	"github.com/kvcluster/raftkv/pkg/storage"
)

func marshalCommand(cmd statemachine.Command) ([]byte, error) {
	return json.Marshal(&cmd)
}

// applyTimeout bounds how long a client write waits for its Raft future;
// membership changes get longer since they round-trip through
// configuration replication.
const (
	applyTimeout      = 5 * time.Second
	membershipTimeout = 10 * time.Second
)

// Config holds what a Node needs to stand up its Raft instance.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Node owns the Raft engine plus the log store and state machine it
// drives, and is the only component in this module that talks to
// *raft.Raft directly; pkg/service calls through Node, never through
// raft.Raft itself.
type Node struct {
	cfg Config

	raft      *raft.Raft
	logStore  *raftlog.Store
	fsm       *statemachine.Store
	engine    *storage.Engine
	transport *raft.NetworkTransport

	log rlog.Logger
}

// New wires a Node's storage and state machine but does not yet start
// Raft. Callers call Bootstrap (fresh cluster) or Start (node that will
// be added to an existing one) next.
func New(cfg Config) (*Node, error) {
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.New().String()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	engine, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open embedded engine: %w", err)
	}

	fsm, err := statemachine.New(engine)
	if err != nil {
		return nil, fmt.Errorf("hydrate state machine: %w", err)
	}

	return &Node{
		cfg:      cfg,
		logStore: raftlog.New(engine),
		fsm:      fsm,
		engine:   engine,
		log:      rlog.WithComponent("cluster"),
	}, nil
}

// raftConfig builds the *raft.Config every start path shares. Shorter
// heartbeat/election/lease timeouts than the library's WAN-oriented
// defaults, since this daemon targets LAN deployments.
func (n *Node) raftConfig() *raft.Config {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(n.cfg.NodeID)
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond
	return config
}

// start constructs the transport, snapshot store, and *raft.Raft instance
// shared by Bootstrap and Start; only the post-construction step (bootstrap
// a single-node configuration vs. wait to be added by an existing leader)
// differs between them.
func (n *Node) start() error {
	addr, err := net.ResolveTCPAddr("tcp", n.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(n.cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}
	n.transport = transport

	snapshotStore := newSnapshotStore(n.engine)

	r, err := raft.NewRaft(n.raftConfig(), n.fsm, n.logStore, n.logStore, snapshotStore, transport)
	if err != nil {
		return fmt.Errorf("create raft instance: %w", err)
	}
	n.raft = r
	return nil
}

// Bootstrap starts Raft (unless Start already has) and initializes a new
// cluster whose sole member (or whose full initial roster, if peers is
// non-empty) is given by peers (id -> address), mirroring
// init(node_list)'s semantics. Fails if this node's Raft instance has
// already bootstrapped a configuration.
func (n *Node) Bootstrap(peers map[string]string) error {
	if n.raft == nil {
		if err := n.start(); err != nil {
			return err
		}
	}

	servers := make([]raft.Server, 0, len(peers))
	if len(peers) == 0 {
		servers = append(servers, raft.Server{
			ID:      raft.ServerID(n.cfg.NodeID),
			Address: n.transport.LocalAddr(),
		})
	} else {
		for id, addr := range peers {
			servers = append(servers, raft.Server{ID: raft.ServerID(id), Address: raft.ServerAddress(addr)})
		}
	}

	future := n.raft.BootstrapCluster(raft.Configuration{Servers: servers})
	if err := future.Error(); err != nil {
		return raftkverrors.New(raftkverrors.InvalidArgument, "", "", fmt.Errorf("bootstrap cluster: %w", err))
	}
	n.log.Info("bootstrapped cluster", "node_id", n.cfg.NodeID, "voters", len(servers))
	return nil
}

// Start brings up Raft for a node that will be added to an existing
// cluster by its leader (via AddLearner/ChangeMembership on that leader),
// without bootstrapping a configuration of its own.
func (n *Node) Start() error {
	return n.start()
}

// Close shuts down Raft and releases the embedded engine.
func (n *Node) Close() error {
	if n.raft != nil {
		if err := n.raft.Shutdown().Error(); err != nil {
			n.log.Warn("raft shutdown returned error", "error", err)
		}
	}
	return n.engine.Close()
}

// IsLeader reports whether this node currently holds Raft leadership.
func (n *Node) IsLeader() bool {
	return n.raft != nil && n.raft.State() == raft.Leader
}

// LeaderAddr returns the current leader's transport address, or "" if
// unknown.
func (n *Node) LeaderAddr() string {
	if n.raft == nil {
		return ""
	}
	return string(n.raft.Leader())
}

// AddLearner adds id@address as a non-voting learner and blocks until the
// membership change commits. On success it submits a synthetic
// CommandMembership marker entry so the state machine can observe the new
// membership through Apply; hashicorp/raft never calls FSM.Apply for
// configuration-change log entries.
func (n *Node) AddLearner(id, address string) error {
	if !n.IsLeader() {
		return raftkverrors.New(raftkverrors.NotLeader, "", "", fmt.Errorf("not leader, current leader: %s", n.LeaderAddr()))
	}

	future := n.raft.AddNonvoter(raft.ServerID(id), raft.ServerAddress(address), 0, membershipTimeout)
	if err := future.Error(); err != nil {
		return raftkverrors.New(raftkverrors.Unavailable, "", "", fmt.Errorf("add learner %s: %w", id, err))
	}
	return n.recordMembership()
}

// ChangeMembership proposes a new voter set. When retain is true, voters
// dropped from memberIDs
// are demoted to learners instead of removed outright (raft.AddNonvoter
// on the existing address); when false they are removed entirely
// (raft.RemoveServer). The synthetic CommandMembership marker entry is
// submitted afterward exactly as in AddLearner.
func (n *Node) ChangeMembership(memberIDs map[string]string, retain bool) error {
	if !n.IsLeader() {
		return raftkverrors.New(raftkverrors.NotLeader, "", "", fmt.Errorf("not leader, current leader: %s", n.LeaderAddr()))
	}

	current, err := n.configuration()
	if err != nil {
		return err
	}

	desired := make(map[raft.ServerID]raft.ServerAddress, len(memberIDs))
	for id, addr := range memberIDs {
		desired[raft.ServerID(id)] = raft.ServerAddress(addr)
	}

	for id, addr := range desired {
		future := n.raft.AddVoter(id, addr, 0, membershipTimeout)
		if err := future.Error(); err != nil {
			return raftkverrors.New(raftkverrors.Unavailable, "", "", fmt.Errorf("add voter %s: %w", id, err))
		}
	}

	for _, srv := range current.Servers {
		if _, keep := desired[srv.ID]; keep {
			continue
		}
		if retain {
			future := n.raft.AddNonvoter(srv.ID, srv.Address, 0, membershipTimeout)
			if err := future.Error(); err != nil {
				return raftkverrors.New(raftkverrors.Unavailable, "", "", fmt.Errorf("demote %s: %w", srv.ID, err))
			}
			continue
		}
		future := n.raft.RemoveServer(srv.ID, 0, membershipTimeout)
		if err := future.Error(); err != nil {
			return raftkverrors.New(raftkverrors.Unavailable, "", "", fmt.Errorf("remove server %s: %w", srv.ID, err))
		}
	}

	return n.recordMembership()
}

func (n *Node) configuration() (raft.Configuration, error) {
	future := n.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return raft.Configuration{}, raftkverrors.New(raftkverrors.Unavailable, "", "", fmt.Errorf("get configuration: %w", err))
	}
	return future.Configuration(), nil
}

// recordMembership submits a CommandMembership entry reflecting the
// cluster's configuration as raft itself now sees it (post consensus-level
// change), so the state machine's LastMembership always matches what
// raft.GetConfiguration reports.
func (n *Node) recordMembership() error {
	cfg, err := n.configuration()
	if err != nil {
		return err
	}

	membership := statemachine.MembershipConfig{
		Voters:   map[string]string{},
		Learners: map[string]string{},
	}
	for _, srv := range cfg.Servers {
		if srv.Suffrage == raft.Nonvoter {
			membership.Learners[string(srv.ID)] = string(srv.Address)
		} else {
			membership.Voters[string(srv.ID)] = string(srv.Address)
		}
	}

	cmd := statemachine.Command{Type: statemachine.CommandMembership, Membership: &membership}
	return n.apply(cmd)
}

// ClientWrite submits a Normal(SetRequest) as a client write, the
// replicated form of set(). On success, once the entry has been applied,
// it returns a Response carrying the written value; the state machine's
// own Response for the entry is not read. Raft
// failures (not leader, no quorum, shutting down) surface as a
// raftkverrors.Unavailable error carrying the cause.
func (n *Node) ClientWrite(key, value string) (statemachine.Response, error) {
	metrics.SetTotal.Inc()
	cmd := statemachine.Command{Type: statemachine.CommandNormal, Set: &statemachine.SetRequest{Key: key, Value: value}}
	if err := n.apply(cmd); err != nil {
		return statemachine.Response{}, err
	}
	v := value
	return statemachine.Response{Value: &v}, nil
}

func (n *Node) apply(cmd statemachine.Command) error {
	if n.raft == nil {
		return raftkverrors.New(raftkverrors.Unavailable, "", "", fmt.Errorf("raft not initialized"))
	}

	data, err := marshalCommand(cmd)
	if err != nil {
		return raftkverrors.New(raftkverrors.InvalidArgument, "", "", err)
	}

	future := n.raft.Apply(data, applyTimeout)
	if err := future.Error(); err != nil {
		return raftkverrors.New(raftkverrors.Unavailable, "", "", fmt.Errorf("apply command: %w", err))
	}
	if resp, ok := future.Response().(error); ok && resp != nil {
		return resp
	}
	return nil
}

// Get looks up key locally against the state machine, a local-only read
// that may be stale on followers.
func (n *Node) Get(key string) (string, bool) {
	v, ok := n.fsm.Get(key)
	if ok {
		metrics.GetTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.GetTotal.WithLabelValues("miss").Inc()
	}
	return v, ok
}

// KeyCount reports the number of keys currently held in the replicated
// KV map, for metrics collection.
func (n *Node) KeyCount() int {
	return n.fsm.Len()
}
