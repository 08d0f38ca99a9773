// Package service is the client-facing operation set
// (Set/Get/Init/AddLearner/ChangeMembership/Metrics) wrapping a
// *cluster.Node, plus the HTTP+JSON transport in http.go that dispatches
// onto it.
package service

import (
	"github.com/kvcluster/raftkv/pkg/cluster"
	"github.com/kvcluster/raftkv/pkg/raftkverrors"
	"github.com/kvcluster/raftkv/pkg/rlog"
	"github.com/kvcluster/raftkv/pkg/statemachine"
)

// Service is the thin method layer the HTTP transport dispatches onto; it
// exists separately from cluster.Node so non-HTTP callers (tests, a future
// gRPC transport) have the same entry points without pulling in net/http.
type Service struct {
	node *cluster.Node
	log  rlog.Logger
}

// New wraps node in a Service.
func New(node *cluster.Node) *Service {
	return &Service{node: node, log: rlog.WithComponent("service")}
}

// Set submits a client write, the replicated form of set(key, value).
func (s *Service) Set(key, value string) (statemachine.Response, error) {
	if key == "" {
		return statemachine.Response{}, raftkverrors.InvalidArgumentError("key must not be empty")
	}
	return s.node.ClientWrite(key, value)
}

// Get performs a local read, the lookup behind get(key). Returns
// raftkverrors.NotFound if key is absent.
func (s *Service) Get(key string) (string, error) {
	v, ok := s.node.Get(key)
	if !ok {
		return "", raftkverrors.NotFoundError(key)
	}
	return v, nil
}

// Init bootstraps a new cluster with the given initial voter roster. An
// empty peers map bootstraps a single-voter cluster consisting of this
// node alone.
func (s *Service) Init(peers map[string]string) error {
	return s.node.Bootstrap(peers)
}

// AddLearner adds a non-voting learner.
func (s *Service) AddLearner(id, address string) error {
	return s.node.AddLearner(id, address)
}

// ChangeMembership proposes a new voter set. retain controls whether
// dropped voters are demoted to learners (true) or removed outright
// (false).
func (s *Service) ChangeMembership(members map[string]string, retain bool) error {
	return s.node.ChangeMembership(members, retain)
}

// Metrics reports current Raft/KV state.
func (s *Service) Metrics() (cluster.Metrics, error) {
	return s.node.Metrics()
}
