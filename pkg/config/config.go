// Package config loads the YAML cluster configuration a raftkvd node
// starts from: node identity, listen addresses, data directory, and the
// bootstrap/join settings that decide how it enters a cluster.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Cluster is the on-disk configuration for a single raftkvd node.
type Cluster struct {
	// NodeID is this node's Raft server ID. Required.
	NodeID string `yaml:"node_id"`
	// BindAddr is the Raft transport's listen/advertise address.
	BindAddr string `yaml:"bind_addr"`
	// HTTPAddr is the External Service's HTTP listen address.
	HTTPAddr string `yaml:"http_addr"`
	// DataDir holds the embedded engine's database file.
	DataDir string `yaml:"data_dir"`
	// Bootstrap, when true, bootstraps a new cluster on startup using Peers
	// (or just this node, if Peers is empty). Mutually exclusive with Join.
	Bootstrap bool `yaml:"bootstrap"`
	// Join is an existing cluster leader's HTTP address, for nodes that are
	// not bootstrapping. serve only logs it and does not contact it: the
	// node starts Raft and waits for the leader to add it.
	Join string `yaml:"join,omitempty"`
	// Peers is the initial voter roster (id -> raft bind address) used when
	// Bootstrap is true and more than one initial voter is wanted.
	Peers map[string]string `yaml:"peers,omitempty"`
}

// Load reads and parses a Cluster configuration from path.
func Load(path string) (*Cluster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Cluster
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Cluster) validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id is required")
	}
	if c.BindAddr == "" {
		return fmt.Errorf("bind_addr is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Bootstrap && c.Join != "" {
		return fmt.Errorf("bootstrap and join are mutually exclusive")
	}
	return nil
}
