package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raftkvd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ValidBootstrapConfig(t *testing.T) {
	path := writeConfig(t, `
node_id: node-1
bind_addr: 127.0.0.1:7000
http_addr: 127.0.0.1:8000
data_dir: /tmp/raftkv/node-1
bootstrap: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "node-1", cfg.NodeID)
	require.True(t, cfg.Bootstrap)
	require.Empty(t, cfg.Join)
}

func TestLoad_ValidJoinConfigWithPeers(t *testing.T) {
	path := writeConfig(t, `
node_id: node-2
bind_addr: 127.0.0.1:7001
http_addr: 127.0.0.1:8001
data_dir: /tmp/raftkv/node-2
join: 127.0.0.1:8000
peers:
  node-1: 127.0.0.1:7000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8000", cfg.Join)
	require.Equal(t, map[string]string{"node-1": "127.0.0.1:7000"}, cfg.Peers)
}

func TestLoad_MissingNodeID(t *testing.T) {
	path := writeConfig(t, `
bind_addr: 127.0.0.1:7000
data_dir: /tmp/raftkv/node-1
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_BootstrapAndJoinMutuallyExclusive(t *testing.T) {
	path := writeConfig(t, `
node_id: node-1
bind_addr: 127.0.0.1:7000
data_dir: /tmp/raftkv/node-1
bootstrap: true
join: 127.0.0.1:8000
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
