package cluster

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestNode stands up a single-voter cluster on a loopback port and
// waits for it to elect itself.
func newTestNode(t *testing.T) *Node {
	t.Helper()

	dir := t.TempDir()
	port := 17000 + (time.Now().UnixNano() % 1000)
	cfg := Config{
		NodeID:   "node-1",
		BindAddr: fmt.Sprintf("127.0.0.1:%d", port),
		DataDir:  dir,
	}

	n, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, n.Bootstrap(nil))

	waitForLeader(t, n)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func waitForLeader(t *testing.T, n *Node) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if n.IsLeader() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("node never became leader")
}

func TestBootstrap_SingleNodeBecomesLeader(t *testing.T) {
	n := newTestNode(t)
	require.True(t, n.IsLeader())
}

func TestClientWrite_ThenGet(t *testing.T) {
	n := newTestNode(t)

	resp, err := n.ClientWrite("foo", "bar")
	require.NoError(t, err)
	require.NotNil(t, resp.Value)
	require.Equal(t, "bar", *resp.Value)

	v, ok := n.Get("foo")
	require.True(t, ok)
	require.Equal(t, "bar", v)
}

func TestGet_MissingKey(t *testing.T) {
	n := newTestNode(t)
	_, ok := n.Get("missing")
	require.False(t, ok)
}

func TestClientWrite_NotLeaderFails(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{NodeID: "node-2", BindAddr: "127.0.0.1:0", DataDir: dir}
	n, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })

	_, err = n.ClientWrite("foo", "bar")
	require.Error(t, err)
}

func TestMetrics_ReportsVoterAfterBootstrap(t *testing.T) {
	n := newTestNode(t)

	m, err := n.Metrics()
	require.NoError(t, err)
	require.Contains(t, m.Voters, "node-1")
	require.Empty(t, m.Learners)
}

func TestKeyCount_TracksAppliedWrites(t *testing.T) {
	n := newTestNode(t)
	require.Equal(t, 0, n.KeyCount())

	_, err := n.ClientWrite("a", "1")
	require.NoError(t, err)
	_, err = n.ClientWrite("b", "2")
	require.NoError(t, err)

	require.Equal(t, 2, n.KeyCount())
}
