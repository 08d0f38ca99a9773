package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kvcluster/raftkv/pkg/cluster"
)

func newTestService(t *testing.T) (*Service, *httptest.Server) {
	t.Helper()

	dir := t.TempDir()
	port := 18000 + (time.Now().UnixNano() % 1000)
	n, err := cluster.New(cluster.Config{
		NodeID:   "node-1",
		BindAddr: fmt.Sprintf("127.0.0.1:%d", port),
		DataDir:  dir,
	})
	require.NoError(t, err)
	require.NoError(t, n.Bootstrap(nil))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !n.IsLeader() {
		time.Sleep(25 * time.Millisecond)
	}
	require.True(t, n.IsLeader(), "node never became leader")

	svc := New(n)
	srv := httptest.NewServer(NewRouter(svc, nil))

	t.Cleanup(func() {
		srv.Close()
		_ = n.Close()
	})
	return svc, srv
}

func TestHandleSet_ThenHandleGet(t *testing.T) {
	_, srv := newTestService(t)

	body, _ := json.Marshal(setRequestBody{Value: "bar"})
	resp, err := http.Post(srv.URL+"/v1/kv/foo", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	getResp, err := http.Get(srv.URL + "/v1/kv/foo")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var out getResponseBody
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&out))
	require.Equal(t, "bar", out.Value)
}

func TestHandleGet_MissingKeyReturns404(t *testing.T) {
	_, srv := newTestService(t)

	resp, err := http.Get(srv.URL + "/v1/kv/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleMetrics_ReturnsVoter(t *testing.T) {
	_, srv := newTestService(t)

	resp, err := http.Get(srv.URL + "/v1/cluster/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var m cluster.Metrics
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	require.Contains(t, m.Voters, "node-1")
}

func TestHandleAddLearner_InvalidBodyReturns400(t *testing.T) {
	_, srv := newTestService(t)

	resp, err := http.Post(srv.URL+"/v1/cluster/learners", "application/json", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
