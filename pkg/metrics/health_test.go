package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetHealth clears the package-level registry between tests; the
// registry is global because the daemon's subsystems report into it from
// anywhere, so tests have to restore a known-empty state themselves.
func resetHealth(t *testing.T) {
	t.Helper()
	health.mu.Lock()
	health.components = make(map[string]component)
	health.version = ""
	health.mu.Unlock()
}

func TestGetHealth_NoComponentsIsHealthy(t *testing.T) {
	resetHealth(t)
	status := GetHealth()
	assert.Equal(t, "healthy", status.Status)
	assert.Empty(t, status.Components)
}

func TestGetHealth_UnhealthyComponentFlipsStatus(t *testing.T) {
	resetHealth(t)
	SetComponentHealth("raft", true, "running")
	SetComponentHealth("storage", false, "db closed")

	status := GetHealth()
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "healthy", status.Components["raft"])
	assert.Equal(t, "unhealthy: db closed", status.Components["storage"])
}

func TestGetHealth_ReportsVersionAndUptime(t *testing.T) {
	resetHealth(t)
	SetVersion("1.0.0")

	status := GetHealth()
	assert.Equal(t, "1.0.0", status.Version)
	assert.NotEmpty(t, status.Uptime)
}

func TestGetReadiness_WaitsForCriticalComponents(t *testing.T) {
	resetHealth(t)

	status := GetReadiness()
	assert.Equal(t, "not_ready", status.Status)
	assert.Contains(t, status.Message, "waiting for")

	SetComponentHealth("raft", true, "running")
	SetComponentHealth("storage", true, "open")
	status = GetReadiness()
	assert.Equal(t, "not_ready", status.Status)
	assert.Equal(t, "not registered", status.Components["service"])

	SetComponentHealth("service", true, "ready")
	status = GetReadiness()
	assert.Equal(t, "ready", status.Status)
	assert.Empty(t, status.Message)
}

func TestGetReadiness_UnhealthyCriticalComponentBlocksReadiness(t *testing.T) {
	resetHealth(t)
	SetComponentHealth("raft", false, "no leader")
	SetComponentHealth("storage", true, "open")
	SetComponentHealth("service", true, "ready")

	status := GetReadiness()
	assert.Equal(t, "not_ready", status.Status)
	assert.Equal(t, "not ready: no leader", status.Components["raft"])
}

func TestSetComponentHealth_LatestReportWins(t *testing.T) {
	resetHealth(t)
	SetComponentHealth("raft", false, "electing")
	SetComponentHealth("raft", true, "leader")

	status := GetHealth()
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Components["raft"])
}

func doRequest(t *testing.T, h http.HandlerFunc) (*httptest.ResponseRecorder, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return rec, status
}

func TestHealthHandler_StatusCodes(t *testing.T) {
	resetHealth(t)
	SetComponentHealth("raft", true, "running")

	rec, status := doRequest(t, HealthHandler())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", status.Status)

	SetComponentHealth("raft", false, "shutting down")
	rec, status = doRequest(t, HealthHandler())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", status.Status)
}

func TestReadyHandler_503UntilCriticalComponentsReport(t *testing.T) {
	resetHealth(t)

	rec, _ := doRequest(t, ReadyHandler())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	SetComponentHealth("raft", true, "running")
	SetComponentHealth("storage", true, "open")
	SetComponentHealth("service", true, "ready")
	rec, status := doRequest(t, ReadyHandler())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", status.Status)
}

func TestLivenessHandler_Always200(t *testing.T) {
	resetHealth(t)

	rec, status := doRequest(t, LivenessHandler())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", status.Status)
	assert.NotEmpty(t, status.Uptime)

	// Liveness is independent of component health.
	SetComponentHealth("raft", false, "down")
	rec, _ = doRequest(t, LivenessHandler())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestComponentTimestampAdvancesOnReRegister(t *testing.T) {
	resetHealth(t)
	SetComponentHealth("raft", true, "running")
	health.mu.RLock()
	first := health.components["raft"].updated
	health.mu.RUnlock()

	time.Sleep(time.Millisecond)
	SetComponentHealth("raft", true, "still running")
	health.mu.RLock()
	second := health.components["raft"].updated
	health.mu.RUnlock()

	assert.True(t, second.After(first))
}
