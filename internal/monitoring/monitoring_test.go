package monitoring

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-risk-engine/internal/logger"
)

// TestHealthChecker_Status tests healthy, degraded and unhealthy states
func TestHealthChecker_Status(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHealthChecker(time.Minute)
	h.now = func() time.Time { return now }

	assert.Equal(t, "degraded", h.Status().Status, "no cycle yet")

	h.RecordCycle("BTCUSDT", now.Add(-10*time.Second))
	assert.Equal(t, "healthy", h.Status().Status)

	h.SetEmergencyStop(true, "manual")
	st := h.Status()
	assert.Equal(t, "degraded", st.Status)
	assert.Equal(t, "manual", st.EmergencyReason)

	h.SetEmergencyStop(false, "")
	h.SetConnected(false)
	h.RecordError("gateway down")
	assert.Equal(t, "unhealthy", h.Status().Status)

	for i := 0; i < 20; i++ {
		h.RecordError("again")
	}
	assert.Len(t, h.Status().Errors, maxHealthErrors)
}

// TestServer_Routes tests the health and metrics endpoints
func TestServer_Routes(t *testing.T) {
	h := NewHealthChecker(time.Hour)
	h.RecordCycle("ETHUSDT", time.Now())
	RecordSignal("ETHUSDT", "LONG", 0.7)
	RecordVeto("daily-loss-limit")

	srv := NewServer(":0", h, map[string]http.Handler{
		"/ping": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("pong")) }),
	}, logger.NewNop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var status HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)

	metrics, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	buf := new(strings.Builder)
	_, _ = io.Copy(buf, metrics.Body)
	assert.Contains(t, buf.String(), "risk_engine_risk_vetoes_total")

	ping, err := http.Get(ts.URL + "/ping")
	require.NoError(t, err)
	ping.Body.Close()
	assert.Equal(t, http.StatusOK, ping.StatusCode)
}
