package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SessionStarted()
		m.SessionStopped()
		m.PeerConnected()
		m.PeerDisconnected()
		m.SlowConsumer()
		m.MessageReceived("hello")
		m.MessageSent("update")
		m.OperationsAppliedAdd("text", 3)
		m.Handshake(time.Millisecond)
		m.PresenceExpired(1)
		m.Snapshot("save", time.Millisecond, nil)
		m.Request(http.MethodGet, http.StatusOK, time.Millisecond)
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SessionStarted()
	m.SessionStarted()
	m.SessionStopped()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SessionsTotal))

	m.OperationsAppliedAdd("text", 3)
	m.OperationsAppliedAdd("text", 0)
	m.OperationsAppliedAdd("map", 1)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.OperationsApplied.WithLabelValues("text")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OperationsApplied.WithLabelValues("map")))

	m.Snapshot("save", time.Millisecond, errors.New("disk full"))
	m.Snapshot("save", time.Millisecond, nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SnapshotErrors.WithLabelValues("save")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(nil)
	m.PeerConnected()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "codesync_connected_peers 1")
}
