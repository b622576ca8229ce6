package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/codesync/internal/server/metrics"
)

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		handler        http.HandlerFunc
		name           string
		method         string
		path           string
		wantLevel      string
		expectedStatus int
	}{
		{
			name:   "project stats 200",
			method: http.MethodGet,
			path:   "/api/v1/projects/demo",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
			wantLevel:      "INFO",
			expectedStatus: http.StatusOK,
		},
		{
			name:   "plain request to collaboration endpoint",
			method: http.MethodGet,
			path:   "/api/collaboration/demo",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUpgradeRequired)
			},
			wantLevel:      "WARN",
			expectedStatus: http.StatusUpgradeRequired,
		},
		{
			name:   "server error",
			method: http.MethodGet,
			path:   "/api/v1/projects/broken",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantLevel:      "ERROR",
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuf strings.Builder
			logger := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}))

			handler := LoggingMiddleware(logger)(tt.handler)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.RemoteAddr = "192.168.1.1:12345"
			req.Header.Set("User-Agent", "TestAgent/1.0")
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			logOutput := logBuf.String()
			assert.Contains(t, logOutput, "HTTP request")
			assert.Contains(t, logOutput, tt.path)
			assert.Contains(t, logOutput, "192.168.1.1:12345")
			assert.Contains(t, logOutput, "TestAgent/1.0")
			assert.Contains(t, logOutput, "level="+tt.wantLevel)
		})
	}
}

func TestLoggingMiddleware_CapturesResponseSize(t *testing.T) {
	var logBuf strings.Builder
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Hello, World!"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	logOutput := logBuf.String()
	assert.Contains(t, logOutput, "duration_ms=")
	assert.Contains(t, logOutput, "bytes_written=13")
	assert.Contains(t, logOutput, "status=200")
}

func TestLoggingWithSkip(t *testing.T) {
	var logBuf strings.Builder
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	handler := LoggingWithSkip(logger, []string{"/health", "/metrics"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))

	t.Run("skipped path", func(t *testing.T) {
		logBuf.Reset()
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Empty(t, logBuf.String())
	})

	t.Run("logged path", func(t *testing.T) {
		logBuf.Reset()
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/projects/demo", nil))
		assert.Contains(t, logBuf.String(), "/api/v1/projects/demo")
	})
}

func TestResponseWriter_CapturesStatusCode(t *testing.T) {
	tests := []struct {
		name           string
		writeHeader    bool
		statusCode     int
		expectedStatus int
	}{
		{
			name:           "explicit 426",
			writeHeader:    true,
			statusCode:     http.StatusUpgradeRequired,
			expectedStatus: http.StatusUpgradeRequired,
		},
		{
			name:           "default 200",
			writeHeader:    false,
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := wrap(httptest.NewRecorder())

			if tt.writeHeader {
				rw.WriteHeader(tt.statusCode)
			}
			n, err := rw.Write([]byte("test"))
			require.NoError(t, err)

			assert.Equal(t, tt.expectedStatus, rw.statusCode)
			assert.Equal(t, int64(n), rw.written)
		})
	}
}

func TestResponseWriter_HijackNotSupported(t *testing.T) {
	rw := wrap(httptest.NewRecorder())

	_, _, err := rw.Hijack()
	require.ErrorIs(t, err, errHijackNotSupported)
}

// syncBuffer буфер логов, который пишет горутина сервера
type syncBuffer struct {
	b  strings.Builder
	mu sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// Websocket upgrade проходит через обертку логирования и метрик
func TestLoggingMiddleware_WebSocketUpgrade(t *testing.T) {
	var logBuf syncBuffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	upgrader := websocket.Upgrader{}
	handler := MetricsMiddleware(metrics.New(nil))(LoggingMiddleware(logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ws, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			_ = ws.Close()
		})))

	srv := httptest.NewServer(handler)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	_ = ws.Close()

	require.Eventually(t, func() bool {
		return strings.Contains(logBuf.String(), "status=101")
	}, time.Second, 10*time.Millisecond)
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New(nil)

	handler := MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.RequestsTotal.WithLabelValues(http.MethodGet, http.StatusText(http.StatusNotFound))))
}
