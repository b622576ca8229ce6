package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/codesync/pkg/api"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL)

	assert.NotNil(t, client)
	assert.Equal(t, baseURL, client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

func TestClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/health", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		_ = json.NewEncoder(w).Encode(api.HealthResponse{Status: "ok", Version: "1.2.3", Sessions: 2})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).Health(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, 2, resp.Sessions)
}

func TestClient_ProjectStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/projects/demo":
			_ = json.NewEncoder(w).Encode(api.ProjectStats{
				ProjectID: "demo",
				Epoch:     "epoch-1",
				Documents: []api.DocumentStats{{ID: "files", Kind: "map", Operations: 3}},
				Peers:     []api.PeerStats{{ReplicaID: "alice", State: "live"}},
				Awareness: 1,
			})
		case "/api/v1/projects/idle":
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Not Found", Message: "no active session for project"})
		default:
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Bad Request", Message: "invalid project id"})
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)

	t.Run("active session", func(t *testing.T) {
		stats, err := client.ProjectStats(t.Context(), "demo")
		require.NoError(t, err)
		assert.Equal(t, "epoch-1", stats.Epoch)
		require.Len(t, stats.Documents, 1)
		assert.Equal(t, 3, stats.Documents[0].Operations)
		require.Len(t, stats.Peers, 1)
		assert.Equal(t, "alice", stats.Peers[0].ReplicaID)
	})

	t.Run("no session", func(t *testing.T) {
		_, err := client.ProjectStats(t.Context(), "idle")
		require.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("server error message", func(t *testing.T) {
		_, err := client.ProjectStats(t.Context(), "bad id")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server error (400): invalid project id")
	})
}

func TestClient_Errors(t *testing.T) {
	t.Run("plain text error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Health(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "request failed with status 500")
	})

	t.Run("invalid json", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{"))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Health(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode response")
	})

	t.Run("context cancelled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := NewClient(server.URL).Health(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		server  string
		want    string
		wantErr bool
	}{
		{server: "ws://localhost:8080", want: "http://localhost:8080"},
		{server: "wss://sync.example.com/api/collaboration/demo", want: "https://sync.example.com"},
		{server: "http://127.0.0.1:9000/", want: "http://127.0.0.1:9000"},
		{server: "ftp://example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			got, err := BaseURL(tt.server)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
