package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	capi "github.com/iudanet/codesync/internal/client/api"
	"github.com/iudanet/codesync/internal/models"
	"github.com/iudanet/codesync/pkg/api"
)

type fakeRemote struct {
	healthErr error
	statsErr  error
	stats     *api.ProjectStats
}

func (f *fakeRemote) Health(context.Context) (*api.HealthResponse, error) {
	if f.healthErr != nil {
		return nil, f.healthErr
	}
	return &api.HealthResponse{Status: "ok", Version: "1.0.0", Sessions: 3}, nil
}

func (f *fakeRemote) ProjectStats(_ context.Context, projectID string) (*api.ProjectStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

func TestServer(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		c, _, _ := newTestCli(t)
		require.ErrorIs(t, run(t, c, "server"), ErrNoServer)
	})

	t.Run("unavailable", func(t *testing.T) {
		c, _, _ := newTestCli(t)
		c.WithRemote(&fakeRemote{healthErr: errors.New("connection refused")})

		err := run(t, c, "server")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "coordinator unavailable")
	})

	t.Run("no session", func(t *testing.T) {
		c, _, out := newTestCli(t)
		c.WithRemote(&fakeRemote{statsErr: fmt.Errorf("project stats request failed: %w", capi.ErrNoSession)})

		require.NoError(t, run(t, c, "server"))
		assert.Contains(t, out.String(), "Sessions:  3\n")
		assert.Contains(t, out.String(), "No active session for project demo.")
	})

	t.Run("stats", func(t *testing.T) {
		c, _, out := newTestCli(t)
		require.NoError(t, run(t, c, "touch a.txt"))
		node, err := c.session.FileTree().Resolve("a.txt")
		require.NoError(t, err)

		tree := c.session.Document(models.FileTreeDocumentID)
		c.WithRemote(&fakeRemote{stats: &api.ProjectStats{
			ProjectID: "demo",
			Epoch:     "epoch-1",
			Awareness: 2,
			Documents: []api.DocumentStats{
				{ID: models.FileTreeDocumentID, Kind: "map", Digest: tree.Digest(), Operations: 1},
				{ID: node.ID.String(), Kind: "text", Digest: "stale", Operations: 1, Pending: 1},
				{ID: "other", Kind: "text", Operations: 4, Tombstones: 2},
			},
			Peers: []api.PeerStats{{ReplicaID: "alice", State: "live", Queued: 2}},
		}})

		out.Reset()
		require.NoError(t, run(t, c, "server"))

		text := out.String()
		assert.Contains(t, text, "Version:   1.0.0\n")
		assert.Contains(t, text, "Epoch:     epoch-1\n")
		assert.Contains(t, text, "Documents (3):\n")
		assert.Contains(t, text, "a.txt")
		assert.Contains(t, text, "pending=1 (differs)")
		assert.Contains(t, text, "ops=4 deleted=2 pending=0 (not synced)")
		assert.Contains(t, text, "Peers (1):\n  alice live queued=2\n")
		assert.NotContains(t, text, "ops=1 deleted=0 pending=0 (")
	})
}
