package cli

import (
	"context"
	"errors"
	"fmt"

	capi "github.com/iudanet/codesync/internal/client/api"
)

func (c *Cli) runServer(ctx context.Context, _ []string) error {
	if c.remote == nil {
		return ErrNoServer
	}

	health, err := c.remote.Health(ctx)
	if err != nil {
		return fmt.Errorf("coordinator unavailable: %w", err)
	}

	c.io.Println("=== Coordinator ===")
	c.io.Println()
	c.io.Printf("Status:    %s\n", c.colors.status.Sprint(health.Status))
	if health.Version != "" {
		c.io.Printf("Version:   %s\n", health.Version)
	}
	c.io.Printf("Sessions:  %d\n", health.Sessions)
	c.io.Println()

	stats, err := c.remote.ProjectStats(ctx, c.session.ProjectID())
	if errors.Is(err, capi.ErrNoSession) {
		c.io.Printf("No active session for project %s.\n", c.session.ProjectID())
		return nil
	}
	if err != nil {
		return err
	}

	c.io.Printf("Project:   %s\n", stats.ProjectID)
	c.io.Printf("Epoch:     %s\n", stats.Epoch)
	c.io.Printf("Started:   %s\n", stats.StartedAt.Local().Format("2006-01-02 15:04:05"))
	c.io.Printf("Awareness: %d\n", stats.Awareness)

	c.io.Println()
	known := make(map[string]bool)
	for _, id := range c.session.Documents() {
		known[id] = true
	}

	c.io.Printf("Documents (%d):\n", len(stats.Documents))
	for _, doc := range stats.Documents {
		mark := ""
		if !known[doc.ID] {
			mark = " " + c.colors.warn.Sprint("(not synced)")
		} else if c.session.Document(doc.ID).Digest() != doc.Digest {
			mark = " " + c.colors.warn.Sprint("(differs)")
		}
		c.io.Printf("  %-24s %-4s ops=%d deleted=%d pending=%d%s\n",
			c.pathOf(doc.ID), doc.Kind, doc.Operations, doc.Tombstones, doc.Pending, mark)
	}

	c.io.Println()
	c.io.Printf("Peers (%d):\n", len(stats.Peers))
	for _, p := range stats.Peers {
		c.io.Printf("  %s %s queued=%d\n", c.colors.peer.Sprint(p.ReplicaID), p.State, p.Queued)
	}
	return nil
}
