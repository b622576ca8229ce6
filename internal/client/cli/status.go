package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/codesync/internal/client/replica"
	"github.com/iudanet/codesync/internal/models"
)

func (c *Cli) runStatus(_ context.Context, _ []string) error {
	status, reason := c.session.Status()
	loss := c.session.DataLoss()

	c.io.Println("=== Session Status ===")
	c.io.Println()
	c.io.Printf("Project:   %s\n", c.session.ProjectID())
	c.io.Printf("Replica:   %s\n", c.session.ReplicaID())
	c.io.Printf("Status:    %s\n", c.colors.status.Sprint(status))
	if reason != nil && !errors.Is(reason, replica.ErrDataLoss) {
		c.io.Printf("Reason:    %s\n", c.colors.warn.Sprint(reason))
	}
	if loss != nil {
		c.io.Printf("Warning:   %s\n", c.colors.warn.Sprint(loss))
		c.io.Println("           Restore the missing edits, then run ack-loss.")
	}
	if epoch := c.session.Epoch(); epoch != "" {
		c.io.Printf("Epoch:     %s\n", epoch)
	}

	files := 0
	for _, node := range c.session.FileTree().Nodes() {
		if !node.IsFolder() {
			files++
		}
	}
	c.io.Printf("Documents: %d (%d file(s))\n", len(c.session.Documents()), files)

	c.io.Println()
	peers := c.session.Awareness()
	if len(peers) == 0 {
		c.io.Println("No other replicas online.")
		return nil
	}

	c.io.Printf("Online (%d):\n", len(peers))
	for _, p := range peers {
		c.io.Printf("  %s %s\n", c.colors.peer.Sprint(displayName(p)), c.cursor(p.Cursor))
	}
	return nil
}

func (c *Cli) runAckLoss(_ context.Context, _ []string) error {
	if c.session.DataLoss() == nil {
		c.io.Println("No data loss reported.")
		return nil
	}
	if err := c.session.AcknowledgeDataLoss(); err != nil {
		return err
	}
	c.io.Println("Data loss acknowledged.")
	return nil
}

func displayName(p models.Presence) string {
	if p.User.Name != "" {
		return p.User.Name
	}
	return p.ReplicaID
}

func (c *Cli) cursor(cur *models.Cursor) string {
	if cur == nil {
		return ""
	}
	if cur.Anchor == cur.Head {
		return fmt.Sprintf("at %s:%d", c.pathOf(cur.DocumentID), cur.Head)
	}
	return fmt.Sprintf("at %s:%d-%d", c.pathOf(cur.DocumentID), min(cur.Anchor, cur.Head), max(cur.Anchor, cur.Head))
}
