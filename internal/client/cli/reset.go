package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/codesync/internal/client/iocli"
	"github.com/iudanet/codesync/internal/client/storage"
)

// Reset удаляет локальное состояние проекта: журналы документов и
// идентичность реплики. При следующем подключении реплика получит все
// документы от координатора под новым ID. Без -f спрашивает подтверждение.
func Reset(ctx context.Context, io iocli.IO, store storage.OperationStorage, projectID string, args []string) error {
	force := false
	for _, arg := range args {
		if arg != "-f" {
			return fmt.Errorf("%w: reset [-f]", ErrUsage)
		}
		force = true
	}

	if !force {
		ok, err := confirm(io, fmt.Sprintf("Delete local state of project %s? Edits not yet synced will be lost. (yes/no): ", projectID))
		if err != nil {
			return err
		}
		if !ok {
			io.Println("Cancelled.")
			return nil
		}
	}

	if err := store.ClearProject(ctx, projectID); err != nil {
		return fmt.Errorf("failed to reset project %s: %w", projectID, err)
	}

	io.Printf("Local state of project %s deleted.\n", projectID)
	return nil
}
