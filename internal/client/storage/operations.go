package storage

import (
	"context"

	"github.com/iudanet/codesync/internal/document"
	"github.com/iudanet/codesync/internal/models"
)

// OperationStorage defines interface for storing per-document operation logs on client
type OperationStorage interface {
	// AppendOperations appends applied operations to the document log
	// Operations must be passed in the order they were applied
	AppendOperations(ctx context.Context, projectID, documentID string, kind models.DocumentKind, ops []models.Operation) error

	// LoadDocuments returns every stored document of the project
	// Operations of each document are returned in the order they were appended
	LoadDocuments(ctx context.Context, projectID string) ([]document.Snapshot, error)

	// ClearProject removes all documents and replica state of the project
	ClearProject(ctx context.Context, projectID string) error
}
