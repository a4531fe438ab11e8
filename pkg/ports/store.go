package ports

import (
	"context"

	"github.com/aretw0/loom/pkg/domain"
)

// DocumentStore defines the interface for persisting documents.
type DocumentStore interface {
	// Save persists the document under its ID, replacing any previous version.
	Save(ctx context.Context, doc *domain.Document) error

	// Load retrieves the document with the given ID.
	// Returns domain.ErrDocumentNotFound if the document does not exist.
	Load(ctx context.Context, id string) (*domain.Document, error)

	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored documents.
	List(ctx context.Context) ([]string, error)
}
