package ports

import (
	"context"

	"github.com/aretw0/loom/pkg/domain"
)

// Editor defines the document operations exposed over transports.
// Adapters (HTTP, MCP) depend on this interface rather than on a concrete
// workspace.
type Editor interface {
	// Documents lists the stored document IDs.
	Documents(ctx context.Context) ([]string, error)

	// Document loads a stored document, with resolved generics filled in.
	Document(ctx context.Context, id string) (*domain.Document, error)

	// SaveDocument validates and stores doc, assigning an ID if it has none.
	// Import errors are returned and nothing is stored.
	SaveDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error)

	// DeleteDocument removes a stored document.
	DeleteDocument(ctx context.Context, id string) error

	// Validate imports doc without storing it and reports every issue found.
	Validate(ctx context.Context, doc *domain.Document) ([]domain.Issue, error)

	// Check tells whether the connection could be made, without making it.
	Check(ctx context.Context, id string, req domain.ConnectionRequest) (domain.CheckResult, error)

	// Connect makes the connection and stores the updated document.
	Connect(ctx context.Context, id string, req domain.ConnectionRequest) (*domain.Document, error)

	// Disconnect removes the connection and stores the updated document.
	Disconnect(ctx context.Context, id string, req domain.ConnectionRequest) (*domain.Document, error)

	// InspectPort describes the port at a blueprint-relative path.
	InspectPort(ctx context.Context, id, blueprint, path string) (domain.PortInfo, error)

	// Definitions lists the operator library.
	Definitions(ctx context.Context) []domain.Definition

	// Subscribe receives changes until the returned cancel function is called.
	Subscribe() (<-chan domain.Change, func())
}
