package ports

import (
	"context"

	"github.com/aretw0/loom/pkg/domain"
)

// LibraryLoader defines how operator definitions are retrieved.
// This allows the library source (Loam, files, memory) to be decoupled.
type LibraryLoader interface {
	// Definitions returns every definition currently available.
	Definitions(ctx context.Context) ([]domain.Definition, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying library changes.
	// It abstracts away the specific event details, signaling only that a reload is required.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
