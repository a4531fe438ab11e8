package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/loom/pkg/domain"
)

// nopStore accepts everything and stores nothing.
type nopStore struct{}

func (nopStore) Save(ctx context.Context, doc *domain.Document) error { return nil }
func (nopStore) Load(ctx context.Context, id string) (*domain.Document, error) {
	return &domain.Document{ID: id}, nil
}
func (nopStore) Delete(ctx context.Context, id string) error { return nil }
func (nopStore) List(ctx context.Context) ([]string, error)  { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("doc-%d", i)
		_ = mgr.Save(ctx, &domain.Document{ID: id})
		_ = mgr.Delete(ctx, id)
	}

	if n := len(mgr.locks); n != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", n)
	}
}
