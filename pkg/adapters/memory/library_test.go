package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibrary_Contract(t *testing.T) {
	lib := memory.NewLibrary(domain.Definition{Name: "uppercase"}, domain.Definition{Name: "split"})
	ports.RunLibraryLoaderContract(t, lib, "uppercase", "split")
}

func TestLibrary_Watch(t *testing.T) {
	lib := memory.NewLibrary()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := lib.Watch(ctx)
	require.NoError(t, err)

	lib.Set(domain.Definition{Name: "fresh"})
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a reload signal")
	}

	defs, err := lib.Definitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "fresh", defs[0].Name)

	cancel()
	select {
	case _, open := <-ch:
		assert.False(t, open, "channel closes when the context ends")
	case <-time.After(time.Second):
		t.Fatal("expected the channel to close")
	}
}
