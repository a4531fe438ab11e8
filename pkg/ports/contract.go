package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractDocument(id string) *domain.Document {
	return &domain.Document{
		ID:   id,
		Name: "contract",
		Blueprints: []domain.Blueprint{{
			Name: "main",
			In:   schema.ExprOf(schema.MustParse("{text: string}")),
			Operators: []domain.Operator{
				{ID: "upper", Definition: "uppercase", Properties: map[string]any{"count": 3}},
			},
			Connections: []domain.Connection{{From: "in.text", To: "upper.in.value"}},
		}},
	}
}

// RunDocumentStoreContract runs a suite of tests to verify that a DocumentStore
// implementation adheres to the defined interface contract.
func RunDocumentStoreContract(t *testing.T, store DocumentStore) {
	ctx := context.Background()
	docID := "contract-test-doc-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		doc := contractDocument(docID)

		err := store.Save(ctx, doc)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, docID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "contract", loaded.Name)
		require.Len(t, loaded.Blueprints, 1)
		bp := loaded.Blueprints[0]
		assert.Equal(t, "{text: string}", bp.In.String())
		assert.Equal(t, doc.Blueprints[0].Connections, bp.Connections)
		// Serialized stores may turn numbers into float64.
		assert.NotNil(t, bp.Operators[0].Properties["count"])
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, docID)
		require.NoError(t, err)
		loaded.Name = "mutated"

		again, err := store.Load(ctx, docID)
		require.NoError(t, err)
		assert.Equal(t, "contract", again.Name)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+docID)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, contractDocument(docID)))

		err := store.Delete(ctx, docID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, docID)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound, "Load after Delete should return ErrDocumentNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := docID + "-1"
		id2 := docID + "-2"
		_ = store.Save(ctx, contractDocument(id1))
		_ = store.Save(ctx, contractDocument(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RunLibraryLoaderContract verifies that loader returns exactly the
// definitions named in want.
func RunLibraryLoaderContract(t *testing.T, loader LibraryLoader, want ...string) {
	t.Helper()

	t.Run("Definitions", func(t *testing.T) {
		defs, err := loader.Definitions(context.Background())
		require.NoError(t, err)

		names := make([]string, 0, len(defs))
		for _, def := range defs {
			assert.NotEmpty(t, def.Name, "every definition needs a name")
			names = append(names, def.Name)
		}
		assert.ElementsMatch(t, want, names)
	})
}
