package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loom/pkg/adapters/file"
	"github.com/aretw0/loom/pkg/document"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure Store implements DocumentStore
var _ ports.DocumentStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	t.Run("YAML", func(t *testing.T) {
		ports.RunDocumentStoreContract(t, file.New(t.TempDir()))
	})
	t.Run("JSON", func(t *testing.T) {
		store := file.New(t.TempDir())
		store.Format = document.FormatJSON
		ports.RunDocumentStoreContract(t, store)
	})
}

func TestFileStore_ReadsHandWrittenFiles(t *testing.T) {
	dir := t.TempDir()
	content := `
name: hand written
blueprints:
  - name: main
    in: "{b: string, a: number}"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flow.yml"), []byte(content), 0644))
	// Leftovers of an interrupted save are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp-flow-123.yaml"), []byte("x"), 0644))

	store := file.New(dir)
	ctx := context.Background()

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"flow"}, ids)

	doc, err := store.Load(ctx, "flow")
	require.NoError(t, err)
	assert.Equal(t, "flow", doc.ID, "the file name stands in for a missing id")
	assert.Equal(t, "{b: string, a: number}", doc.Blueprints[0].In.String())

	require.NoError(t, store.Delete(ctx, "flow"))
	_, err = store.Load(ctx, "flow")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestLibrary(t *testing.T) {
	dir := t.TempDir()
	single := `
name: uppercase
in: "{value: string}"
out: "{value: string}"
`
	list := `[
  {"name": "split", "in": "{text: string, sep: string}", "out": "{parts: [string]}"},
  {"name": "join", "in": "{parts: [string]}", "out": "{text: string}"}
]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "upper.yaml"), []byte(single), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "text.json"), []byte(list), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# ignored"), 0644))

	lib := file.NewLibrary(dir)
	ports.RunLibraryLoaderContract(t, lib, "uppercase", "split", "join")

	defs, err := lib.Definitions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "{text: string, sep: string}", defs[0].In.String(), "key order is preserved")
}

func TestLibrary_RejectsUnnamed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("in: string\n"), 0644))

	_, err := file.NewLibrary(dir).Definitions(context.Background())
	assert.ErrorContains(t, err, "definition name is required")
}
