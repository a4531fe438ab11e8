package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactionMiddleware(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw, err := middleware.NewRedactionMiddleware([]string{"(?i)token", "^password$"})
	require.NoError(t, err)
	store := mw(underlyingStore)
	ctx := context.Background()

	doc := &domain.Document{
		ID: "doc-1",
		Blueprints: []domain.Blueprint{{
			Name: "main",
			Operators: []domain.Operator{
				{ID: "call", Properties: map[string]any{
					"url":      "https://api.example",
					"apiToken": "abc",
					"auth": map[string]any{
						"password": "hunter2",
						"user":     "bob",
					},
				}},
				{ID: "plain"},
			},
		}},
	}

	require.NoError(t, store.Save(ctx, doc))

	stored, err := underlyingStore.Load(ctx, "doc-1")
	require.NoError(t, err)
	props := stored.Blueprints[0].Operators[0].Properties
	assert.Equal(t, "https://api.example", props["url"])
	assert.Equal(t, middleware.Mask, props["apiToken"])
	auth := props["auth"].(map[string]any)
	assert.Equal(t, middleware.Mask, auth["password"])
	assert.Equal(t, "bob", auth["user"])
	assert.Nil(t, stored.Blueprints[0].Operators[1].Properties)

	// The caller's document is untouched.
	assert.Equal(t, "abc", doc.Blueprints[0].Operators[0].Properties["apiToken"])
	assert.Equal(t, "hunter2", doc.Blueprints[0].Operators[0].Properties["auth"].(map[string]any)["password"])
}

func TestRedactionMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewRedactionMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	underlyingStore := memory.NewStore()
	redact, err := middleware.NewRedactionMiddleware([]string{"secret"})
	require.NoError(t, err)
	encrypt, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(underlyingStore, redact, encrypt)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, secretDocument("doc-1", "x")))

	loaded, err := store.Load(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "x", loaded.Blueprints[0].Operators[0].Properties["url"])

	envelope, err := underlyingStore.Load(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "__encrypted__", envelope.Name)
}
