package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/loom/pkg/adapters/redis"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestRedisStore_Contract(t *testing.T) {
	mr := miniredis.RunT(t)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})

	store := redis.NewFromClient(client)
	ports.RunDocumentStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr := miniredis.RunT(t)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	doc := &domain.Document{ID: "doc-ttl", Blueprints: []domain.Blueprint{{Name: "main"}}}

	// 1. Save
	err := store.Save(ctx, doc)
	assert.NoError(t, err)

	// 2. Verify List (immediately)
	ids, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, ids, "doc-ttl")

	// 3. Fast Forward time in miniredis (for Key Expiration)
	mr.FastForward(2 * time.Second)

	// 4. Verify Load (should fail)
	_, err = store.Load(ctx, "doc-ttl")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	// 5. The index is pruned by wall clock, so wait past the score.
	time.Sleep(1200 * time.Millisecond)

	ids, err = store.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr := miniredis.RunT(t)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	err := store.Save(ctx, &domain.Document{ID: "my-doc"})
	assert.NoError(t, err)

	assert.True(t, mr.Exists("custom:app:my-doc"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, list, "my-doc")
}
