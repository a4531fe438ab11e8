package session_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/loom/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/loom/pkg/adapters/redis"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s SlowStore) Load(ctx context.Context, id string) (*domain.Document, error) {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	return s.Store.Load(ctx, id)
}

func (s SlowStore) Save(ctx context.Context, doc *domain.Document) error {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	return s.Store.Save(ctx, doc)
}

// counter stores a running count in the document name.
func counter(doc *domain.Document) (*domain.Document, error) {
	n, _ := strconv.Atoi(doc.Name)
	return &domain.Document{ID: doc.ID, Name: strconv.Itoa(n + 1)}, nil
}

func TestManager_UpdateSerializes(t *testing.T) {
	store := SlowStore{memory.NewStore()}
	manager := session.NewManager(store)
	ctx := context.Background()
	require.NoError(t, manager.Save(ctx, &domain.Document{ID: "doc-1", Name: "0"}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := manager.Update(ctx, "doc-1", counter)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	doc, err := manager.Load(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "10", doc.Name, "lost updates mean the lock did not hold")
}

func TestManager_UpdateReturnsVersions(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, manager.Save(ctx, &domain.Document{ID: "doc-1", Name: "4"}))

	before, after, err := manager.Update(ctx, "doc-1", counter)
	require.NoError(t, err)
	assert.Equal(t, "4", before.Name)
	assert.Equal(t, "5", after.Name)
}

func TestManager_UpdateFailureKeepsStored(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()
	require.NoError(t, manager.Save(ctx, &domain.Document{ID: "doc-1", Name: "kept"}))

	boom := errors.New("boom")
	_, _, err := manager.Update(ctx, "doc-1", func(*domain.Document) (*domain.Document, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	doc, err := manager.Load(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "kept", doc.Name)

	_, _, err = manager.Update(ctx, "missing", counter)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestManager_SaveRequiresID(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	assert.Error(t, manager.Save(context.Background(), &domain.Document{}))
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	store := redisAdapter.New(mr.Addr(), "", 0)
	defer store.Close()

	locker := redisAdapter.NewLocker(store.Client(), "loom:")
	manager := session.NewManager(store, session.WithLocker(locker), session.WithLockTTL(time.Second))
	ctx := context.Background()
	require.NoError(t, manager.Save(ctx, &domain.Document{ID: "doc-1", Name: "0"}))

	// A foreign replica holds the lock.
	unlock, err := locker.Lock(ctx, "doc-1", time.Minute)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	_, _, err = manager.Update(short, "doc-1", counter)
	assert.ErrorIs(t, err, domain.ErrLockAcquire)

	require.NoError(t, unlock(ctx))
	_, after, err := manager.Update(ctx, "doc-1", counter)
	require.NoError(t, err)
	assert.Equal(t, "1", after.Name)
}
