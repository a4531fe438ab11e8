package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a document.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates document access, ensuring edits to one document
// never interleave. It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.DocumentStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker ports.DistributedLocker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Manager over the given document store.
func NewManager(store ports.DocumentStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locks:  make(map[string]*lockEntry),
		ttl:    DefaultLockTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu, and call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Load retrieves a stored document.
func (m *Manager) Load(ctx context.Context, id string) (*domain.Document, error) {
	var doc *domain.Document
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		doc, err = m.store.Load(ctx, id)
		return err
	})
	return doc, err
}

// Save persists doc under its ID.
func (m *Manager) Save(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("cannot save a document without an id")
	}
	return m.WithLock(ctx, doc.ID, func(ctx context.Context) error {
		return m.store.Save(ctx, doc)
	})
}

// Delete removes the document from the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying document store.
func (m *Manager) Store() ports.DocumentStore {
	return m.store
}

// Update loads the document, applies fn and saves the result, all under
// the document's lock. Nothing is saved when fn fails. The previous and
// stored versions are returned.
func (m *Manager) Update(ctx context.Context, id string, fn func(*domain.Document) (*domain.Document, error)) (before, after *domain.Document, err error) {
	err = m.WithLock(ctx, id, func(ctx context.Context) error {
		before, err = m.store.Load(ctx, id)
		if err != nil {
			return err
		}
		after, err = fn(before)
		if err != nil {
			return err
		}
		after.ID = id
		return m.store.Save(ctx, after)
	})
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// WithLock executes fn while holding the lock for the document.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.ttl)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"document_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
