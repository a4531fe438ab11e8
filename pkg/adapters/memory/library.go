package memory

import (
	"context"
	"sync"

	"github.com/aretw0/loom/pkg/domain"
)

// Library implements ports.LibraryLoader and ports.Watchable over a slice of
// definitions held in memory. Set replaces the content and signals watchers,
// which makes it handy for tests of reload logic.
type Library struct {
	mu       sync.RWMutex
	defs     []domain.Definition
	watchers []chan struct{}
}

// NewLibrary creates a library holding defs.
func NewLibrary(defs ...domain.Definition) *Library {
	return &Library{defs: defs}
}

// Definitions returns a copy of the current definitions.
func (l *Library) Definitions(ctx context.Context) ([]domain.Definition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.Definition(nil), l.defs...), nil
}

// Set replaces the definitions and notifies every watcher.
func (l *Library) Set(defs ...domain.Definition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.defs = defs

	for _, ch := range l.watchers {
		select {
		case ch <- struct{}{}:
		default:
			// A reload is already pending.
		}
	}
}

// Watch returns a channel signaled after every Set. It is closed when ctx ends.
func (l *Library) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	l.mu.Lock()
	l.watchers = append(l.watchers, ch)
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, w := range l.watchers {
			if w == ch {
				l.watchers = append(l.watchers[:i], l.watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}
