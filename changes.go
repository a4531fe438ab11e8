package loom

import (
	"log/slog"
	"sync"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/observability"
)

// changeBuffer is the number of changes a subscriber may fall behind
// before new ones are dropped for it.
const changeBuffer = 16

// changeHub fans changes out to subscribers. Slow subscribers lose
// changes rather than block publishers.
type changeHub struct {
	mu          sync.RWMutex
	subscribers map[chan domain.Change]struct{}
	closed      bool
	logger      *slog.Logger
	metrics     *observability.Metrics
}

func newChangeHub(logger *slog.Logger, metrics *observability.Metrics) *changeHub {
	return &changeHub{
		subscribers: make(map[chan domain.Change]struct{}),
		logger:      logger,
		metrics:     metrics,
	}
}

// Subscribe returns a channel of changes and a function that stops them.
func (h *changeHub) Subscribe() (<-chan domain.Change, func()) {
	ch := make(chan domain.Change, changeBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subscribers[ch] = struct{}{}
	h.metrics.SubscriberAdded()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subscribers[ch]; ok {
				delete(h.subscribers, ch)
				close(ch)
				h.metrics.SubscriberRemoved()
			}
		})
	}
}

func (h *changeHub) Publish(c domain.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- c:
		default:
			h.logger.Warn("Change subscriber buffer full, dropping change", "document_id", c.DocumentID)
			h.metrics.ChangeDropped()
		}
	}
}

// Close ends every subscription.
func (h *changeHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, ch)
		h.metrics.SubscriberRemoved()
	}
}
