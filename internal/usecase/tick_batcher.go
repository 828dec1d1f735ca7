package usecase

import (
	"sync"
	"time"

	"MarketHub/internal/domain/models"
)

// tickBatcher coalesces bursts of updates. The first enqueue arms a
// single debounce timer; everything arriving inside the window replaces
// any pending tick with the same key (latest wins), then the whole batch
// flushes at once. The timer is never re-armed by later enqueues, so a
// steady stream still flushes once per window.
type tickBatcher struct {
	mu      sync.Mutex
	pending map[string]*models.MarketDataTick
	order   []string
	timer   *time.Timer
	window  time.Duration
	flushFn func([]*models.MarketDataTick)
	stopped bool
}

func newTickBatcher(window time.Duration, flushFn func([]*models.MarketDataTick)) *tickBatcher {
	if window <= 0 {
		window = 100 * time.Millisecond
	}
	return &tickBatcher{
		pending: make(map[string]*models.MarketDataTick),
		window:  window,
		flushFn: flushFn,
	}
}

func (b *tickBatcher) enqueue(t *models.MarketDataTick) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	if _, exists := b.pending[t.Key]; !exists {
		b.order = append(b.order, t.Key)
	}
	b.pending[t.Key] = t
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flush)
	}
}

func (b *tickBatcher) flush() {
	b.mu.Lock()
	batch := b.drainLocked()
	b.mu.Unlock()

	if len(batch) > 0 {
		b.flushFn(batch)
	}
}

// stop flushes whatever is pending and rejects further enqueues.
func (b *tickBatcher) stop() {
	b.mu.Lock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
	batch := b.drainLocked()
	b.mu.Unlock()

	if len(batch) > 0 {
		b.flushFn(batch)
	}
}

func (b *tickBatcher) drainLocked() []*models.MarketDataTick {
	if len(b.pending) == 0 {
		b.timer = nil
		return nil
	}
	batch := make([]*models.MarketDataTick, 0, len(b.pending))
	for _, key := range b.order {
		if t, ok := b.pending[key]; ok {
			batch = append(batch, t)
		}
	}
	b.pending = make(map[string]*models.MarketDataTick)
	b.order = b.order[:0]
	b.timer = nil
	return batch
}
