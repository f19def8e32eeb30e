package review

import (
	"sync"
	"time"
)

// Throttle forwards at most one value per interval. The first Offer opens a
// window; when it closes the latest offered value is delivered.
type Throttle[T any] struct {
	interval time.Duration
	fn       func(T)

	mu      sync.Mutex
	pending T
	has     bool
	timer   *time.Timer
	stopped bool
}

// NewThrottle returns a trailing-edge throttle calling fn.
func NewThrottle[T any](interval time.Duration, fn func(T)) *Throttle[T] {
	return &Throttle[T]{interval: interval, fn: fn}
}

// Offer records v as the latest value.
func (t *Throttle[T]) Offer(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.pending = v
	t.has = true
	if t.timer == nil {
		t.timer = time.AfterFunc(t.interval, t.flush)
	}
}

func (t *Throttle[T]) flush() {
	t.mu.Lock()
	if t.stopped || !t.has {
		t.timer = nil
		t.mu.Unlock()
		return
	}
	v := t.pending
	t.has = false
	t.timer = nil
	t.mu.Unlock()
	t.fn(v)
}

// Stop drops any pending value. Later offers are ignored.
func (t *Throttle[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.has = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
