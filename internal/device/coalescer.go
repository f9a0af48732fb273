package device

import (
	"sync"
	"time"
)

const defaultDebounce = 300 * time.Millisecond

type pendingValue[T any] struct {
	value T
	seq   uint64
	timer *time.Timer
}

// Coalescer delays a keyed action until its key has been quiet for the delay,
// then fires once with the latest value. Keys are independent.
type Coalescer[T any] struct {
	mu      sync.Mutex
	delay   time.Duration
	fire    func(key string, value T)
	pending map[string]*pendingValue[T]
	display map[string]T
	stopped bool
}

// NewCoalescer returns a coalescer calling fire on its own goroutine.
func NewCoalescer[T any](delay time.Duration, fire func(key string, value T)) *Coalescer[T] {
	if delay <= 0 {
		delay = defaultDebounce
	}
	return &Coalescer[T]{
		delay:   delay,
		fire:    fire,
		pending: make(map[string]*pendingValue[T]),
		display: make(map[string]T),
	}
}

// Submit records value as the display value for key and (re)arms its timer.
// Superseded values are never fired.
func (c *Coalescer[T]) Submit(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.display[key] = value

	p, ok := c.pending[key]
	if !ok {
		p = &pendingValue[T]{}
		c.pending[key] = p
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.seq++
	p.value = value
	seq := p.seq
	p.timer = time.AfterFunc(c.delay, func() { c.flush(key, seq) })
}

func (c *Coalescer[T]) flush(key string, seq uint64) {
	c.mu.Lock()
	p, ok := c.pending[key]
	if !ok || p.seq != seq || c.stopped {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	value := p.value
	c.mu.Unlock()

	c.fire(key, value)
}

// Display returns the last submitted value for key.
func (c *Coalescer[T]) Display(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.display[key]
	return v, ok
}

// Pending reports whether key has an unfired value.
func (c *Coalescer[T]) Pending(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[key]
	return ok
}

// Stop cancels every pending timer and drops unfired values.
func (c *Coalescer[T]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	for key, p := range c.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(c.pending, key)
	}
}
