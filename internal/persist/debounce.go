package persist

import (
	"sync"
	"time"
)

// Debouncer delays a per-key value until the key has been quiet for the
// delay, then hands the latest value to fire. Keys are independent: each has
// its own timer.
type Debouncer[K comparable, V any] struct {
	delay time.Duration
	fire  func(K, V)

	mu      sync.Mutex
	gen     uint64
	pending map[K]*debounced[V]
}

type debounced[V any] struct {
	value V
	gen   uint64
	timer *time.Timer
}

// NewDebouncer creates a Debouncer calling fire from a timer goroutine.
func NewDebouncer[K comparable, V any](delay time.Duration, fire func(K, V)) *Debouncer[K, V] {
	return &Debouncer[K, V]{
		delay:   delay,
		fire:    fire,
		pending: make(map[K]*debounced[V]),
	}
}

// Trigger stores v as the latest value for key and restarts its timer.
func (d *Debouncer[K, V]) Trigger(key K, v V) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	p, ok := d.pending[key]
	if ok {
		p.timer.Stop()
	} else {
		p = &debounced[V]{}
		d.pending[key] = p
	}
	p.value = v
	p.gen = gen
	p.timer = time.AfterFunc(d.delay, func() { d.expire(key, gen) })
}

func (d *Debouncer[K, V]) expire(key K, gen uint64) {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || p.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	d.fire(key, p.value)
}

// Drain stops key's timer and returns its pending value without calling fire.
func (d *Debouncer[K, V]) Drain(key K) (V, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pending[key]
	if !ok {
		var zero V
		return zero, false
	}
	p.timer.Stop()
	delete(d.pending, key)
	return p.value, true
}

// DrainAll stops every timer and returns all pending values.
func (d *Debouncer[K, V]) DrainAll() map[K]V {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[K]V, len(d.pending))
	for k, p := range d.pending {
		p.timer.Stop()
		out[k] = p.value
	}
	clear(d.pending)
	return out
}

// Cancel discards key's pending value.
func (d *Debouncer[K, V]) Cancel(key K) bool {
	_, ok := d.Drain(key)
	return ok
}

// Pending reports whether key has a value waiting.
func (d *Debouncer[K, V]) Pending(key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Stop discards every pending value.
func (d *Debouncer[K, V]) Stop() {
	d.DrainAll()
}
