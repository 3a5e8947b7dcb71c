package cache

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultStartThreshold gates the background cleaner: it starts only after
// this many Put calls since it last stopped, and stops again once the
// cache shrinks below half of it. The multiplier is a tunable inherited
// default, not a contract.
func DefaultStartThreshold() int { return runtime.GOMAXPROCS(0) * 10 }

// RemovalFunc observes entries evicted by a sweep.
type RemovalFunc[K comparable, V any] func(key K, value V)

// CleanerCache is a Cache with a self-gating sweeper goroutine. The
// sweeper is not a fixed timer: a cache that sees little traffic never
// pays for a background goroutine, but sustained Put load turns it on
// before the map can grow without bound.
type CleanerCache[K comparable, V any] struct {
	*Cache[K, V]

	name           string
	logger         *slog.Logger
	timeout        time.Duration
	startThreshold int

	puts atomic.Int64

	// mu serializes sweeps with the gate start/stop decision, so a size
	// inspection during a toggle is consistent with the removal pass.
	mu        sync.Mutex
	running   bool
	stop      chan struct{}
	onRemoved RemovalFunc[K, V]
}

// NewCleanerCache builds a cache whose sweeper, once gated on, waits
// timeout before the first sweep and then sweeps every
// max(timeoutSeconds, 1) * 1.5 seconds.
func NewCleanerCache[K comparable, V any](name string, timeout time.Duration, logger *slog.Logger) *CleanerCache[K, V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanerCache[K, V]{
		Cache:          New[K, V](),
		name:           name,
		logger:         logger,
		timeout:        timeout,
		startThreshold: DefaultStartThreshold(),
	}
}

// SetStartThreshold overrides the gate threshold. Values below 1 are
// ignored.
func (c *CleanerCache[K, V]) SetStartThreshold(n int) {
	if n >= 1 {
		c.mu.Lock()
		c.startThreshold = n
		c.mu.Unlock()
	}
}

// SetOnRemoved installs the sweep removal callback. Callback panics are
// recovered and logged; a faulty callback must not stop future evictions.
func (c *CleanerCache[K, V]) SetOnRemoved(fn RemovalFunc[K, V]) {
	c.mu.Lock()
	c.onRemoved = fn
	c.mu.Unlock()
}

// Put stores the entry and re-evaluates the sweeper gate.
func (c *CleanerCache[K, V]) Put(key K, value V, ttl time.Duration) {
	c.Cache.Put(key, value, ttl)
	c.puts.Add(1)
	c.toggleGate()
}

// Running reports whether the sweeper goroutine is active.
func (c *CleanerCache[K, V]) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Close stops the sweeper and clears the callback. Safe to call more than
// once.
func (c *CleanerCache[K, V]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.onRemoved = nil
	return nil
}

func (c *CleanerCache[K, V]) toggleGate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case !c.running && c.puts.Load() > int64(c.startThreshold):
		c.logger.Info("cache cleaner starting", "cache", c.name, "size", c.Len())
		c.startLocked()
		c.puts.Store(0)
	case c.running && c.Len()*2 < c.startThreshold:
		c.logger.Info("cache cleaner stopping", "cache", c.name, "size", c.Len())
		c.stopLocked()
	}
}

func (c *CleanerCache[K, V]) startLocked() {
	if c.running {
		return
	}
	c.running = true
	c.stop = make(chan struct{})
	go c.sweepLoop(c.stop)
}

func (c *CleanerCache[K, V]) stopLocked() {
	if !c.running {
		return
	}
	c.running = false
	close(c.stop)
	c.stop = nil
	c.puts.Store(0)
}

func (c *CleanerCache[K, V]) sweepLoop(stop chan struct{}) {
	initial := c.timeout
	if initial < 0 {
		initial = 0
	}
	seconds := c.timeout.Seconds()
	if seconds < 1 {
		seconds = 1
	}
	period := time.Duration(seconds * 1.5 * float64(time.Second))

	timer := time.NewTimer(initial)
	defer timer.Stop()
	select {
	case <-stop:
		return
	case <-timer.C:
	}
	c.sweep()

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *CleanerCache[K, V]) sweep() {
	c.mu.Lock()
	fn := c.onRemoved
	evicted := c.removeExpired()
	c.mu.Unlock()
	if fn == nil {
		return
	}
	for _, ev := range evicted {
		c.invoke(fn, ev.key, ev.value)
	}
}

func (c *CleanerCache[K, V]) invoke(fn RemovalFunc[K, V], key K, value V) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cache removal callback panicked", "cache", c.name, "panic", r)
		}
	}()
	fn(key, value)
}
