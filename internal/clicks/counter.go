// Package clicks provides non-blocking, batched click accounting.
//
// Recording a click never blocks the redirect path: clicks go into a
// buffered channel consumed by a single goroutine that accumulates counts
// per (namespace, code) and flushes them to the store periodically or when
// enough have piled up. The store applies each batch with its atomic
// increment, so concurrent clicks on the same code never lose updates.
package clicks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmdto/linkshort/internal/models"
)

// Flusher persists accumulated click counts.
type Flusher interface {
	FlushClicks(ctx context.Context, counts map[models.ClickKey]int64) error
}

// Config holds configuration for the Counter.
type Config struct {
	FlushInterval time.Duration // how often to flush accumulated counts
	BatchSize     int           // flush early once this many clicks accumulate
	ChannelBuffer int           // size of the click channel buffer
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		FlushInterval: 10 * time.Second,
		BatchSize:     100,
		ChannelBuffer: 10000,
	}
}

// Counter accumulates clicks and flushes them in batches.
type Counter struct {
	flusher Flusher
	cfg     Config

	clickChan chan models.ClickKey
	counts    map[models.ClickKey]int64
	countsMu  sync.Mutex
	pending   int64

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
	stopped  atomic.Bool
}

// NewCounter creates a Counter and starts its flush loop.
func NewCounter(cfg Config, flusher Flusher) *Counter {
	if cfg.ChannelBuffer <= 0 {
		cfg.ChannelBuffer = DefaultConfig().ChannelBuffer
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}

	c := &Counter{
		flusher:   flusher,
		cfg:       cfg,
		clickChan: make(chan models.ClickKey, cfg.ChannelBuffer),
		counts:    make(map[models.ClickKey]int64),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}

	go c.run()
	return c
}

// Record registers one click for a code in the given namespace. Never
// blocks: if the buffer is full the click is dropped, which is acceptable
// for best-effort accounting.
func (c *Counter) Record(kind models.TargetKind, code string) {
	if c.stopped.Load() {
		return
	}

	select {
	case c.clickChan <- models.ClickKey{Kind: kind, Code: code}:
	default:
	}
}

// Stop drains the channel, flushes remaining counts, and stops the loop.
func (c *Counter) Stop() {
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		close(c.stopChan)
		<-c.doneChan
	})
}

// Pending returns a snapshot of unflushed counts.
func (c *Counter) Pending() map[models.ClickKey]int64 {
	c.countsMu.Lock()
	defer c.countsMu.Unlock()

	result := make(map[models.ClickKey]int64, len(c.counts))
	for k, v := range c.counts {
		result[k] = v
	}
	return result
}

func (c *Counter) run() {
	defer close(c.doneChan)

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case key := <-c.clickChan:
			c.countsMu.Lock()
			c.counts[key]++
			c.pending++
			shouldFlush := int(c.pending) >= c.cfg.BatchSize
			c.countsMu.Unlock()

			if shouldFlush {
				c.flush()
			}

		case <-ticker.C:
			c.flush()

		case <-c.stopChan:
			c.drain()
			c.flush()
			return
		}
	}
}

func (c *Counter) drain() {
	for {
		select {
		case key := <-c.clickChan:
			c.countsMu.Lock()
			c.counts[key]++
			c.pending++
			c.countsMu.Unlock()
		default:
			return
		}
	}
}

// flush hands accumulated counts to the flusher. On failure the counts are
// merged back so the next tick retries them; clicks survive transient store
// outages.
func (c *Counter) flush() {
	c.countsMu.Lock()
	if len(c.counts) == 0 {
		c.countsMu.Unlock()
		return
	}
	toFlush := c.counts
	c.counts = make(map[models.ClickKey]int64)
	c.pending = 0
	c.countsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.flusher.FlushClicks(ctx, toFlush); err != nil {
		c.countsMu.Lock()
		for k, v := range toFlush {
			c.counts[k] += v
			c.pending += v
		}
		c.countsMu.Unlock()
	}
}
