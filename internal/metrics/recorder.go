package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/jackzampolin/claimdoc/internal/providers"
)

// DefaultWindow is how many recent model calls are kept for latency stats.
const DefaultWindow = 1000

// Collector accumulates counters for extraction runs and model calls.
// It is safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	started time.Time

	active          int
	byStatus        map[string]int
	errorsByType    map[string]int
	pagesProcessed  int
	cacheHits       int
	cacheMisses     int
	durations       []float64
	totalDurationMs float64

	window int
	calls  []Metric
	next   int
	total  int
}

// NewCollector creates a collector keeping the last window model calls.
// A window <= 0 uses DefaultWindow.
func NewCollector(window int) *Collector {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Collector{
		started:      time.Now(),
		byStatus:     make(map[string]int),
		errorsByType: make(map[string]int),
		window:       window,
	}
}

// ExtractionStarted increments the active runs gauge.
func (c *Collector) ExtractionStarted() {
	c.mu.Lock()
	c.active++
	c.mu.Unlock()
}

// ExtractionFinished decrements the gauge and records the outcome.
func (c *Collector) ExtractionFinished(status string, d time.Duration, pages int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active > 0 {
		c.active--
	}
	c.byStatus[status]++
	c.pagesProcessed += pages
	ms := float64(d) / float64(time.Millisecond)
	c.totalDurationMs += ms
	if len(c.durations) < c.window {
		c.durations = append(c.durations, ms)
	} else {
		copy(c.durations, c.durations[1:])
		c.durations[len(c.durations)-1] = ms
	}
}

// Error counts an error of the given type.
func (c *Collector) Error(errorType string) {
	c.mu.Lock()
	c.errorsByType[errorType]++
	c.mu.Unlock()
}

// CacheHit counts a result served from cache.
func (c *Collector) CacheHit() {
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

// CacheMiss counts a cache lookup that fell through to a run.
func (c *Collector) CacheMiss() {
	c.mu.Lock()
	c.cacheMisses++
	c.mu.Unlock()
}

// Record stores a model call sample.
func (c *Collector) Record(m Metric) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	if !m.Success && m.ErrorType != "" {
		c.errorsByType["model_"+m.ErrorType]++
	}
	if len(c.calls) < c.window {
		c.calls = append(c.calls, m)
		return
	}
	c.calls[c.next] = m
	c.next = (c.next + 1) % c.window
}

// ObserveCall records a chat result. Its signature matches
// providers.Vision.Observer.
func (c *Collector) ObserveCall(ctx context.Context, result *providers.ChatResult) {
	if c == nil || result == nil {
		return
	}
	c.Record(FromChatResult(ctx, result))
}

// Calls returns the retained model call samples, oldest first.
func (c *Collector) Calls() []Metric {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Metric, 0, len(c.calls))
	out = append(out, c.calls[c.next:]...)
	out = append(out, c.calls[:c.next]...)
	return out
}
