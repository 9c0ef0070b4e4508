package httpapi

import (
	"math/rand"
	"sync"
	"time"

	"replay-proxy/internal/infrastructure/config"
)

// ResponseDelay is the artificial latency applied to replayed responses.
// It can be changed at runtime through /settings.
type ResponseDelay struct {
	mu       sync.RWMutex
	fixedMs  int
	minMs    int
	maxMs    int
	sleepFor func(time.Duration)
}

func NewResponseDelay(cfg config.Config) *ResponseDelay {
	d := &ResponseDelay{sleepFor: time.Sleep}
	d.Set(cfg.ResponseDelayMs, cfg.ResponseDelayMinMs, cfg.ResponseDelayMaxMs)
	return d
}

// Set replaces the delay. A range with a positive upper bound wins over the fixed value.
func (d *ResponseDelay) Set(fixedMs, minMs, maxMs int) {
	if maxMs < minMs {
		minMs, maxMs = maxMs, minMs
	}
	d.mu.Lock()
	d.fixedMs, d.minMs, d.maxMs = fixedMs, minMs, maxMs
	d.mu.Unlock()
}

func (d *ResponseDelay) Get() (fixedMs, minMs, maxMs int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fixedMs, d.minMs, d.maxMs
}

// Duration picks the delay for one response.
func (d *ResponseDelay) Duration() time.Duration {
	fixed, lo, hi := d.Get()
	if hi > 0 && hi >= lo {
		return time.Duration(lo+rand.Intn(hi-lo+1)) * time.Millisecond
	}
	if fixed > 0 {
		return time.Duration(fixed) * time.Millisecond
	}
	return 0
}

func (d *ResponseDelay) Sleep() {
	if dur := d.Duration(); dur > 0 {
		d.sleepFor(dur)
	}
}
