// internal/ranking/ml/health.go
package ml

import (
	"sync"
	"time"
)

type outcome struct {
	failed  bool
	latency time.Duration
}

// healthWindow tracks the last N scoring calls in a ring. The ranker is
// healthy while the windowed error rate stays under the threshold and
// the windowed average latency stays under budget. An empty window is
// healthy: a freshly loaded model gets the benefit of the doubt.
type healthWindow struct {
	mu            sync.Mutex
	ring          []outcome
	next          int
	filled        int
	maxErrorRate  float64
	latencyBudget time.Duration
}

func newHealthWindow(size int, maxErrorRate float64, latencyBudget time.Duration) *healthWindow {
	if size <= 0 {
		size = 1
	}
	return &healthWindow{
		ring:          make([]outcome, size),
		maxErrorRate:  maxErrorRate,
		latencyBudget: latencyBudget,
	}
}

func (h *healthWindow) record(failed bool, latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring[h.next] = outcome{failed: failed, latency: latency}
	h.next = (h.next + 1) % len(h.ring)
	if h.filled < len(h.ring) {
		h.filled++
	}
}

func (h *healthWindow) healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.filled == 0 {
		return true
	}

	var failures int
	var total time.Duration
	for i := 0; i < h.filled; i++ {
		if h.ring[i].failed {
			failures++
		}
		total += h.ring[i].latency
	}

	errorRate := float64(failures) / float64(h.filled)
	avgLatency := total / time.Duration(h.filled)

	return errorRate < h.maxErrorRate && avgLatency < h.latencyBudget
}

// reset clears the window, e.g. after a model swap.
func (h *healthWindow) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next = 0
	h.filled = 0
}
