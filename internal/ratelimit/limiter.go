package ratelimit

import (
	"sync"
	"time"
)

// Stats mirrors the teacher's adaptive limiter's observability surface,
// trimmed to the two counters §4.6 calls out explicitly.
type Stats struct {
	TotalConsumed  int64
	TotalWaitedMS  int64
}

// Limiter is a token bucket driven by a Controller. Contracts (§4.6, §8
// invariant 5, scenario S6):
//   - max tokens = max(0.2*rate, 10.0)
//   - on a rate change: refill using the OLD rate over the elapsed interval
//     first, THEN recompute max tokens and clamp current tokens, and only
//     THEN install the new rate — this ordering is what prevents an
//     over-fill "refund" when rate ramps up.
//   - rate is refreshed at most every refreshInterval (default 100ms).
//   - rate == 0 bypasses limiting entirely: Consume always returns 0 and
//     never touches the stats.
type Limiter struct {
	mu              sync.Mutex
	ctrl            *Controller
	rate            float64
	maxTokens       float64
	tokens          float64
	lastRefill      time.Time
	lastRateCheck   time.Time
	refreshInterval time.Duration
	stats           Stats
}

// NewLimiter builds a limiter against ctrl, refreshing its target rate at
// most every refreshInterval (0 means the §4.6 default of 100ms).
func NewLimiter(ctrl *Controller, refreshInterval time.Duration) *Limiter {
	if refreshInterval <= 0 {
		refreshInterval = 100 * time.Millisecond
	}
	now := time.Now()
	rate := ctrl.Rate()
	l := &Limiter{
		ctrl:            ctrl,
		rate:            rate,
		maxTokens:       maxTokensFor(rate),
		lastRefill:      now,
		lastRateCheck:   now,
		refreshInterval: refreshInterval,
	}
	l.tokens = l.maxTokens
	return l
}

func maxTokensFor(rate float64) float64 {
	m := 0.2 * rate
	if m < 10.0 {
		m = 10.0
	}
	return m
}

// maybeRefreshRate re-samples the controller's rate at most once per
// refreshInterval, refilling at the old rate before installing the new one.
func (l *Limiter) maybeRefreshRate(now time.Time) {
	if now.Sub(l.lastRateCheck) < l.refreshInterval {
		return
	}
	l.lastRateCheck = now
	newRate := l.ctrl.Rate()
	if newRate == l.rate {
		return
	}
	l.refill(now)
	l.maxTokens = maxTokensFor(newRate)
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.rate = newRate
}

func (l *Limiter) refill(now time.Time) {
	if l.rate <= 0 {
		l.lastRefill = now
		return
	}
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.rate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.lastRefill = now
}

// Consume requests n tokens and returns the wait duration the caller must
// observe before proceeding (0 means "go now"). A rate of 0 bypasses
// limiting entirely and never updates the stats (§8 boundary behavior).
func (l *Limiter) Consume(n float64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.maybeRefreshRate(now)

	if l.rate <= 0 {
		return 0
	}

	l.refill(now)
	l.tokens -= n
	l.stats.TotalConsumed++

	if l.tokens >= 0 {
		return 0
	}

	waitSec := -l.tokens / l.rate
	wait := time.Duration(waitSec * float64(time.Second))
	l.stats.TotalWaitedMS += wait.Milliseconds()
	return wait
}

// Stats returns a snapshot of the limiter's counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
