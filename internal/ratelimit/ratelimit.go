package ratelimit

import (
	"sync"
	"time"
)

// Token bucket refilled at rate tokens per second up to burst
type Limiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time
	mu         sync.Mutex
}

func NewLimiter(rate float64, burst int) *Limiter {
	return newLimiterAt(rate, burst, time.Now)
}

func newLimiterAt(rate float64, burst int, now func() time.Time) *Limiter {
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: now(),
		now:        now,
	}
}

func (l *Limiter) Allow() bool {
	return l.AllowN(1)
}

func (l *Limiter) AllowN(n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.lastUpdate = now

	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}

	if l.tokens >= float64(n) {
		l.tokens -= float64(n)
		return true
	}

	return false
}

type Verdict int

const (
	Accept Verdict = iota
	Drop
	Disconnect
)

// Gate applies a Limiter to one connection's inbound events. Only lossy
// events (points, cursor moves) spend tokens and can be dropped; history
// changing events always pass since each must be applied exactly once.
// A connection that keeps flooding past maxViolations is cut off.
type Gate struct {
	limiter       *Limiter
	maxViolations int
	violations    int
	mu            sync.Mutex
}

func NewGate(rate float64, burst, maxViolations int) *Gate {
	return &Gate{
		limiter:       NewLimiter(rate, burst),
		maxViolations: maxViolations,
	}
}

func (g *Gate) Check(lossy bool) Verdict {
	if !lossy {
		return Accept
	}
	if g.limiter.Allow() {
		return Accept
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.violations++
	if g.maxViolations > 0 && g.violations > g.maxViolations {
		return Disconnect
	}
	return Drop
}

func (g *Gate) Violations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.violations
}
