package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLimiterBurstThenRefill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := newLimiterAt(10, 3, clock.Now)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("Token %d of the burst should be allowed", i)
		}
	}
	if l.Allow() {
		t.Error("Bucket should be empty after the burst")
	}

	clock.Advance(100 * time.Millisecond)
	if !l.Allow() {
		t.Error("One token should refill after 100ms at 10/s")
	}
	if l.Allow() {
		t.Error("Only one token should have refilled")
	}

	clock.Advance(10 * time.Second)
	if !l.AllowN(3) {
		t.Error("Refill should cap at burst and allow 3")
	}
	if l.AllowN(1) {
		t.Error("Refill must not exceed burst")
	}
}

func TestGateNeverDropsHistoryEvents(t *testing.T) {
	g := NewGate(1, 1, 5)

	for i := 0; i < 100; i++ {
		if v := g.Check(false); v != Accept {
			t.Fatalf("Non-lossy event %d got verdict %d", i, v)
		}
	}
	if g.Violations() != 0 {
		t.Errorf("Expected 0 violations, got %d", g.Violations())
	}
}

func TestGateDropsThenDisconnects(t *testing.T) {
	g := NewGate(0, 2, 3)

	if g.Check(true) != Accept || g.Check(true) != Accept {
		t.Fatal("Burst should be accepted")
	}
	for i := 0; i < 3; i++ {
		if v := g.Check(true); v != Drop {
			t.Fatalf("Violation %d: expected Drop, got %d", i+1, v)
		}
	}
	if v := g.Check(true); v != Disconnect {
		t.Errorf("Expected Disconnect after exceeding violations, got %d", v)
	}
}
