package ratelimit

import (
	"testing"
	"time"
)

func TestAllowSlidingWindow(t *testing.T) {
	l := New(Config{MaxMessages: 5, Window: 10 * time.Second, Timeout: time.Minute})
	start := time.UnixMilli(1_700_000_000_000)

	for i := 0; i < 5; i++ {
		if !l.Allow("u1", start.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("send %d should be allowed", i)
		}
	}
	if l.Allow("u1", start.Add(5*time.Second)) {
		t.Fatal("sixth send inside the window should be rejected")
	}
	if !l.Allow("u2", start.Add(5*time.Second)) {
		t.Fatal("authors must be limited independently")
	}
	// The first send leaves the window after 10s.
	if !l.Allow("u1", start.Add(10*time.Second+time.Millisecond)) {
		t.Fatal("send after the window slid should be allowed")
	}
	if got := l.TimeoutUntil(start); !got.Equal(start.Add(time.Minute)) {
		t.Fatalf("unexpected timeout end %v", got)
	}
}

func TestDisabledAndSweep(t *testing.T) {
	off := New(Config{})
	for i := 0; i < 100; i++ {
		if !off.Allow("u1", time.Now()) {
			t.Fatal("zero config must not limit")
		}
	}

	l := New(Config{MaxMessages: 1, Window: time.Second})
	now := time.UnixMilli(0)
	l.Allow("u1", now)
	l.Sweep(now.Add(2 * time.Second))
	if len(l.sends) != 0 {
		t.Fatalf("expected sweep to drop idle authors, got %d", len(l.sends))
	}
	l.Allow("u1", now)
	l.Reset("u1")
	if !l.Allow("u1", now) {
		t.Fatal("reset must clear history")
	}
}
