package channel

import (
	"testing"
	"time"
)

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(3, 60)
	clock := time.Unix(1000, 0)
	rl.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		if !rl.Allow("u1") {
			t.Fatalf("burst token %d refused", i)
		}
	}
	if rl.Allow("u1") {
		t.Fatal("fourth request should be refused")
	}
	if !rl.Allow("u2") {
		t.Fatal("other users have their own bucket")
	}

	clock = clock.Add(time.Second) // 1 token per second
	if !rl.Allow("u1") {
		t.Fatal("bucket should refill over time")
	}
	if rl.Allow("u1") {
		t.Fatal("only one token should have been refilled")
	}
}

func TestRateLimiter_RefillCapped(t *testing.T) {
	rl := NewRateLimiter(2, 60)
	clock := time.Unix(1000, 0)
	rl.now = func() time.Time { return clock }

	rl.Allow("u")
	rl.Allow("u")
	clock = clock.Add(time.Hour)

	allowed := 0
	for i := 0; i < 5; i++ {
		if rl.Allow("u") {
			allowed++
		}
	}
	if allowed != 2 {
		t.Fatalf("allowed %d after long idle, want burst of 2", allowed)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(1, 0)
	if rl != nil {
		t.Fatal("non-positive rate should disable limiting")
	}
	for i := 0; i < 100; i++ {
		if !rl.Allow("u") {
			t.Fatal("nil limiter must allow everything")
		}
	}
}
