package sqlite

import (
	"errors"
	"testing"
	"time"
)

func noSleep(time.Duration) {}

func TestRetrySucceedsAfterTransientLock(t *testing.T) {
	calls := 0
	err := retryBusy(defaultRetryPolicy(), func() error {
		calls++
		if calls <= 3 {
			return errors.New("database is locked")
		}
		return nil
	}, noSleep)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func TestRetryStopsOnOtherErrors(t *testing.T) {
	calls := 0
	err := retryBusy(defaultRetryPolicy(), func() error {
		calls++
		return errors.New("unique constraint violated")
	}, noSleep)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	p := defaultRetryPolicy()
	calls := 0
	err := retryBusy(p, func() error {
		calls++
		return errors.New("database is locked")
	}, noSleep)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 1+p.attempts {
		t.Fatalf("expected %d calls, got %d", 1+p.attempts, calls)
	}
}

func TestRetryBackoffDoublesWithinJitterBound(t *testing.T) {
	p := defaultRetryPolicy()
	var sleeps []time.Duration
	retryBusy(p, func() error {
		return errors.New("database is locked")
	}, func(d time.Duration) {
		sleeps = append(sleeps, d)
	})

	if len(sleeps) != p.attempts {
		t.Fatalf("expected %d sleeps, got %d", p.attempts, len(sleeps))
	}
	for i, d := range sleeps {
		base := p.base * (1 << i)
		max := base + time.Duration(float64(base)*p.jitter)
		if d < base || d > max {
			t.Errorf("sleep[%d] = %v, expected within [%v, %v]", i, d, base, max)
		}
	}
}

func TestRetryNoJitterIsExact(t *testing.T) {
	p := retryPolicy{attempts: 4, base: 10 * time.Millisecond}
	var sleeps []time.Duration
	retryBusy(p, func() error {
		return errors.New("database is locked")
	}, func(d time.Duration) {
		sleeps = append(sleeps, d)
	})

	expected := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 80 * time.Millisecond}
	for i, d := range sleeps {
		if d != expected[i] {
			t.Errorf("sleep[%d] = %v, expected %v", i, d, expected[i])
		}
	}
}
