package sqlite

import (
	"math/rand/v2"
	"strings"
	"time"
)

// retryPolicy controls backoff for write contention. With WAL plus the
// busy_timeout pragma contention is rare, but a second process on the
// same database can still surface SQLITE_BUSY.
type retryPolicy struct {
	attempts int // retries after the first call
	base     time.Duration
	jitter   float64
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: 7, base: 50 * time.Millisecond, jitter: 0.25}
}

// withBusyRetry re-runs fn on "database is locked" errors with
// exponential backoff and jitter. Any other error returns immediately.
func withBusyRetry(fn func() error) error {
	return retryBusy(defaultRetryPolicy(), fn, time.Sleep)
}

func retryBusy(p retryPolicy, fn func() error, sleep func(time.Duration)) error {
	err := fn()
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err == nil || !isBusy(err) {
			return err
		}
		delay := p.base * (1 << (attempt - 1))
		delay += time.Duration(float64(delay) * rand.Float64() * p.jitter)
		sleep(delay)
		err = fn()
	}
	return err
}

func isBusy(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "database is locked")
}
