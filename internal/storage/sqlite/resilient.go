package sqlite

import (
	"time"

	"github.com/maddasher/titlebot/internal/core"
	"github.com/maddasher/titlebot/internal/storage"
)

var _ storage.Store = (*ResilientStore)(nil)

// ResilientStore wraps every Store method with the circuit breaker and
// busy-retry so transient SQLite trouble stays inside the storage layer.
type ResilientStore struct {
	inner *Store
	cb    *CircuitBreaker
}

// NewResilient wraps inner with the default breaker (threshold 5,
// cooldown 30s).
func NewResilient(inner *Store) *ResilientStore {
	return &ResilientStore{inner: inner, cb: NewCircuitBreaker(5, 30*time.Second)}
}

// NewResilientWithBreaker wraps inner with a caller-supplied breaker.
func NewResilientWithBreaker(inner *Store, cb *CircuitBreaker) *ResilientStore {
	return &ResilientStore{inner: inner, cb: cb}
}

// CircuitBreakerState reports the breaker state for diagnostics.
func (r *ResilientStore) CircuitBreakerState() string {
	return r.cb.State().String()
}

func (r *ResilientStore) guard(fn func() error) error {
	return r.cb.Execute(func() error {
		return withBusyRetry(fn)
	})
}

func (r *ResilientStore) Load() (core.State, error) {
	var state core.State
	err := r.guard(func() error {
		var innerErr error
		state, innerErr = r.inner.Load()
		return innerErr
	})
	return state, err
}

func (r *ResilientStore) Save(state core.State) error {
	return r.guard(func() error {
		return r.inner.Save(state)
	})
}

func (r *ResilientStore) AppendAudit(rec core.AuditRecord) error {
	return r.guard(func() error {
		return r.inner.AppendAudit(rec)
	})
}

func (r *ResilientStore) History(title string, limit int) ([]core.AuditRecord, error) {
	var recs []core.AuditRecord
	err := r.guard(func() error {
		var innerErr error
		recs, innerErr = r.inner.History(title, limit)
		return innerErr
	})
	return recs, err
}

// Close bypasses the breaker; shutdown must always reach the db.
func (r *ResilientStore) Close() error {
	return r.inner.Close()
}
