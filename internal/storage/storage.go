// Package storage defines the persistence contract for titlebot state:
// a full-state snapshot plus an append-only audit journal, each
// independently restorable.
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/maddasher/titlebot/internal/core"
)

// ErrNoState is returned by Load when no snapshot exists yet.
var ErrNoState = errors.New("no saved state")

// Store persists engine state. Save must replace the previous snapshot
// atomically; AppendAudit must be durable before it returns. The engine
// appends audit records first and saves the snapshot second, so a crash
// can leave the journal ahead of the snapshot but never behind it.
type Store interface {
	Load() (core.State, error)
	Save(state core.State) error
	AppendAudit(rec core.AuditRecord) error
	// History returns audit records newest first, filtered to one
	// canonical title key, or the whole journal when title is empty.
	// limit <= 0 means no limit.
	History(title string, limit int) ([]core.AuditRecord, error)
	Close() error
}

// InMemory is the test double. Fault injection flips make persistence
// failures deterministic in engine tests.
type InMemory struct {
	mu    sync.Mutex
	state core.State
	saved bool
	audit []core.AuditRecord

	FailSaves   bool
	FailAppends bool
}

// NewInMemory returns an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (m *InMemory) Load() (core.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return core.State{}, ErrNoState
	}
	return m.state.Clone(), nil
}

func (m *InMemory) Save(state core.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return fmt.Errorf("save failed (injected)")
	}
	m.state = state.Clone()
	m.saved = true
	return nil
}

func (m *InMemory) AppendAudit(rec core.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppends {
		return fmt.Errorf("append failed (injected)")
	}
	m.audit = append(m.audit, rec)
	return nil
}

func (m *InMemory) History(title string, limit int) ([]core.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.AuditRecord
	for i := len(m.audit) - 1; i >= 0; i-- {
		if title != "" && m.audit[i].Title != title {
			continue
		}
		out = append(out, m.audit[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *InMemory) Close() error { return nil }

// AuditLen reports how many records have been appended.
func (m *InMemory) AuditLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audit)
}
