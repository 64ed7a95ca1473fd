// Package engine holds the titlebot state machine. All mutations run
// under one mutex, follow the audit-then-snapshot write order, and only
// commit in memory once the store has accepted both writes.
package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maddasher/titlebot/internal/core"
	"github.com/maddasher/titlebot/internal/storage"
)

// Notifier receives committed lifecycle events. The engine calls it
// outside the critical section, so implementations may do network work
// but must tolerate replay.
type Notifier interface {
	Announce(channel string, n core.Notification)
	HolderChanged(title, prev, next string)
}

type Engine struct {
	mu        sync.Mutex
	state     core.State
	store     storage.Store
	notifiers []Notifier
	now       func() time.Time
}

// New loads state from the store. A fresh store starts from defaults,
// or from seed when given, and is saved immediately so a restart before
// the first operation still finds a snapshot.
func New(store storage.Store, seed *core.Config) (*Engine, error) {
	e := &Engine{store: store, now: time.Now}

	state, err := store.Load()
	switch {
	case errors.Is(err, storage.ErrNoState):
		state = core.NewState()
		if seed != nil {
			if err := seed.Validate(); err != nil {
				return nil, fmt.Errorf("seed config: %w", err)
			}
			state.Config = seed.Clone()
		}
		if err := store.Save(state); err != nil {
			return nil, fmt.Errorf("save initial state: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load state: %w", err)
	}

	e.state = state
	return e, nil
}

// WithNotifier registers a notifier. Call before serving; the notifier
// list is not guarded.
func (e *Engine) WithNotifier(n Notifier) *Engine {
	if n != nil {
		e.notifiers = append(e.notifiers, n)
	}
	return e
}

// WithClock overrides the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// holderChange is a committed holder transition, delivered to
// Notifier.HolderChanged for downstream sync (role grants and the
// like).
type holderChange struct {
	Title string
	Prev  string
	Next  string
}

// pending collects emissions while the lock is held. deliver runs after
// the lock is released; see the defer ordering in every operation.
type pending struct {
	channel string
	notes   []core.Notification
	facts   []holderChange
}

func (p *pending) note(n core.Notification) {
	p.notes = append(p.notes, n)
}

func (p *pending) fact(title, prev, next string) {
	p.facts = append(p.facts, holderChange{Title: title, Prev: prev, Next: next})
}

func (p *pending) drop() {
	p.notes = nil
	p.facts = nil
}

func (e *Engine) deliver(p *pending) {
	for _, n := range p.notes {
		for _, nf := range e.notifiers {
			nf.Announce(p.channel, n)
		}
	}
	for _, f := range p.facts {
		for _, nf := range e.notifiers {
			nf.HolderChanged(f.Title, f.Prev, f.Next)
		}
	}
}

// persist writes the audit records and the snapshot, then commits next
// as the in-memory state. On any store error the current state stays
// and the caller must not emit.
func (e *Engine) persist(op string, next core.State, recs ...core.AuditRecord) error {
	for _, rec := range recs {
		if err := e.store.AppendAudit(rec); err != nil {
			return &core.PersistenceError{Op: op, Err: err}
		}
	}
	if err := e.store.Save(next); err != nil {
		return &core.PersistenceError{Op: op, Err: err}
	}
	e.state = next
	return nil
}

func (e *Engine) record(now time.Time, title, actor string, action core.Action, detail string) core.AuditRecord {
	return core.AuditRecord{
		ID:        uuid.NewString(),
		Timestamp: now,
		Title:     title,
		Actor:     actor,
		Action:    action,
		Detail:    detail,
	}
}

func markDue(t *core.Title, now time.Time) {
	t.Status = core.StatusDue
	t.DueSince = now
	t.ReminderCount = 0
	// The due announcement counts as the first contact; the first
	// reminder fires a full interval later.
	t.LastReminder = now
	t.SnoozeUntil = time.Time{}
}

func sortedKeys(titles map[string]*core.Title) []string {
	keys := make([]string, 0, len(titles))
	for k := range titles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
