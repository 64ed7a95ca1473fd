// Package core defines the domain model for titlebot: titles, their
// lifecycle states, runtime configuration, and the audit vocabulary.
package core

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a title slot.
type Status string

const (
	StatusUnclaimed Status = "unclaimed"
	StatusHeld      Status = "held"
	StatusDue       Status = "due"
	StatusSnoozed   Status = "snoozed"
)

// SystemActor is recorded as the audit actor for scheduler-driven
// transitions.
const SystemActor = "system"

// Key returns the canonical identity of a title name. Lookups and
// uniqueness use the key; the stored Name keeps display casing.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Title is one ownable slot: at most one holder, a FIFO queue of
// waiting users, and the handoff bookkeeping the scheduler drives.
type Title struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Holder    string    `json:"holder,omitempty"`
	HeldSince time.Time `json:"held_since"`
	Queue     []string  `json:"queue,omitempty"`
	Status    Status    `json:"status"`

	// Handoff bookkeeping, meaningful while Due or Snoozed.
	DueSince      time.Time `json:"due_since"`
	ReminderCount int       `json:"reminder_count,omitempty"`
	LastReminder  time.Time `json:"last_reminder"`
	SnoozeUntil   time.Time `json:"snooze_until"`
}

// Involved reports whether user currently holds or is queued for t.
func (t *Title) Involved(user string) bool {
	if t.Holder == user && user != "" {
		return true
	}
	return t.QueuePosition(user) > 0
}

// QueuePosition returns the 1-based position of user in the queue, or 0.
func (t *Title) QueuePosition(user string) int {
	for i, q := range t.Queue {
		if q == user {
			return i + 1
		}
	}
	return 0
}

// NextInQueue returns the queue head, or empty.
func (t *Title) NextInQueue() string {
	if len(t.Queue) == 0 {
		return ""
	}
	return t.Queue[0]
}

// Clone returns a deep copy of t.
func (t *Title) Clone() *Title {
	cp := *t
	if t.Queue != nil {
		cp.Queue = append([]string(nil), t.Queue...)
	}
	return &cp
}

// State is the full persisted state: every title keyed by canonical
// name, plus the runtime configuration.
type State struct {
	Titles map[string]*Title `json:"titles"`
	Config Config            `json:"config"`
}

// NewState returns an empty state carrying the default configuration.
func NewState() State {
	return State{Titles: make(map[string]*Title), Config: DefaultConfig()}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	next := State{Titles: make(map[string]*Title, len(s.Titles)), Config: s.Config.Clone()}
	for k, t := range s.Titles {
		next.Titles[k] = t.Clone()
	}
	return next
}

// TitleDef is a registry import entry. Imports upsert by canonical key:
// unknown names create unclaimed titles, known names update the
// description only and never touch lifecycle state.
type TitleDef struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}
