package engine

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/maddasher/titlebot/internal/core"
)

// ClaimOutcome distinguishes taking a vacant title from joining its
// queue.
type ClaimOutcome string

const (
	ClaimHeld   ClaimOutcome = "held"
	ClaimQueued ClaimOutcome = "queued"
)

type ClaimResult struct {
	Title    core.Title
	Outcome  ClaimOutcome
	Position int // 1-based queue position when Outcome is ClaimQueued
}

// Claim gives user the title if it is unclaimed, otherwise appends them
// to its queue. A user already holding or queued for this title cannot
// claim it again; involvement elsewhere never matters.
func (e *Engine) Claim(name, user string) (ClaimResult, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return ClaimResult{}, fmt.Errorf("user required")
	}

	var pend pending
	defer e.deliver(&pend)
	e.mu.Lock()
	defer e.mu.Unlock()

	key := core.Key(name)
	cur, ok := e.state.Titles[key]
	if !ok {
		return ClaimResult{}, fmt.Errorf("%q: %w", name, core.ErrTitleNotFound)
	}

	now := e.now().UTC()
	next := e.state.Clone()
	t := next.Titles[key]

	if cur.Status == core.StatusUnclaimed {
		t.Holder = user
		t.HeldSince = now
		t.Status = core.StatusHeld
		rec := e.record(now, key, user, core.ActionClaimed, "")
		if err := e.persist("claim", next, rec); err != nil {
			return ClaimResult{}, err
		}
		pend.channel = next.Config.AnnounceChannel
		pend.note(core.Notification{Kind: core.NoteConfirmed, Title: t.Name, NextHolder: user})
		pend.fact(t.Name, "", user)
		return ClaimResult{Title: *t.Clone(), Outcome: ClaimHeld}, nil
	}

	if cur.Involved(user) {
		return ClaimResult{}, &core.InvolvedError{Title: cur.Name, User: user}
	}

	t.Queue = append(t.Queue, user)
	pos := len(t.Queue)
	rec := e.record(now, key, user, core.ActionQueued, fmt.Sprintf("position %d", pos))
	if err := e.persist("claim", next, rec); err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{Title: *t.Clone(), Outcome: ClaimQueued, Position: pos}, nil
}

// Release gives up a held title. With no queue it returns to the pool;
// with waiters it becomes due and the departing holder stays on the
// hook until a guardian confirms the handoff.
func (e *Engine) Release(name, user string) (core.Title, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return core.Title{}, fmt.Errorf("user required")
	}

	var pend pending
	defer e.deliver(&pend)
	e.mu.Lock()
	defer e.mu.Unlock()

	key := core.Key(name)
	cur, ok := e.state.Titles[key]
	if !ok {
		return core.Title{}, fmt.Errorf("%q: %w", name, core.ErrTitleNotFound)
	}
	if cur.Holder != user {
		return core.Title{}, &core.NotHolderError{Title: cur.Name, User: user, Holder: cur.Holder}
	}

	return e.releaseLocked(&pend, key, user, core.ActionReleased)
}

// ForceRelease is the guardian override: no holder check, and releasing
// an unclaimed title is a harmless no-op.
func (e *Engine) ForceRelease(name, actor string) (core.Title, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return core.Title{}, fmt.Errorf("actor required")
	}

	var pend pending
	defer e.deliver(&pend)
	e.mu.Lock()
	defer e.mu.Unlock()

	key := core.Key(name)
	cur, ok := e.state.Titles[key]
	if !ok {
		return core.Title{}, fmt.Errorf("%q: %w", name, core.ErrTitleNotFound)
	}
	if cur.Status == core.StatusUnclaimed {
		return *cur.Clone(), nil
	}

	return e.releaseLocked(&pend, key, actor, core.ActionForceReleased)
}

// releaseLocked is the shared tail of Release and ForceRelease. The
// caller holds the lock and has validated the operation.
func (e *Engine) releaseLocked(pend *pending, key, actor string, action core.Action) (core.Title, error) {
	now := e.now().UTC()
	next := e.state.Clone()
	t := next.Titles[key]
	prev := t.Holder
	forced := action == core.ActionForceReleased

	if len(t.Queue) == 0 {
		*t = core.Title{Name: t.Name, Description: t.Description, Status: core.StatusUnclaimed}

		detail := "title unclaimed"
		if forced {
			detail = fmt.Sprintf("removed %s, title unclaimed", prev)
		}
		rec := e.record(now, key, actor, action, detail)
		if err := e.persist("release", next, rec); err != nil {
			return core.Title{}, err
		}
		pend.channel = next.Config.AnnounceChannel
		pend.note(core.Notification{Kind: core.NoteReleased, Title: t.Name, PriorHolder: prev})
		pend.fact(t.Name, prev, "")
		return *t.Clone(), nil
	}

	markDue(t, now)
	successor := t.NextInQueue()

	detail := fmt.Sprintf("handoff pending to %s", successor)
	if forced {
		detail = fmt.Sprintf("holder %s overridden, handoff pending to %s", prev, successor)
	}
	recs := []core.AuditRecord{
		e.record(now, key, actor, action, detail),
		e.record(now, key, core.SystemActor, core.ActionDue, fmt.Sprintf("held by %s, next %s", t.Holder, successor)),
	}
	if err := e.persist("release", next, recs...); err != nil {
		return core.Title{}, err
	}
	pend.channel = next.Config.AnnounceChannel
	pend.note(core.Notification{Kind: core.NoteDue, Title: t.Name, PriorHolder: t.Holder, NextHolder: successor})
	return *t.Clone(), nil
}

// Acknowledge confirms a handoff: the queue head becomes the holder and
// the handoff clocks reset. Only valid while the title is due or
// snoozed.
func (e *Engine) Acknowledge(name, actor string) (core.Title, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return core.Title{}, fmt.Errorf("actor required")
	}

	var pend pending
	defer e.deliver(&pend)
	e.mu.Lock()
	defer e.mu.Unlock()

	key := core.Key(name)
	cur, ok := e.state.Titles[key]
	if !ok {
		return core.Title{}, fmt.Errorf("%q: %w", name, core.ErrTitleNotFound)
	}
	if cur.Status != core.StatusDue && cur.Status != core.StatusSnoozed {
		return core.Title{}, &core.NotDueError{Title: cur.Name, Status: cur.Status}
	}
	if len(cur.Queue) == 0 {
		err := &core.NoSuccessorError{Title: cur.Name}
		log.Printf("engine: invariant violated: %v", err)
		return core.Title{}, err
	}

	now := e.now().UTC()
	next := e.state.Clone()
	t := next.Titles[key]
	prev := t.Holder

	t.Holder = t.Queue[0]
	t.Queue = append([]string(nil), t.Queue[1:]...)
	if len(t.Queue) == 0 {
		t.Queue = nil
	}
	t.HeldSince = now
	t.Status = core.StatusHeld
	t.DueSince = time.Time{}
	t.ReminderCount = 0
	t.LastReminder = time.Time{}
	t.SnoozeUntil = time.Time{}

	rec := e.record(now, key, actor, core.ActionAcknowledged, fmt.Sprintf("%s -> %s", prev, t.Holder))
	if err := e.persist("acknowledge", next, rec); err != nil {
		return core.Title{}, err
	}
	pend.channel = next.Config.AnnounceChannel
	pend.note(core.Notification{Kind: core.NoteConfirmed, Title: t.Name, PriorHolder: prev, NextHolder: t.Holder})
	pend.fact(t.Name, prev, t.Holder)
	return *t.Clone(), nil
}

// Snooze pauses the reminder stream until the deadline passes. The
// holder and queue stay put; reminders resume on their old cadence once
// the snooze expires.
func (e *Engine) Snooze(name, actor string, d time.Duration) (core.Title, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return core.Title{}, fmt.Errorf("actor required")
	}
	if d <= 0 {
		return core.Title{}, fmt.Errorf("snooze duration must be positive, got %s", d)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := core.Key(name)
	cur, ok := e.state.Titles[key]
	if !ok {
		return core.Title{}, fmt.Errorf("%q: %w", name, core.ErrTitleNotFound)
	}
	if cur.Status != core.StatusDue && cur.Status != core.StatusSnoozed {
		return core.Title{}, &core.NotDueError{Title: cur.Name, Status: cur.Status}
	}

	now := e.now().UTC()
	next := e.state.Clone()
	t := next.Titles[key]
	t.Status = core.StatusSnoozed
	t.SnoozeUntil = now.Add(d)

	rec := e.record(now, key, actor, core.ActionSnoozed, fmt.Sprintf("until %s", t.SnoozeUntil.Format(time.RFC3339)))
	if err := e.persist("snooze", next, rec); err != nil {
		return core.Title{}, err
	}
	return *t.Clone(), nil
}
