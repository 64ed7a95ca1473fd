package engine

import (
	"fmt"
	"time"

	"github.com/maddasher/titlebot/internal/core"
)

// Tick is one scheduler pass over every title. It promotes held titles
// to due once the hold period has elapsed and a successor is waiting,
// expires snoozes, and emits reminders on the configured cadence. It
// never touches holders or queues; those only move through explicit
// operations.
//
// All changes from one pass commit as a single audit-then-snapshot
// write. If the store rejects it the pass rolls back wholesale and the
// next tick retries.
func (e *Engine) Tick(now time.Time) error {
	var pend pending
	defer e.deliver(&pend)
	e.mu.Lock()
	defer e.mu.Unlock()

	now = now.UTC()
	next := e.state.Clone()
	cfg := next.Config
	var recs []core.AuditRecord
	changed := false

	for _, key := range sortedKeys(next.Titles) {
		t := next.Titles[key]

		switch t.Status {
		case core.StatusHeld:
			if len(t.Queue) == 0 || now.Sub(t.HeldSince) < cfg.MinHold() {
				continue
			}
			markDue(t, now)
			successor := t.NextInQueue()
			recs = append(recs, e.record(now, key, core.SystemActor, core.ActionDue,
				fmt.Sprintf("held by %s, next %s", t.Holder, successor)))
			pend.note(core.Notification{Kind: core.NoteDue, Title: t.Name, PriorHolder: t.Holder, NextHolder: successor})
			changed = true
			// LastReminder was just seeded, so no reminder below.

		case core.StatusSnoozed:
			if t.SnoozeUntil.After(now) {
				continue
			}
			// Snooze expired: rejoin the reminder stream this pass.
			t.Status = core.StatusDue
			t.SnoozeUntil = time.Time{}
			changed = true

		case core.StatusUnclaimed:
			continue
		}

		if t.Status != core.StatusDue || t.ReminderCount >= cfg.MaxReminders {
			continue
		}
		if now.Sub(t.LastReminder) < cfg.ReminderInterval() {
			continue
		}
		t.ReminderCount++
		t.LastReminder = now
		recs = append(recs, e.record(now, key, core.SystemActor, core.ActionReminded,
			fmt.Sprintf("reminder %d of %d", t.ReminderCount, cfg.MaxReminders)))
		pend.note(core.Notification{Kind: core.NoteReminder, Title: t.Name, PriorHolder: t.Holder, NextHolder: t.NextInQueue()})
		changed = true
	}

	if !changed {
		pend.drop()
		return nil
	}
	if err := e.persist("tick", next, recs...); err != nil {
		pend.drop()
		return err
	}
	pend.channel = cfg.AnnounceChannel
	return nil
}
