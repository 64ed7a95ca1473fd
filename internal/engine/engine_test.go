package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maddasher/titlebot/internal/core"
	"github.com/maddasher/titlebot/internal/storage"
)

// testClock is a hand-cranked time source.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

// recorder captures notifier calls for assertions.
type recorder struct {
	mu    sync.Mutex
	notes []core.Notification
	facts []holderChange
}

func (r *recorder) Announce(channel string, n core.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) HolderChanged(title, prev, next string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.facts = append(r.facts, holderChange{Title: title, Prev: prev, Next: next})
}

func (r *recorder) notesOf(kind core.NotificationKind) []core.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.Notification
	for _, n := range r.notes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) allFacts() []holderChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]holderChange(nil), r.facts...)
}

type testRig struct {
	eng   *Engine
	store *storage.InMemory
	clock *testClock
	rec   *recorder
}

func newRig(t *testing.T, titles ...string) *testRig {
	t.Helper()
	store := storage.NewInMemory()
	eng, err := New(store, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	clock := newTestClock()
	rec := &recorder{}
	eng.WithClock(clock.Now).WithNotifier(rec)

	var defs []core.TitleDef
	for _, name := range titles {
		defs = append(defs, core.TitleDef{Name: name})
	}
	if len(defs) > 0 {
		if _, err := eng.ImportTitles(defs); err != nil {
			t.Fatalf("import titles: %v", err)
		}
	}
	return &testRig{eng: eng, store: store, clock: clock, rec: rec}
}

// checkInvariants asserts the structural rules every operation must
// preserve: holder/status consistency, holder-queue disjointness, no
// duplicate queue entries.
func checkInvariants(t *testing.T, title core.Title) {
	t.Helper()
	if (title.Holder == "") != (title.Status == core.StatusUnclaimed) {
		t.Fatalf("%s: holder %q inconsistent with status %s", title.Name, title.Holder, title.Status)
	}
	seen := make(map[string]bool)
	for _, q := range title.Queue {
		if q == title.Holder {
			t.Fatalf("%s: holder %q appears in own queue", title.Name, q)
		}
		if seen[q] {
			t.Fatalf("%s: duplicate queue entry %q", title.Name, q)
		}
		seen[q] = true
	}
	switch title.Status {
	case core.StatusUnclaimed:
		if len(title.Queue) != 0 {
			t.Fatalf("%s: unclaimed with non-empty queue", title.Name)
		}
		if !title.HeldSince.IsZero() || !title.DueSince.IsZero() {
			t.Fatalf("%s: unclaimed with live timestamps", title.Name)
		}
	case core.StatusDue, core.StatusSnoozed:
		if len(title.Queue) == 0 {
			t.Fatalf("%s: %s with empty queue", title.Name, title.Status)
		}
	}
	if (title.Status == core.StatusSnoozed) != !title.SnoozeUntil.IsZero() {
		t.Fatalf("%s: snooze_until inconsistent with status %s", title.Name, title.Status)
	}
}

func (r *testRig) title(t *testing.T, name string) core.Title {
	t.Helper()
	title, err := r.eng.Lookup(name)
	if err != nil {
		t.Fatalf("lookup %s: %v", name, err)
	}
	checkInvariants(t, title)
	return title
}

func TestNewSavesInitialSnapshot(t *testing.T) {
	store := storage.NewInMemory()
	if _, err := New(store, nil); err != nil {
		t.Fatalf("new engine: %v", err)
	}
	state, err := store.Load()
	if err != nil {
		t.Fatalf("expected snapshot after init, got %v", err)
	}
	if state.Config.MinHoldMinutes != 60 {
		t.Fatalf("expected default config in snapshot, got %+v", state.Config)
	}
}

func TestNewWithSeedConfig(t *testing.T) {
	store := storage.NewInMemory()
	seed := core.DefaultConfig()
	seed.MinHoldMinutes = 5
	seed.Guardians = []string{"warden"}
	eng, err := New(store, &seed)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	cfg := eng.GetConfig()
	if cfg.MinHoldMinutes != 5 || !cfg.IsGuardian("warden") {
		t.Fatalf("seed not applied: %+v", cfg)
	}

	// A second boot must load the stored config, not re-seed.
	seed.MinHoldMinutes = 99
	eng2, err := New(store, &seed)
	if err != nil {
		t.Fatalf("reopen engine: %v", err)
	}
	if got := eng2.GetConfig().MinHoldMinutes; got != 5 {
		t.Fatalf("expected stored config to win on reopen, got %d", got)
	}
}

func TestNewRejectsInvalidSeed(t *testing.T) {
	seed := core.Config{MinHoldMinutes: -1}
	if _, err := New(storage.NewInMemory(), &seed); err == nil {
		t.Fatalf("expected error for invalid seed config")
	}
}

func TestPersistenceFailureRollsBack(t *testing.T) {
	rig := newRig(t, "Governor")

	rig.store.FailSaves = true
	_, err := rig.eng.Claim("Governor", "alice")
	var perr *core.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}

	// In-memory state must still show the title unclaimed.
	title := rig.title(t, "Governor")
	if title.Status != core.StatusUnclaimed || title.Holder != "" {
		t.Fatalf("state leaked through failed save: %+v", title)
	}
	if facts := rig.rec.allFacts(); len(facts) != 0 {
		t.Fatalf("no facts should be emitted for a failed operation, got %v", facts)
	}

	// Once the store recovers the same operation succeeds.
	rig.store.FailSaves = false
	if _, err := rig.eng.Claim("Governor", "alice"); err != nil {
		t.Fatalf("claim after recovery: %v", err)
	}
}

func TestAppendFailureRollsBack(t *testing.T) {
	rig := newRig(t, "Governor")

	rig.store.FailAppends = true
	_, err := rig.eng.Claim("Governor", "alice")
	var perr *core.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if rig.title(t, "Governor").Status != core.StatusUnclaimed {
		t.Fatalf("state leaked through failed audit append")
	}
}

func TestRestartRoundTrip(t *testing.T) {
	rig := newRig(t, "Governor", "Prefect")
	if _, err := rig.eng.Claim("Governor", "alice"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := rig.eng.Claim("Governor", "bob"); err != nil {
		t.Fatalf("queue: %v", err)
	}
	if _, err := rig.eng.Snooze("Governor", "warden", time.Hour); !errors.As(err, new(*core.NotDueError)) {
		t.Fatalf("expected NotDueError priming check, got %v", err)
	}

	reloaded, err := New(rig.store, nil)
	if err != nil {
		t.Fatalf("reload engine: %v", err)
	}
	title, err := reloaded.Lookup("governor")
	if err != nil {
		t.Fatalf("lookup after reload: %v", err)
	}
	if title.Holder != "alice" || title.Status != core.StatusHeld {
		t.Fatalf("holder lost across restart: %+v", title)
	}
	if len(title.Queue) != 1 || title.Queue[0] != "bob" {
		t.Fatalf("queue lost across restart: %v", title.Queue)
	}
	if _, err := reloaded.Lookup("Prefect"); err != nil {
		t.Fatalf("second title lost across restart: %v", err)
	}
}
