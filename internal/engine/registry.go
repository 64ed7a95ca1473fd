package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maddasher/titlebot/internal/core"
)

// ImportTitles upserts the registry from a definition list. Unknown
// names become fresh unclaimed titles; known names only refresh their
// description and keep holder, queue, and clocks untouched. Imports are
// idempotent and emit no audit records, so running one on every boot is
// safe. Returns the display names of the titles it created.
func (e *Engine) ImportTitles(defs []core.TitleDef) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.state.Clone()
	var created []string
	changed := false

	for _, def := range defs {
		name := strings.TrimSpace(def.Name)
		key := core.Key(name)
		if key == "" {
			return nil, fmt.Errorf("title name required")
		}
		if existing, ok := next.Titles[key]; ok {
			if def.Description != "" && def.Description != existing.Description {
				existing.Description = def.Description
				changed = true
			}
			continue
		}
		next.Titles[key] = &core.Title{
			Name:        name,
			Description: def.Description,
			Status:      core.StatusUnclaimed,
		}
		created = append(created, name)
		changed = true
	}

	if !changed {
		return nil, nil
	}
	if err := e.persist("import", next); err != nil {
		return nil, err
	}
	return created, nil
}

// Lookup returns a copy of the named title.
func (e *Engine) Lookup(name string) (core.Title, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.state.Titles[core.Key(name)]
	if !ok {
		return core.Title{}, fmt.Errorf("%q: %w", name, core.ErrTitleNotFound)
	}
	return *t.Clone(), nil
}

// All returns every title ordered by canonical key.
func (e *Engine) All() []core.Title {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]core.Title, 0, len(e.state.Titles))
	for _, key := range sortedKeys(e.state.Titles) {
		out = append(out, *e.state.Titles[key].Clone())
	}
	return out
}

// Holding is one title a user is involved with: held outright, or
// queued at a 1-based position.
type Holding struct {
	Title    core.Title
	Held     bool
	Position int
}

// TitlesFor returns the titles user holds or waits for, held first,
// then by canonical key.
func (e *Engine) TitlesFor(user string) []Holding {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Holding
	for _, key := range sortedKeys(e.state.Titles) {
		t := e.state.Titles[key]
		switch {
		case t.Holder == user && user != "":
			out = append(out, Holding{Title: *t.Clone(), Held: true})
		case t.QueuePosition(user) > 0:
			out = append(out, Holding{Title: *t.Clone(), Position: t.QueuePosition(user)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Held && !out[j].Held
	})
	return out
}

// History returns audit records newest first, for one title or, with an
// empty name, the whole journal.
func (e *Engine) History(name string, limit int) ([]core.AuditRecord, error) {
	key := ""
	if strings.TrimSpace(name) != "" {
		key = core.Key(name)
		e.mu.Lock()
		_, ok := e.state.Titles[key]
		e.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("%q: %w", name, core.ErrTitleNotFound)
		}
	}
	recs, err := e.store.History(key, limit)
	if err != nil {
		return nil, &core.PersistenceError{Op: "history", Err: err}
	}
	return recs, nil
}

// GetConfig returns a copy of the current configuration.
func (e *Engine) GetConfig() core.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Config.Clone()
}

// ConfigPatch is a partial configuration update. Nil fields keep their
// current values; Guardians and AnnounceChannel may be set to empty
// values explicitly.
type ConfigPatch struct {
	MinHoldMinutes          *int
	ReminderIntervalMinutes *int
	MaxReminders            *int
	Guardians               *[]string
	AnnounceChannel         *string
}

// UpdateConfig applies a patch, validates the result, and records one
// ConfigChanged audit entry naming the fields that moved.
func (e *Engine) UpdateConfig(patch ConfigPatch, actor string) (core.Config, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return core.Config{}, fmt.Errorf("actor required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.state.Clone()
	cfg := &next.Config
	var fields []string

	if patch.MinHoldMinutes != nil {
		cfg.MinHoldMinutes = *patch.MinHoldMinutes
		fields = append(fields, fmt.Sprintf("min_hold_minutes=%d", cfg.MinHoldMinutes))
	}
	if patch.ReminderIntervalMinutes != nil {
		cfg.ReminderIntervalMinutes = *patch.ReminderIntervalMinutes
		fields = append(fields, fmt.Sprintf("reminder_interval_minutes=%d", cfg.ReminderIntervalMinutes))
	}
	if patch.MaxReminders != nil {
		cfg.MaxReminders = *patch.MaxReminders
		fields = append(fields, fmt.Sprintf("max_reminders=%d", cfg.MaxReminders))
	}
	if patch.Guardians != nil {
		cfg.Guardians = append([]string(nil), (*patch.Guardians)...)
		fields = append(fields, fmt.Sprintf("guardians=%s", strings.Join(cfg.Guardians, ",")))
	}
	if patch.AnnounceChannel != nil {
		cfg.AnnounceChannel = *patch.AnnounceChannel
		fields = append(fields, fmt.Sprintf("announce_channel=%s", cfg.AnnounceChannel))
	}

	if len(fields) == 0 {
		return e.state.Config.Clone(), nil
	}
	if err := cfg.Validate(); err != nil {
		return core.Config{}, err
	}

	now := e.now().UTC()
	rec := e.record(now, "", actor, core.ActionConfigChanged, strings.Join(fields, " "))
	if err := e.persist("config", next, rec); err != nil {
		return core.Config{}, err
	}
	return next.Config.Clone(), nil
}
