// Package sqlite is the default titlebot store: the snapshot lives in
// two tables (titles, config) replaced transactionally on save, and
// the audit journal is an append-only table.
package sqlite

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"
	"github.com/maddasher/titlebot/internal/core"
	"github.com/maddasher/titlebot/internal/storage"
)

//go:embed schema.sql
var schema string

var _ storage.Store = (*Store)(nil)

type Store struct {
	db dbHandle
}

// fileDSN appends the pragmas every on-disk handle needs: WAL so the
// scheduler and handlers can overlap, a generous busy timeout, NORMAL
// durability.
func fileDSN(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", fileDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Store{db: &loggedDB{inner: db}}, nil
}

func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Store{db: &loggedDB{inner: db}}, nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Load() (core.State, error) {
	var (
		cfg       core.Config
		guardians string
	)
	err := s.db.QueryRow(
		`SELECT min_hold_minutes, reminder_interval_minutes, max_reminders, guardians_json, announce_channel
		 FROM config WHERE id = 1`,
	).Scan(&cfg.MinHoldMinutes, &cfg.ReminderIntervalMinutes, &cfg.MaxReminders, &guardians, &cfg.AnnounceChannel)
	if errors.Is(err, sql.ErrNoRows) {
		return core.State{}, storage.ErrNoState
	}
	if err != nil {
		return core.State{}, fmt.Errorf("load config: %w", err)
	}
	if err := json.Unmarshal([]byte(guardians), &cfg.Guardians); err != nil {
		return core.State{}, fmt.Errorf("parse guardians: %w", err)
	}

	state := core.State{Titles: make(map[string]*core.Title), Config: cfg}

	rows, err := s.db.Query(
		`SELECT key, name, description, holder, held_since, queue_json, status,
		        due_since, reminder_count, last_reminder, snooze_until
		 FROM titles`,
	)
	if err != nil {
		return core.State{}, fmt.Errorf("load titles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key, queueJSON, status                         string
			heldSince, dueSince, lastReminder, snoozeUntil string
			t                                              core.Title
		)
		if err := rows.Scan(&key, &t.Name, &t.Description, &t.Holder, &heldSince, &queueJSON,
			&status, &dueSince, &t.ReminderCount, &lastReminder, &snoozeUntil); err != nil {
			return core.State{}, fmt.Errorf("scan title: %w", err)
		}
		if err := json.Unmarshal([]byte(queueJSON), &t.Queue); err != nil {
			return core.State{}, fmt.Errorf("parse queue for %s: %w", key, err)
		}
		t.Status = core.Status(status)
		if t.HeldSince, err = parseTime(heldSince); err != nil {
			return core.State{}, fmt.Errorf("parse held_since for %s: %w", key, err)
		}
		if t.DueSince, err = parseTime(dueSince); err != nil {
			return core.State{}, fmt.Errorf("parse due_since for %s: %w", key, err)
		}
		if t.LastReminder, err = parseTime(lastReminder); err != nil {
			return core.State{}, fmt.Errorf("parse last_reminder for %s: %w", key, err)
		}
		if t.SnoozeUntil, err = parseTime(snoozeUntil); err != nil {
			return core.State{}, fmt.Errorf("parse snooze_until for %s: %w", key, err)
		}
		state.Titles[key] = &t
	}
	if err := rows.Err(); err != nil {
		return core.State{}, fmt.Errorf("rows: %w", err)
	}
	return state, nil
}

// Save replaces the whole snapshot in one transaction. The title set is
// small, so a full rewrite stays cheap and keeps the save path trivially
// consistent with what Load reads back.
func (s *Store) Save(state core.State) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM titles`); err != nil {
		return fmt.Errorf("clear titles: %w", err)
	}
	for key, t := range state.Titles {
		queueJSON, _ := json.Marshal(t.Queue)
		if _, err := tx.Exec(
			`INSERT INTO titles (key, name, description, holder, held_since, queue_json, status,
			                     due_since, reminder_count, last_reminder, snooze_until)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key, t.Name, t.Description, t.Holder, fmtTime(t.HeldSince), string(queueJSON), string(t.Status),
			fmtTime(t.DueSince), t.ReminderCount, fmtTime(t.LastReminder), fmtTime(t.SnoozeUntil),
		); err != nil {
			return fmt.Errorf("insert title %s: %w", key, err)
		}
	}

	guardiansJSON, _ := json.Marshal(state.Config.Guardians)
	if _, err := tx.Exec(
		`INSERT INTO config (id, min_hold_minutes, reminder_interval_minutes, max_reminders, guardians_json, announce_channel)
		 VALUES (1, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   min_hold_minutes=excluded.min_hold_minutes,
		   reminder_interval_minutes=excluded.reminder_interval_minutes,
		   max_reminders=excluded.max_reminders,
		   guardians_json=excluded.guardians_json,
		   announce_channel=excluded.announce_channel`,
		state.Config.MinHoldMinutes, state.Config.ReminderIntervalMinutes, state.Config.MaxReminders,
		string(guardiansJSON), state.Config.AnnounceChannel,
	); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (s *Store) AppendAudit(rec core.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO audit (record_id, ts, title, actor, action, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.Title, rec.Actor, string(rec.Action), rec.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *Store) History(title string, limit int) ([]core.AuditRecord, error) {
	q := `SELECT record_id, ts, title, actor, action, detail FROM audit`
	var args []any
	if title != "" {
		q += ` WHERE title = ?`
		args = append(args, title)
	}
	q += ` ORDER BY id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var out []core.AuditRecord
	for rows.Next() {
		var (
			rec    core.AuditRecord
			ts     string
			action string
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.Title, &rec.Actor, &action, &rec.Detail); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.Action = core.Action(action)
		if rec.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Zero times are stored as empty strings so the tables stay readable.
func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
