package core

import "time"

// Action is the audited lifecycle vocabulary. Every state transition
// appends exactly one record per action taken.
type Action string

const (
	ActionClaimed       Action = "claimed"
	ActionQueued        Action = "queued"
	ActionReleased      Action = "released"
	ActionDue           Action = "due"
	ActionReminded      Action = "reminded"
	ActionSnoozed       Action = "snoozed"
	ActionAcknowledged  Action = "acknowledged"
	ActionForceReleased Action = "force_released"
	ActionConfigChanged Action = "config_changed"
)

// AuditRecord is one line of the append-only journal. Title is the
// canonical key, empty for configuration changes. Actor is a user
// identity or SystemActor.
type AuditRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"ts"`
	Title     string    `json:"title,omitempty"`
	Actor     string    `json:"actor"`
	Action    Action    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
}
