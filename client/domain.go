package client

// Title mirrors the server's title resource. Timestamps are RFC 3339
// strings; the zero value is sent as "".
type Title struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Holder        string   `json:"holder,omitempty"`
	HeldSince     string   `json:"held_since,omitempty"`
	Queue         []string `json:"queue"`
	Status        string   `json:"status"`
	DueSince      string   `json:"due_since,omitempty"`
	ReminderCount int      `json:"reminder_count"`
	SnoozeUntil   string   `json:"snooze_until,omitempty"`
}

// Title status values.
const (
	StatusUnclaimed = "unclaimed"
	StatusHeld      = "held"
	StatusDue       = "due"
	StatusSnoozed   = "snoozed"
)

type AuditRecord struct {
	ID        string `json:"id"`
	Timestamp string `json:"ts"`
	Title     string `json:"title,omitempty"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
}

// ClaimResponse reports whether the claim installed the caller as
// holder or queued them; Position is 1-based and zero when held.
type ClaimResponse struct {
	Result   string `json:"result"`
	Position int    `json:"position"`
	Title    Title  `json:"title"`
}

// Claim results.
const (
	ClaimHeld   = "held"
	ClaimQueued = "queued"
)

type Holding struct {
	Title    Title `json:"title"`
	Held     bool  `json:"held"`
	Position int   `json:"position,omitempty"`
}

type HoldingsResponse struct {
	User     string    `json:"user"`
	Holdings []Holding `json:"holdings"`
}

type Config struct {
	MinHoldMinutes          int      `json:"min_hold_minutes"`
	ReminderIntervalMinutes int      `json:"reminder_interval_minutes"`
	MaxReminders            int      `json:"max_reminders"`
	Guardians               []string `json:"guardians"`
	AnnounceChannel         string   `json:"announce_channel"`
}

// ConfigPatch is a partial config update; nil fields are left alone.
type ConfigPatch struct {
	MinHoldMinutes          *int      `json:"min_hold_minutes,omitempty"`
	ReminderIntervalMinutes *int      `json:"reminder_interval_minutes,omitempty"`
	MaxReminders            *int      `json:"max_reminders,omitempty"`
	Guardians               *[]string `json:"guardians,omitempty"`
	AnnounceChannel         *string   `json:"announce_channel,omitempty"`
	Actor                   string    `json:"actor,omitempty"`
}

type TitleDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
