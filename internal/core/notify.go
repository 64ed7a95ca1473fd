package core

// NotificationKind labels announce-channel events.
type NotificationKind string

const (
	NoteDue       NotificationKind = "due"
	NoteReminder  NotificationKind = "reminder"
	NoteConfirmed NotificationKind = "confirmed"
	NoteReleased  NotificationKind = "released"
)

// Notification is the payload delivered to the announce channel when a
// title becomes due, gets nagged, changes hands, or frees up.
type Notification struct {
	Kind          NotificationKind `json:"kind"`
	Title         string           `json:"title"`
	PriorHolder   string           `json:"prior_holder,omitempty"`
	NextHolder    string           `json:"next_holder,omitempty"`
	QueuePosition int              `json:"queue_position,omitempty"`
}
