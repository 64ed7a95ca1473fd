// Package notify holds engine.Notifier implementations that are not
// tied to a transport.
package notify

import (
	"log"

	"github.com/maddasher/titlebot/internal/core"
)

// Logger mirrors every committed lifecycle event into the process log,
// so an operator can follow handoffs with nothing but the server
// output. It is registered alongside the WebSocket hub.
type Logger struct{}

func NewLogger() *Logger { return &Logger{} }

func (l *Logger) Announce(channel string, n core.Notification) {
	switch n.Kind {
	case core.NoteDue:
		log.Printf("notify[%s]: %s is due for handoff (held by %s, next %s)", channel, n.Title, n.PriorHolder, n.NextHolder)
	case core.NoteReminder:
		log.Printf("notify[%s]: reminder, %s still awaits handoff (held by %s, next %s)", channel, n.Title, n.PriorHolder, n.NextHolder)
	case core.NoteConfirmed:
		log.Printf("notify[%s]: %s now held by %s", channel, n.Title, n.NextHolder)
	case core.NoteReleased:
		log.Printf("notify[%s]: %s released by %s and unclaimed", channel, n.Title, n.PriorHolder)
	default:
		log.Printf("notify[%s]: %s: %s", channel, n.Title, n.Kind)
	}
}

func (l *Logger) HolderChanged(title, prev, next string) {
	log.Printf("notify: holder of %s changed: %q -> %q", title, prev, next)
}
