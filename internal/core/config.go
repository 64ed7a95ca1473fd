package core

import (
	"fmt"
	"time"
)

// Config is the runtime-tunable policy for handoffs. It is persisted
// alongside the titles and mutable through the admin API.
type Config struct {
	MinHoldMinutes          int      `json:"min_hold_minutes" yaml:"min_hold_minutes"`
	ReminderIntervalMinutes int      `json:"reminder_interval_minutes" yaml:"reminder_interval_minutes"`
	MaxReminders            int      `json:"max_reminders" yaml:"max_reminders"`
	Guardians               []string `json:"guardians" yaml:"guardians"`
	AnnounceChannel         string   `json:"announce_channel" yaml:"announce_channel"`
}

// DefaultConfig returns the stock policy: an hour of protected hold,
// reminders every fifteen minutes, three reminders per due period.
func DefaultConfig() Config {
	return Config{
		MinHoldMinutes:          60,
		ReminderIntervalMinutes: 15,
		MaxReminders:            3,
		AnnounceChannel:         "titles",
	}
}

// Validate rejects non-positive policy values.
func (c Config) Validate() error {
	if c.MinHoldMinutes <= 0 {
		return fmt.Errorf("min_hold_minutes must be positive, got %d", c.MinHoldMinutes)
	}
	if c.ReminderIntervalMinutes <= 0 {
		return fmt.Errorf("reminder_interval_minutes must be positive, got %d", c.ReminderIntervalMinutes)
	}
	if c.MaxReminders <= 0 {
		return fmt.Errorf("max_reminders must be positive, got %d", c.MaxReminders)
	}
	return nil
}

// MinHold returns the minimum hold period as a duration.
func (c Config) MinHold() time.Duration {
	return time.Duration(c.MinHoldMinutes) * time.Minute
}

// ReminderInterval returns the reminder spacing as a duration.
func (c Config) ReminderInterval() time.Duration {
	return time.Duration(c.ReminderIntervalMinutes) * time.Minute
}

// IsGuardian reports whether identity appears in the guardian roster.
func (c Config) IsGuardian(identity string) bool {
	for _, g := range c.Guardians {
		if g == identity {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	cp := c
	if c.Guardians != nil {
		cp.Guardians = append([]string(nil), c.Guardians...)
	}
	return cp
}
