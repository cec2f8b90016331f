package models

import "time"

// ActuatorEvent is a single audit entry for an applied command or reset.
type ActuatorEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // SET_ON | SET_OFF | PULSE | RESET
	Result      string    `json:"result"`      // e.g. ACTIVATED, ALREADY_ACTIVE
	Engaged     bool      `json:"engaged"`     // state after the command
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
