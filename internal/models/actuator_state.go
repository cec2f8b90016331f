package models

import "time"

// TransitionKind names the last change applied to the actuator.
type TransitionKind string

const (
	TransitionNone   TransitionKind = "NONE"
	TransitionSetOn  TransitionKind = "SET_ON"
	TransitionSetOff TransitionKind = "SET_OFF"
	TransitionPulse  TransitionKind = "PULSE"
	TransitionReset  TransitionKind = "RESET"
)

// ActuatorState is an immutable snapshot of the door actuator.
type ActuatorState struct {
	Engaged        bool           `json:"engaged"`         // output held at the active level
	LastTransition TransitionKind `json:"last_transition"` // NONE | SET_ON | SET_OFF | PULSE | RESET
	Pulsing        bool           `json:"pulsing"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// StateLabel reports the state the way the status endpoint exposes it.
func (s ActuatorState) StateLabel() string {
	if s.Engaged {
		return "on"
	}
	return "off"
}
