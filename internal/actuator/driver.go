// Package actuator drives the single digital output line behind the door relay.
//
// Drivers only translate "active"/"inactive" into physical levels. They hold no
// request logic; the door service is the only caller.
package actuator

import (
	"fmt"

	"retrolock/internal/config"
)

// Driver is the capability the door state machine needs from the hardware.
type Driver interface {
	// SetOutput drives the line to the active (true) or inactive (false) level.
	SetOutput(active bool) error
	// ResetToDefault re-initializes the line as an output at the inactive level.
	ResetToDefault() error
	// Close releases the line.
	Close() error
}

// Polarity maps logical activity to the electrical level. Relay boards are
// usually active-low: pulling the pin low energizes the coil.
type Polarity struct {
	ActiveLow bool
}

// High reports whether the line must be driven high for the given logical state.
func (p Polarity) High(active bool) bool {
	return active != p.ActiveLow
}

// New builds the driver selected in configuration and leaves the line inactive.
func New(cfg config.ActuatorConfig) (Driver, error) {
	pol := Polarity{ActiveLow: cfg.ActiveLow}
	switch cfg.Driver {
	case config.DriverPeriph:
		return NewPeriph(cfg.Pin, pol)
	case config.DriverRPIO:
		return NewRPIO(cfg.Pin, pol)
	case config.DriverSim:
		return NewSimulated(pol), nil
	default:
		return nil, fmt.Errorf("unknown actuator driver %q", cfg.Driver)
	}
}
