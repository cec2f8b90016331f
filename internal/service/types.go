package service

import (
	"errors"
	"strings"
	"time"

	"retrolock/internal/models"
)

// Command is a requested actuator change.
type Command int

const (
	CommandSetOn Command = iota + 1
	CommandSetOff
	CommandPulse
)

// Request payload values understood by ParseCommand.
const (
	stateOn   = "on"
	stateOff  = "off"
	stateOpen = "open"
)

// ParseCommand maps a request "state" value to a Command. Matching is exact.
func ParseCommand(state string) (Command, error) {
	switch state {
	case stateOn:
		return CommandSetOn, nil
	case stateOff:
		return CommandSetOff, nil
	case stateOpen:
		return CommandPulse, nil
	default:
		return 0, ErrUnknownCommand
	}
}

// Kind returns the transition kind recorded for the command.
func (c Command) Kind() models.TransitionKind {
	switch c {
	case CommandSetOn:
		return models.TransitionSetOn
	case CommandSetOff:
		return models.TransitionSetOff
	case CommandPulse:
		return models.TransitionPulse
	default:
		return models.TransitionNone
	}
}

func (c Command) String() string {
	return string(c.Kind())
}

// Result is the outcome of an applied command.
type Result int

const (
	ResultNone Result = iota
	ResultActivated
	ResultAlreadyActive
	ResultDeactivated
	ResultAlreadyInactive
	ResultPulsed
	ResultPulseRejected
)

var resultNames = map[Result]string{
	ResultNone:            "NONE",
	ResultActivated:       "ACTIVATED",
	ResultAlreadyActive:   "ALREADY_ACTIVE",
	ResultDeactivated:     "DEACTIVATED",
	ResultAlreadyInactive: "ALREADY_INACTIVE",
	ResultPulsed:          "PULSED",
	ResultPulseRejected:   "PULSE_REJECTED",
}

var resultMessages = map[Result]string{
	ResultActivated:       "Door open continuously",
	ResultAlreadyActive:   "Door already open",
	ResultDeactivated:     "Door closed",
	ResultAlreadyInactive: "Door already closed",
	ResultPulsed:          "Door opened",
	ResultPulseRejected:   "Door open failed",
}

func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return "UNKNOWN"
}

// Message is the user-facing text returned for the result.
func (r Result) Message() string {
	return resultMessages[r]
}

// Changed reports whether the result involved a physical write.
func (r Result) Changed() bool {
	return r == ResultActivated || r == ResultDeactivated || r == ResultPulsed
}

// BusyPolicy decides what a command does while another one holds the actuator.
type BusyPolicy int

const (
	// BusyWait blocks until the actuator is free or the request context ends.
	BusyWait BusyPolicy = iota
	// BusyReject fails immediately with ErrBusy.
	BusyReject
)

// ParseBusyPolicy maps the configuration value to a BusyPolicy.
func ParseBusyPolicy(s string) (BusyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wait":
		return BusyWait, nil
	case "reject":
		return BusyReject, nil
	default:
		return BusyWait, errors.New("unknown busy policy: " + s)
	}
}

// Domain errors returned by the door service.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBusy           = errors.New("actuator busy")
	ErrHardwareFault  = errors.New("hardware fault")
	ErrClosed         = errors.New("actuator released")
)

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "SET_ON", "SET_OFF", "PULSE", "RESET"
}
