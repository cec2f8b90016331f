package service

import (
	"context"

	"retrolock/internal/actuator"
	"retrolock/internal/logger"
	"retrolock/internal/models"
	"retrolock/internal/repository"
)

// Door exposes the actuator state machine.
type Door interface {
	Apply(ctx context.Context, cmd Command) (Result, error)
	State(ctx context.Context) models.ActuatorState
	Reset(ctx context.Context) error
	Close(ctx context.Context) error
}

// Access checks the bearer secret of incoming requests.
type Access interface {
	Authorize(ctx context.Context, header string, req AccessRequest) bool
}

// EventLog exposes the audit history with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ActuatorEvent, error)
}

// Events is the background event fan-out.
// Stop via context cancellation in main() for graceful shutdown.
type Events interface {
	Publish(e models.ActuatorEvent)
	Run(ctx context.Context)
}

// Service aggregates all sub-services.
type Service struct {
	Door
	Access
	EventLog
	Events
}

// Deps holds what NewService wires together.
type Deps struct {
	Driver actuator.Driver
	Secret string
	Door   DoorOptions

	// Repos may be nil when no event store is configured.
	Repos *repository.Repository

	// Sinks receive every event in addition to the event store.
	Sinks map[string]EventSink

	Log *logger.Logger
}

// NewService wires the driver, secret and repositories into concrete services.
func NewService(d Deps) *Service {
	events := NewDispatcher(d.Log, defaultEventBuffer)

	var history repository.EventRepo
	if d.Repos != nil && d.Repos.EventRepo != nil {
		history = d.Repos.EventRepo
		events.AddSink("sqlite", history)
	}
	for name, sink := range d.Sinks {
		events.AddSink(name, sink)
	}

	doorOpts := d.Door
	doorOpts.Events = events
	if doorOpts.Log == nil {
		doorOpts.Log = d.Log
	}

	return &Service{
		Door:     NewDoorService(d.Driver, doorOpts),
		Access:   NewAccessService(d.Secret, d.Log),
		EventLog: NewEventLogService(history),
		Events:   events,
	}
}
