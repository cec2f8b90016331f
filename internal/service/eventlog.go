package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"retrolock/internal/models"
	"retrolock/internal/repository"
)

// ErrEventLogDisabled is returned when no event store is configured.
var ErrEventLogDisabled = errors.New("event log disabled")

var (
	errInvertedRange    = errors.New("invalid time range: from is after to")
	errUnknownEventKind = errors.New("unknown event type")
)

// IsInvalidFilter reports whether List rejected the filter itself.
func IsInvalidFilter(err error) bool {
	return errors.Is(err, errInvertedRange) || errors.Is(err, errUnknownEventKind)
}

// EventLogService reads the actuator audit history.
type EventLogService struct {
	events repository.EventRepo
}

// NewEventLogService returns a history reader. A nil repo disables history.
func NewEventLogService(events repository.EventRepo) *EventLogService {
	return &EventLogService{events: events}
}

// List returns the recorded door events matching f, oldest first.
// The filter is checked before the store so bad queries fail the same way
// with or without a database.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.ActuatorEvent, error) {
	f, err := f.normalize()
	if err != nil {
		return nil, err
	}
	if s.events == nil {
		return nil, ErrEventLogDisabled
	}
	return s.events.List(ctx, f.From, f.To, f.Type)
}

// normalize moves both bounds to UTC and upper-cases the kind.
func (f LogFilter) normalize() (LogFilter, error) {
	out := LogFilter{Type: strings.ToUpper(strings.TrimSpace(f.Type))}
	if !f.From.IsZero() {
		out.From = f.From.UTC()
	}
	if !f.To.IsZero() {
		out.To = f.To.UTC()
	}

	if !out.From.IsZero() && !out.To.IsZero() && out.To.Before(out.From) {
		return LogFilter{}, errInvertedRange
	}
	if out.Type != "" && !recordedKind(models.TransitionKind(out.Type)) {
		return LogFilter{}, fmt.Errorf("%w %q", errUnknownEventKind, out.Type)
	}
	return out, nil
}

// recordedKind reports whether the door ever writes events of kind k.
func recordedKind(k models.TransitionKind) bool {
	switch k {
	case models.TransitionSetOn, models.TransitionSetOff, models.TransitionPulse, models.TransitionReset:
		return true
	}
	return false
}
