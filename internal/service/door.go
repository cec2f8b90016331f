package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"retrolock/internal/actuator"
	"retrolock/internal/logger"
	"retrolock/internal/models"

	"github.com/google/uuid"
)

// DefaultPulseDuration is how long the output stays active for an "open" command.
const DefaultPulseDuration = time.Second

// EventPublisher receives one event per applied command or reset.
// Publish must not block.
type EventPublisher interface {
	Publish(e models.ActuatorEvent)
}

// DoorOptions tunes a DoorService.
type DoorOptions struct {
	PulseDuration time.Duration
	BusyPolicy    BusyPolicy
	Events        EventPublisher
	Log           *logger.Logger
}

// DoorService is the only component that changes the actuator.
//
// A single command lock covers the read-modify-write of Apply, the whole
// pulse window and Reset. State reads a published snapshot and never blocks.
type DoorService struct {
	driver actuator.Driver
	pulse  time.Duration
	policy BusyPolicy
	events EventPublisher
	log    *logger.Logger

	lock  chan struct{}
	state atomic.Pointer[models.ActuatorState]

	// fault is the last driver error; guarded by lock.
	fault error
	// closed is set once the line has been released; guarded by lock.
	closed bool
}

// NewDoorService returns a door in the idle state. The driver is expected to
// already sit at its inactive level.
func NewDoorService(driver actuator.Driver, opts DoorOptions) *DoorService {
	if opts.PulseDuration <= 0 {
		opts.PulseDuration = DefaultPulseDuration
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	s := &DoorService{
		driver: driver,
		pulse:  opts.PulseDuration,
		policy: opts.BusyPolicy,
		events: opts.Events,
		log:    opts.Log,
		lock:   make(chan struct{}, 1),
	}
	s.state.Store(&models.ActuatorState{
		LastTransition: models.TransitionNone,
		UpdatedAt:      time.Now().UTC(),
	})
	return s
}

// Apply executes cmd against the current state.
//
//	engaged  cmd     effect                          result
//	false    SetOn   drive active                    Activated
//	true     SetOn   none                            AlreadyActive
//	true     SetOff  drive inactive                  Deactivated
//	false    SetOff  none                            AlreadyInactive
//	false    Pulse   active, wait, inactive          Pulsed
//	true     Pulse   none                            PulseRejected
func (s *DoorService) Apply(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Kind() == models.TransitionNone {
		return ResultNone, ErrUnknownCommand
	}
	if err := s.acquire(ctx, s.policy); err != nil {
		return ResultNone, err
	}
	defer s.release()

	if s.closed {
		return ResultNone, ErrClosed
	}
	if s.fault != nil {
		return ResultNone, fmt.Errorf("%w: %w", ErrHardwareFault, s.fault)
	}

	engaged := s.state.Load().Engaged
	var (
		res Result
		err error
	)
	switch cmd {
	case CommandSetOn:
		if engaged {
			res = ResultAlreadyActive
			break
		}
		if err = s.write(true); err == nil {
			engaged, res = true, ResultActivated
		}
	case CommandSetOff:
		if !engaged {
			res = ResultAlreadyInactive
			break
		}
		if err = s.write(false); err == nil {
			engaged, res = false, ResultDeactivated
		}
	case CommandPulse:
		if engaged {
			res = ResultPulseRejected
			break
		}
		res, err = s.pulseLocked()
	}
	if err != nil {
		return ResultNone, err
	}

	s.commit(cmd, engaged, res)
	return res, nil
}

// State returns the latest snapshot without waiting for a running command.
func (s *DoorService) State(_ context.Context) models.ActuatorState {
	return *s.state.Load()
}

// Reset forces the driver back to its default configuration and marks the
// actuator idle. It waits for a running pulse under every busy policy and
// clears a previous hardware fault when the driver recovers.
func (s *DoorService) Reset(ctx context.Context) error {
	if err := s.acquire(ctx, BusyWait); err != nil {
		return err
	}
	defer s.release()

	if s.closed {
		return ErrClosed
	}
	if err := s.driver.ResetToDefault(); err != nil {
		s.fault = err
		s.log.Errorw("hardware_fault", "op", "reset", "err", err)
		return fmt.Errorf("%w: reset: %w", ErrHardwareFault, err)
	}
	s.fault = nil

	now := time.Now().UTC()
	s.state.Store(&models.ActuatorState{
		Engaged:        false,
		LastTransition: models.TransitionReset,
		UpdatedAt:      now,
	})
	s.log.Infow("actuator_reset", "engaged", false)
	s.publish(models.ActuatorEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  now,
		Type:        string(models.TransitionReset),
		Result:      "RESET_COMPLETE",
		Engaged:     false,
		Description: "Actuator reset to default",
	})
	return nil
}

// Close waits for the running command, drives the line inactive and
// releases it. Commands after Close fail with ErrClosed. If ctx ends first
// the line is left untouched.
func (s *DoorService) Close(ctx context.Context) error {
	if err := s.acquire(ctx, BusyWait); err != nil {
		return err
	}
	defer s.release()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.driver.SetOutput(false); err != nil {
		errs = append(errs, fmt.Errorf("%w: set output active=false: %w", ErrHardwareFault, err))
	}
	if err := s.driver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("release line: %w", err))
	}

	next := *s.state.Load()
	next.Engaged = false
	next.Pulsing = false
	next.UpdatedAt = time.Now().UTC()
	s.state.Store(&next)

	s.log.Infow("actuator_released", "engaged", false)
	return errors.Join(errs...)
}

// PulseDuration reports the configured pulse length.
func (s *DoorService) PulseDuration() time.Duration {
	return s.pulse
}

// pulseLocked drives the output active for the pulse duration. The pulse is
// never cancelled once started. Caller holds the lock.
func (s *DoorService) pulseLocked() (Result, error) {
	if err := s.write(true); err != nil {
		return ResultNone, err
	}
	s.setPulsing(true)
	time.Sleep(s.pulse)
	err := s.write(false)
	s.setPulsing(false)
	if err != nil {
		return ResultNone, err
	}
	return ResultPulsed, nil
}

func (s *DoorService) write(active bool) error {
	if err := s.driver.SetOutput(active); err != nil {
		s.fault = err
		s.log.Errorw("hardware_fault", "op", "set_output", "active", active, "err", err)
		return fmt.Errorf("%w: set output active=%t: %w", ErrHardwareFault, active, err)
	}
	return nil
}

func (s *DoorService) setPulsing(p bool) {
	next := *s.state.Load()
	next.Pulsing = p
	s.state.Store(&next)
}

// commit publishes the post-command snapshot, one log line and one event.
func (s *DoorService) commit(cmd Command, engaged bool, res Result) {
	now := time.Now().UTC()
	next := *s.state.Load()
	next.Engaged = engaged
	next.Pulsing = false
	if res.Changed() {
		next.LastTransition = cmd.Kind()
		next.UpdatedAt = now
	}
	s.state.Store(&next)

	s.log.Infow("actuator_transition", "command", cmd.String(), "result", res.String(), "engaged", engaged)

	ev := models.ActuatorEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  now,
		Type:        cmd.String(),
		Result:      res.String(),
		Engaged:     engaged,
		Description: res.Message(),
	}
	if res == ResultPulsed {
		ev.Metadata = map[string]any{"pulse_ms": s.pulse.Milliseconds()}
	}
	s.publish(ev)
}

func (s *DoorService) publish(e models.ActuatorEvent) {
	if s.events != nil {
		s.events.Publish(e)
	}
}

// acquire takes the command lock according to policy.
func (s *DoorService) acquire(ctx context.Context, policy BusyPolicy) error {
	if policy == BusyReject {
		select {
		case s.lock <- struct{}{}:
			return nil
		default:
			return ErrBusy
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *DoorService) release() {
	<-s.lock
}
