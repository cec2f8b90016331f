package service

import (
	"context"
	"time"

	"retrolock/internal/logger"
	"retrolock/internal/models"
)

const (
	defaultEventBuffer = 64

	// drainTimeout bounds how long queued events may take to flush on shutdown.
	drainTimeout = 5 * time.Second
)

// EventSink stores or forwards actuator events.
type EventSink interface {
	Append(ctx context.Context, e models.ActuatorEvent) error
}

type namedSink struct {
	name string
	sink EventSink
}

// Dispatcher decouples the door from slow event sinks. Publish never blocks;
// Run delivers queued events to every sink in order.
type Dispatcher struct {
	events chan models.ActuatorEvent
	sinks  []namedSink
	log    *logger.Logger
}

// NewDispatcher returns a dispatcher with a bounded queue of size buffer.
func NewDispatcher(log *logger.Logger, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		events: make(chan models.ActuatorEvent, buffer),
		log:    log,
	}
}

// AddSink registers a sink. It must be called before Run.
func (d *Dispatcher) AddSink(name string, s EventSink) {
	d.sinks = append(d.sinks, namedSink{name: name, sink: s})
}

// Publish queues e, dropping it when the queue is full.
func (d *Dispatcher) Publish(e models.ActuatorEvent) {
	select {
	case d.events <- e:
	default:
		d.log.Warnw("event_dropped", "event_id", e.EventID, "type", e.Type)
	}
}

// Run delivers events until ctx is canceled, then flushes what is queued.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case e := <-d.events:
			d.deliver(ctx, e)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case e := <-d.events:
			d.deliver(ctx, e)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e models.ActuatorEvent) {
	for _, s := range d.sinks {
		if err := s.sink.Append(ctx, e); err != nil {
			d.log.Warnw("event_sink_failed", "sink", s.name, "event_id", e.EventID, "err", err)
		}
	}
}
