package publisher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"retrolock/internal/config"
	"retrolock/internal/logger"
	"retrolock/internal/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	defaultPingTimeout = 5 * time.Second

	// measurement is the InfluxDB measurement holding one point per event.
	measurement = "actuator_transitions"
)

// pointWriter is the part of the non-blocking WriteAPI the writer uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// InfluxWriter records actuator events as time series points.
type InfluxWriter struct {
	client    influxdb2.Client
	writeAPI  pointWriter
	connected atomic.Bool
	log       *logger.Logger
}

// ConnectInflux pings the server from cfg and prepares a batched writer.
func ConnectInflux(cfg config.InfluxDBConfig, log *logger.Logger) (*InfluxWriter, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if log == nil {
		log = logger.Nop()
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	w := &InfluxWriter{client: client, writeAPI: writeAPI, log: log}
	w.connected.Store(true)

	go func(errs <-chan error) {
		for err := range errs {
			log.Warnw("influx_write_failed", "err", err)
		}
	}(writeAPI.Errors())

	return w, nil
}

// Append queues one point for e. The write itself happens in the background.
func (w *InfluxWriter) Append(_ context.Context, e models.ActuatorEvent) error {
	if !w.connected.Load() {
		return ErrNotConnected
	}
	w.writeAPI.WritePoint(buildPoint(e))
	return nil
}

// HealthCheck pings the server.
func (w *InfluxWriter) HealthCheck(ctx context.Context) error {
	if !w.connected.Load() || w.client == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := w.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// Close flushes pending points and closes the client.
func (w *InfluxWriter) Close() error {
	if !w.connected.Swap(false) {
		return nil
	}
	w.writeAPI.Flush()
	if w.client != nil {
		w.client.Close()
	}
	return nil
}

func buildPoint(e models.ActuatorEvent) *write.Point {
	fields := map[string]interface{}{
		"engaged": e.Engaged,
	}
	if m, ok := e.Metadata.(map[string]any); ok {
		if ms, ok := m["pulse_ms"]; ok {
			fields["pulse_ms"] = ms
		}
	}
	ts := e.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(
		measurement,
		map[string]string{
			"type":   e.Type,
			"result": e.Result,
		},
		fields,
		ts,
	)
}
