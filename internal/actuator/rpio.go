package actuator

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPIODriver drives a BCM-numbered pin through /dev/gpiomem using go-rpio.
type RPIODriver struct {
	pin rpio.Pin
	pol Polarity

	closeOnce sync.Once
}

// NewRPIO maps the GPIO memory and drives the pin inactive.
func NewRPIO(pin int, pol Polarity) (*RPIODriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("rpio open: %w", err)
	}
	d := &RPIODriver{pin: rpio.Pin(pin), pol: pol}
	if err := d.ResetToDefault(); err != nil {
		_ = rpio.Close()
		return nil, err
	}
	return d, nil
}

func (d *RPIODriver) state(active bool) rpio.State {
	if d.pol.High(active) {
		return rpio.High
	}
	return rpio.Low
}

func (d *RPIODriver) SetOutput(active bool) error {
	d.pin.Write(d.state(active))
	return nil
}

func (d *RPIODriver) ResetToDefault() error {
	d.pin.Output()
	d.pin.Write(d.state(false))
	return nil
}

func (d *RPIODriver) Close() error {
	var err error
	d.closeOnce.Do(func() { err = rpio.Close() })
	return err
}
