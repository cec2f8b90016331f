package actuator

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphDriver drives a BCM-numbered pin through periph.io.
type PeriphDriver struct {
	pin gpio.PinIO
	pol Polarity
}

// NewPeriph initializes the host drivers, looks up GPIO<pin> and drives it inactive.
func NewPeriph(pin int, pol Polarity) (*PeriphDriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	name := fmt.Sprintf("GPIO%d", pin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("periph: no pin named %s", name)
	}

	d := &PeriphDriver{pin: p, pol: pol}
	if err := d.ResetToDefault(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *PeriphDriver) level(active bool) gpio.Level {
	if d.pol.High(active) {
		return gpio.High
	}
	return gpio.Low
}

func (d *PeriphDriver) SetOutput(active bool) error {
	if err := d.pin.Out(d.level(active)); err != nil {
		return fmt.Errorf("periph %s out: %w", d.pin.Name(), err)
	}
	return nil
}

// ResetToDefault halts any running function on the pin and reconfigures it as
// an output at the inactive level.
func (d *PeriphDriver) ResetToDefault() error {
	if err := d.pin.Halt(); err != nil {
		return fmt.Errorf("periph %s halt: %w", d.pin.Name(), err)
	}
	return d.SetOutput(false)
}

func (d *PeriphDriver) Close() error {
	return d.pin.Halt()
}
