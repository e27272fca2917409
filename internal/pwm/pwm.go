// Package pwm switches a slow device on and off to approximate a
// fractional power level. Periods are long: this drives a boiler relay,
// not an LED.
package pwm

import (
	"fmt"
	"time"
)

// Device is anything that can be switched on and off, typically a relay
// reached over the message bus.
type Device interface {
	On() error
	Off() error
}

const DefaultPeriod = 10 * time.Minute

type PWM struct {
	device Device
	period time.Duration
	duty   float64

	periodStart time.Time
	started     bool
	active      bool
}

func New(period time.Duration, device Device) *PWM {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &PWM{device: device, period: period}
}

func (p *PWM) DutyCycle() float64 {
	return p.duty
}

// SetDutyCycle installs a new duty cycle. The current period is
// abandoned; the next Update starts a fresh one.
func (p *PWM) SetDutyCycle(duty float64) error {
	if duty < 0 || duty > 1 {
		return fmt.Errorf("duty cycle %v outside [0, 1]", duty)
	}
	p.duty = duty
	p.started = false
	return nil
}

// Update advances the output. Call it at least once per second; the
// device is commanded at period boundaries and at the on-to-off
// transition within a period.
func (p *PWM) Update(now time.Time) error {
	if !p.started || !now.Before(p.periodStart.Add(p.period)) {
		p.periodStart = now
		p.started = true
		if p.duty > 0 {
			p.active = true
			return p.device.On()
		}
		p.active = false
		return p.device.Off()
	}

	onPeriod := time.Duration(p.duty * float64(p.period))
	if p.active && !now.Before(p.periodStart.Add(onPeriod)) {
		p.active = false
		return p.device.Off()
	}
	return nil
}
