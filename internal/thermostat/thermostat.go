// Package thermostat drives one zone's boiler demand from its sensor
// readings and target temperature.
package thermostat

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/boilerio/boilerio/internal/model"
	"github.com/boilerio/boilerio/internal/pid"
	"github.com/boilerio/boilerio/internal/pwm"
)

const (
	// Readings older than this are not trusted to drive the boiler.
	StalePeriod = 10 * time.Minute

	// How often the PID is consulted for a fresh duty cycle while
	// proportioning.
	MeasurementPeriod = 10 * time.Minute

	// Width of the comfort band centred on the target. Below the band
	// the boiler runs flat out; inside it the PWM proportions; above it
	// the boiler is off.
	BandWidth = 0.6
)

// State is the externally visible condition of the thermostat.
type State struct {
	Mode string
	Duty float64
}

// Thermostat regulates one zone. It is not safe for concurrent use; the
// owner serializes ticks and reading updates.
type Thermostat struct {
	device pwm.Device
	pid    *pid.Controller
	pwm    *pwm.PWM

	target  *model.TemperatureSetting
	reading *model.Reading

	windowStart   time.Time
	windowStarted bool

	state    State
	onChange func(State)
}

// New creates a thermostat driving the given device. onChange, if not
// nil, is called whenever the mode or duty cycle changes.
func New(device pwm.Device, onChange func(State)) *Thermostat {
	return &Thermostat{
		device:   device,
		pid:      pid.NewDefault(0),
		pwm:      pwm.New(pwm.DefaultPeriod, device),
		state:    State{Mode: model.ModeStale, Duty: 0},
		onChange: onChange,
	}
}

// SetTarget installs a new target temperature. Setting the current target
// again is a no-op; a real change resets the PID.
func (t *Thermostat) SetTarget(target float64, now time.Time) {
	if t.target != nil && t.target.Target == target {
		return
	}
	t.target = &model.TemperatureSetting{Target: target, Since: now}
	t.pid.Reset(target)
	log.Info().Float64("target", target).Msg("Thermostat target changed")
}

// ClearTarget drops the active target. With no target the next Tick
// fails safe and commands the boiler off.
func (t *Thermostat) ClearTarget() {
	if t.target == nil {
		return
	}
	t.target = nil
	log.Info().Msg("Thermostat target cleared")
}

// Target returns the active setting, nil before the first SetTarget.
func (t *Thermostat) Target() *model.TemperatureSetting {
	return t.target
}

// UpdateReading records the newest sensor sample.
func (t *Thermostat) UpdateReading(r model.Reading) {
	t.reading = &r
}

// Reading returns the newest sensor sample, nil before the first.
func (t *Thermostat) Reading() *model.Reading {
	return t.reading
}

func (t *Thermostat) State() State {
	return t.state
}

// IsHeating reports whether the zone is heating flat out.
func (t *Thermostat) IsHeating() bool {
	return t.state.Mode == model.ModeOn
}

// Tick evaluates the control loop. Call it about once a second; device
// errors are returned but leave the control state advanced so the next
// tick retries.
func (t *Thermostat) Tick(now time.Time) error {
	// Fail safe: without a fresh reading and a target, keep the boiler
	// off no matter what.
	if t.reading == nil || t.target == nil || t.reading.When.Before(now.Add(-StalePeriod)) {
		t.setState(State{Mode: model.ModeStale, Duty: 0})
		return t.device.Off()
	}

	temp := t.reading.Temp
	min := t.target.Target - BandWidth/2
	max := t.target.Target + BandWidth/2

	switch {
	case temp < min:
		t.setState(State{Mode: model.ModeOn, Duty: 1})
		return t.device.On()

	case temp <= max:
		if !t.windowStarted || t.windowStart.Add(MeasurementPeriod).Before(now) {
			t.windowStart = now
			t.windowStarted = true
			duty := t.pid.Update(temp)
			if err := t.pwm.SetDutyCycle(duty); err != nil {
				return err
			}
			log.Debug().
				Float64("temp", temp).
				Float64("duty", duty).
				Float64("p", t.pid.LastProp).
				Float64("d", t.pid.LastDiff).
				Msg("New duty cycle from PID")
		}
		t.setState(State{Mode: model.ModePWM, Duty: t.pwm.DutyCycle()})
		return t.pwm.Update(now)

	default:
		t.setState(State{Mode: model.ModeOff, Duty: 0})
		return t.device.Off()
	}
}

func (t *Thermostat) setState(s State) {
	if s == t.state {
		return
	}
	t.state = s
	if t.onChange != nil {
		t.onChange(s)
	}
}
