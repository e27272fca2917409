// Package pid implements the PID controller that turns a zone's
// temperature error into a boiler duty cycle.
package pid

import "math"

// Gains tuned for slow hydronic zones.
const (
	DefaultKp = 2.8
	DefaultKi = 0.3
	DefaultKd = 1.8

	// Outputs below this are rounded down to zero: duty cycles that
	// short don't usefully fire the boiler.
	DefaultMinOutput = 0.15
)

type Controller struct {
	Setpoint  float64
	Kp        float64
	Ki        float64
	Kd        float64
	MinOutput float64

	// Last proportional and derivative contributions, retained for
	// logging.
	LastProp float64
	LastDiff float64

	integral float64
	lastPV   float64
	havePV   bool
}

func New(setpoint, kp, ki, kd float64) *Controller {
	return &Controller{
		Setpoint:  setpoint,
		Kp:        kp,
		Ki:        ki,
		Kd:        kd,
		MinOutput: DefaultMinOutput,
	}
}

func NewDefault(setpoint float64) *Controller {
	return New(setpoint, DefaultKp, DefaultKi, DefaultKd)
}

// Update advances the controller with a new process value and returns the
// duty cycle to apply, in [0, 1].
func (c *Controller) Update(pv float64) float64 {
	if !c.havePV {
		c.lastPV = pv
		c.havePV = true
	}

	err := c.Setpoint - pv

	c.integral += c.Ki * err
	if c.integral > 1 {
		c.integral = 1
	} else if c.integral < -1 {
		c.integral = -1
	}

	// The derivative acts on the process value rather than the error so
	// that a setpoint step does not spike the output.
	diff := pv - c.lastPV

	c.LastProp = c.Kp * err
	c.LastDiff = c.Kd * diff
	c.lastPV = pv

	out := c.LastProp + c.integral - c.LastDiff
	if out < c.MinOutput {
		return 0
	}
	return math.Min(out, 1)
}

// Reset installs a new setpoint and clears the accumulated terms. The
// previous process value is kept so the derivative stays continuous
// across a setpoint change.
func (c *Controller) Reset(setpoint float64) {
	c.Setpoint = setpoint
	c.integral = 0
	c.LastProp = 0
	c.LastDiff = 0
}
