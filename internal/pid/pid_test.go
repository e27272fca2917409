package pid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstUpdateHasNoDerivative(t *testing.T) {
	c := NewDefault(20)

	out := c.Update(19)

	// err=1: P=2.8, I=0.3, D=0 on the first sample, clamped to 1.
	assert.Equal(t, 1.0, out)
	assert.Equal(t, 0.0, c.LastDiff)
	assert.InDelta(t, 2.8, c.LastProp, 1e-9)
}

func TestSmallOutputsSuppressed(t *testing.T) {
	c := NewDefault(20)
	c.Update(20) // seed the process value

	// err=0.03: P=0.084, I accumulates 0.009+0.009, D=0.
	c.Update(19.97)
	out := c.Update(19.97)

	assert.Less(t, 0.084+0.018, DefaultMinOutput)
	assert.Equal(t, 0.0, out)
}

func TestIntegralClamped(t *testing.T) {
	c := NewDefault(20)

	for i := 0; i < 10; i++ {
		c.Update(10)
	}

	assert.InDelta(t, 1.0, c.integral, 1e-9)
	assert.Equal(t, 1.0, c.Update(10))

	// Symmetric clamp on the low side.
	c.Reset(20)
	for i := 0; i < 10; i++ {
		c.Update(30)
	}
	assert.InDelta(t, -1.0, c.integral, 1e-9)
}

func TestDerivativeTracksProcessValue(t *testing.T) {
	c := NewDefault(20)
	c.Update(19)
	c.Update(19.5)

	assert.InDelta(t, DefaultKd*0.5, c.LastDiff, 1e-9)
}

func TestOutputNeverAboveOne(t *testing.T) {
	c := NewDefault(25)

	assert.Equal(t, 1.0, c.Update(5))
}

func TestOverTemperatureGivesZero(t *testing.T) {
	c := NewDefault(20)
	c.Update(20)

	assert.Equal(t, 0.0, c.Update(22))
}

func TestResetKeepsProcessValue(t *testing.T) {
	c := NewDefault(20)
	c.Update(19)
	c.Update(19.4)

	c.Reset(22)

	assert.Equal(t, 22.0, c.Setpoint)
	assert.Equal(t, 0.0, c.integral)
	assert.Equal(t, 0.0, c.LastProp)
	assert.Equal(t, 0.0, c.LastDiff)

	// The next update should see the derivative from the retained
	// process value, not a first-sample zero.
	c.Update(19.9)
	assert.InDelta(t, DefaultKd*0.5, c.LastDiff, 1e-9)
}
