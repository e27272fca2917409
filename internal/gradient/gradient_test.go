package gradient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boilerio/boilerio/internal/model"
)

func TestCapturesGradientAfterWarmup(t *testing.T) {
	m := NewMonitor(60 * time.Second)
	t0 := time.Date(2023, 1, 9, 12, 0, 0, 0, time.UTC)

	m.OutsideUpdate(10)
	m.BoilerOn(t0)

	// Inside the warmup: discarded.
	assert.Nil(t, m.TemperatureUpdate(20, t0))

	// First sample after warmup opens the window.
	assert.Nil(t, m.TemperatureUpdate(21, t0.Add(120*time.Second)))

	// Window closes 20 minutes later: +2C over 20 min is 6C/h.
	meas := m.TemperatureUpdate(23, t0.Add(1320*time.Second))
	require.NotNil(t, meas)
	assert.Equal(t, 11.0, meas.Delta)
	assert.InDelta(t, 6.0, meas.Gradient, 1e-9)
	assert.True(t, meas.When.Equal(t0.Add(1320*time.Second)))
}

func TestLongBurnYieldsRepeatedMeasurements(t *testing.T) {
	m := NewMonitor(60 * time.Second)
	t0 := time.Date(2023, 1, 9, 12, 0, 0, 0, time.UTC)

	m.OutsideUpdate(10)
	m.BoilerOn(t0)

	require.Nil(t, m.TemperatureUpdate(20, t0.Add(2*time.Minute)))
	require.NotNil(t, m.TemperatureUpdate(21, t0.Add(13*time.Minute)))

	// Still burning: the next sample opens a fresh window immediately.
	require.Nil(t, m.TemperatureUpdate(21, t0.Add(14*time.Minute)))
	meas := m.TemperatureUpdate(22, t0.Add(25*time.Minute))
	require.NotNil(t, meas)
	assert.Equal(t, 11.0, meas.Delta)
}

func TestNoMeasurementWithoutOutsideTemp(t *testing.T) {
	m := NewMonitor(60 * time.Second)
	t0 := time.Date(2023, 1, 9, 12, 0, 0, 0, time.UTC)

	m.BoilerOn(t0)
	assert.Nil(t, m.TemperatureUpdate(20, t0.Add(2*time.Minute)))
	assert.Nil(t, m.TemperatureUpdate(23, t0.Add(30*time.Minute)))
}

func TestNoMeasurementWhileBoilerOff(t *testing.T) {
	m := NewMonitor(60 * time.Second)
	t0 := time.Date(2023, 1, 9, 12, 0, 0, 0, time.UTC)

	m.OutsideUpdate(10)
	assert.Nil(t, m.TemperatureUpdate(20, t0))
	assert.Nil(t, m.TemperatureUpdate(23, t0.Add(30*time.Minute)))
}

func TestBoilerOffAbandonsCapture(t *testing.T) {
	m := NewMonitor(60 * time.Second)
	t0 := time.Date(2023, 1, 9, 12, 0, 0, 0, time.UTC)

	m.OutsideUpdate(10)
	m.BoilerOn(t0)
	require.Nil(t, m.TemperatureUpdate(20, t0.Add(2*time.Minute)))

	m.BoilerOff()
	m.BoilerOn(t0.Add(5 * time.Minute))

	// The earlier window is gone; this sample only reopens one.
	assert.Nil(t, m.TemperatureUpdate(23, t0.Add(20*time.Minute)))
}

func TestBoilerOnKeepsOriginalTime(t *testing.T) {
	m := NewMonitor(10 * time.Minute)
	t0 := time.Date(2023, 1, 9, 12, 0, 0, 0, time.UTC)

	m.OutsideUpdate(10)
	m.BoilerOn(t0)
	m.BoilerOn(t0.Add(9 * time.Minute))

	// Warmup counts from the first on, so this sample is past it.
	assert.Nil(t, m.TemperatureUpdate(20, t0.Add(11*time.Minute)))
	meas := m.TemperatureUpdate(21, t0.Add(22*time.Minute))
	assert.NotNil(t, meas)
}

func TestHandleRelayInfo(t *testing.T) {
	m := NewMonitor(time.Minute)
	t0 := time.Date(2023, 1, 9, 12, 0, 0, 0, time.UTC)
	m.OutsideUpdate(10)

	m.HandleRelayInfo([]byte(`{"cmd": "ON"}`), t0)
	assert.True(t, m.boilerOn)

	m.HandleRelayInfo([]byte(`not json`), t0)
	assert.True(t, m.boilerOn)

	m.HandleRelayInfo([]byte(`{"cmd": "OFF"}`), t0)
	assert.False(t, m.boilerOn)
}

func TestRelayTopic(t *testing.T) {
	topic, err := RelayTopic("heating.info", "7")
	require.NoError(t, err)
	assert.Equal(t, "heating.info/0x7", topic)

	topic, err = RelayTopic("heating.info", "0x1a")
	require.NoError(t, err)
	assert.Equal(t, "heating.info/0x1A", topic)

	_, err = RelayTopic("heating.info", "kitchen")
	assert.Error(t, err)
}

func TestTimeToTargetUsesNearestDelta(t *testing.T) {
	table := []model.GradientRow{
		{Delta: 5, Gradient: 1.0, NPoints: 3},
		{Delta: 8, Gradient: 2.0, NPoints: 1},
	}
	reading := model.Reading{When: time.Now(), Temp: 15}

	// delta_t = 15-5 = 10: nearest row is 8, gradient 2C/h, 5C to heat.
	d := TimeToTarget(table, reading, 5, 20)
	require.NotNil(t, d)
	assert.Equal(t, 150*time.Minute, *d)

	// delta_t = 15-9 = 6: nearest row is 5, gradient 1C/h.
	d = TimeToTarget(table, reading, 9, 20)
	require.NotNil(t, d)
	assert.Equal(t, 5*time.Hour, *d)
}

func TestTimeToTargetEmptyTable(t *testing.T) {
	reading := model.Reading{When: time.Now(), Temp: 15}
	assert.Nil(t, TimeToTarget(nil, reading, 5, 20))
}

func TestTimeToTargetTieKeepsFirstRow(t *testing.T) {
	table := []model.GradientRow{
		{Delta: 4, Gradient: 1.0},
		{Delta: 6, Gradient: 2.0},
	}
	reading := model.Reading{When: time.Now(), Temp: 15}

	// delta_t = 5 ties both rows; the earlier one wins.
	d := TimeToTarget(table, reading, 10, 20)
	require.NotNil(t, d)
	assert.Equal(t, 5*time.Hour, *d)
}

func TestTimeToTargetUnusableGradient(t *testing.T) {
	table := []model.GradientRow{{Delta: 5, Gradient: 0}}
	reading := model.Reading{When: time.Now(), Temp: 15}
	assert.Nil(t, TimeToTarget(table, reading, 10, 20))
}
