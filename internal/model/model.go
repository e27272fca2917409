package model

import "time"

// Thermostat modes as reported to the control plane. ModeUnknown is only
// ever reported, never entered: it is the state of a zone that has not
// heard from its thermostat yet.
const (
	ModeOn      = "On"
	ModePWM     = "PWM"
	ModeOff     = "Off"
	ModeStale   = "Stale"
	ModeUnknown = "Unknown"
)

// ReadingTimeLayout is the wire format for sensor reading timestamps,
// always UTC.
const ReadingTimeLayout = "2006-01-02T15:04:05.000000Z"

// Metric types accepted for sensor readings.
var SensorMetricTypes = []string{"temperature", "humidity"}

type Zone struct {
	ID          int    `json:"zone_id"`
	Name        string `json:"name"`
	BoilerRelay string `json:"boiler_relay"`
	SensorID    int    `json:"sensor_id"`
}

type Sensor struct {
	ID      int    `json:"sensor_id"`
	Name    string `json:"name"`
	Locator string `json:"locator"`
	Zone    int    `json:"zone,omitempty"`
}

// Reading is a single temperature sample from a zone's sensor.
type Reading struct {
	When time.Time
	Temp float64
}

// TemperatureSetting is an active target and when it took effect.
type TemperatureSetting struct {
	Target float64
	Since  time.Time
}

// GradientMeasurement is one observed heating rate: the inside/outside
// delta when heating began and the rate achieved in degrees C per hour.
type GradientMeasurement struct {
	When     time.Time `json:"when"`
	Delta    float64   `json:"delta"`
	Gradient float64   `json:"gradient"`
}

// GradientRow is a bucketed average served by the control plane.
type GradientRow struct {
	Delta    float64 `json:"delta"`
	Gradient float64 `json:"gradient"`
	NPoints  int     `json:"npoints"`
}

// DeviceState is the most recent state a zone device reported. Pointer
// fields are nullable on the wire.
type DeviceState struct {
	Received           time.Time `json:"received"`
	State              string    `json:"state"`
	Target             *float64  `json:"target"`
	CurrentTemp        *float64  `json:"current_temp"`
	TimeToTarget       *float64  `json:"time_to_target"`
	CurrentOutsideTemp *float64  `json:"current_outside_temp"`
	DutyCycle          *float64  `json:"dutycycle"`
}
