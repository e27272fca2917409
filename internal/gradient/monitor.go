// Package gradient learns how fast zones heat and turns that knowledge
// into time-to-target estimates.
package gradient

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/boilerio/boilerio/internal/model"
)

const (
	// Heating output is unstable right after the burner lights; samples
	// inside the warmup are discarded.
	DefaultWarmup = 10 * time.Minute

	// Window over which the heating rate is averaged.
	measureInterval = 10 * time.Minute
)

type phase int

const (
	captureFirst phase = iota
	captureInterval
)

// Monitor observes one zone's temperature while the boiler burns and
// emits a gradient measurement per completed window. It is not safe for
// concurrent use; the zone controller serializes access.
type Monitor struct {
	warmup time.Duration

	boilerOn bool
	onAt     time.Time
	outside  *float64

	phase     phase
	firstTemp float64
	firstAt   time.Time
}

func NewMonitor(warmup time.Duration) *Monitor {
	if warmup <= 0 {
		warmup = DefaultWarmup
	}
	return &Monitor{warmup: warmup}
}

// BoilerOn records when heating began. Repeated calls while already on
// keep the original time.
func (m *Monitor) BoilerOn(when time.Time) {
	if m.boilerOn {
		return
	}
	m.boilerOn = true
	m.onAt = when
	m.phase = captureFirst
}

// BoilerOff abandons any capture in progress.
func (m *Monitor) BoilerOff() {
	m.boilerOn = false
	m.phase = captureFirst
}

// OutsideUpdate records the latest outdoor temperature. Without one no
// measurements are taken: the inside/outside delta is the table key.
func (m *Monitor) OutsideUpdate(temp float64) {
	m.outside = &temp
}

// TemperatureUpdate feeds one sensor sample. It returns a measurement
// when a capture window completes, nil otherwise. A long burn yields a
// measurement roughly every window.
func (m *Monitor) TemperatureUpdate(temp float64, when time.Time) *model.GradientMeasurement {
	if !m.boilerOn || m.outside == nil {
		return nil
	}

	switch m.phase {
	case captureFirst:
		if when.Sub(m.onAt) > m.warmup {
			m.firstTemp = temp
			m.firstAt = when
			m.phase = captureInterval
		}
	case captureInterval:
		if elapsed := when.Sub(m.firstAt); elapsed > measureInterval {
			meas := &model.GradientMeasurement{
				When:     when,
				Delta:    m.firstTemp - *m.outside,
				Gradient: (temp - m.firstTemp) / elapsed.Hours(),
			}
			m.phase = captureFirst
			return meas
		}
	}
	return nil
}

// RelayTopic returns the bridge's info topic for a relay: the base topic
// plus the relay number in uppercase hex ("7" becomes base+"/0x7").
func RelayTopic(base, relay string) (string, error) {
	n, err := strconv.ParseInt(relay, 0, 64)
	if err != nil {
		return "", fmt.Errorf("relay id %q: %w", relay, err)
	}
	return fmt.Sprintf("%s/0x%X", base, n), nil
}

// HandleRelayInfo interprets a bridge info payload, tracking the burner
// state. Malformed payloads are logged and dropped.
func (m *Monitor) HandleRelayInfo(payload []byte, now time.Time) {
	var msg struct {
		Cmd string `json:"cmd"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Warn().Err(err).Msg("Ignoring malformed relay info payload")
		return
	}
	switch msg.Cmd {
	case "ON":
		m.BoilerOn(now)
	case "OFF":
		m.BoilerOff()
	}
}
