package zonecontroller

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/boilerio/boilerio/internal/datadog"
	"github.com/boilerio/boilerio/internal/gradient"
	"github.com/boilerio/boilerio/internal/model"
	"github.com/boilerio/boilerio/internal/notifications"
	"github.com/boilerio/boilerio/internal/pwm"
	"github.com/boilerio/boilerio/internal/schedule"
	"github.com/boilerio/boilerio/internal/scheduler"
	"github.com/boilerio/boilerio/internal/thermostat"
	"github.com/boilerio/boilerio/internal/weather"
)

const gradientRefreshInterval = time.Hour

// SchedulerAPI is the slice of the scheduler service a single zone talks to.
type SchedulerAPI interface {
	Gradients(zone int) ([]model.GradientRow, error)
	PostGradient(zone int, m model.GradientMeasurement) error
	PostReportedState(zone int, s scheduler.ReportedState) error
}

// WeatherSource provides the current outside conditions.
type WeatherSource interface {
	GetWeather(now time.Time) (*weather.Weather, error)
}

// reportedView mirrors what the scheduler service last heard about this
// zone. Fields are folded in with change detection so a report only goes
// up when something the user can see has moved.
type reportedView struct {
	state              string
	target             *float64
	currentTemp        *float64
	currentOutsideTemp *float64
	dutyCycle          float64
	targetOverridden   bool
}

// ZoneController drives one heating zone: it applies the programme's
// target to the thermostat, feeds it sensor readings, collects heating
// rate measurements and reports state upstream.
type ZoneController struct {
	zone    model.Zone
	api     SchedulerAPI
	weather WeatherSource

	// mu serializes control iterations against sensor and relay
	// callbacks arriving from the bus.
	mu         sync.Mutex
	thermostat *thermostat.Thermostat
	monitor    *gradient.Monitor

	lastReading *model.Reading

	gradientTable     []model.GradientRow
	gradientFetchedAt time.Time
	hasGradients      bool

	reported reportedView
	dirty    bool
}

// New returns a controller for zone. The weather source may be nil when
// no outside temperature is available; gradient collection and cooldown
// estimates are skipped in that case.
func New(zone model.Zone, api SchedulerAPI, ws WeatherSource, device pwm.Device, warmup time.Duration) *ZoneController {
	zc := &ZoneController{
		zone:     zone,
		api:      api,
		weather:  ws,
		monitor:  gradient.NewMonitor(warmup),
		reported: reportedView{state: model.ModeUnknown},
		dirty:    true,
	}
	zc.thermostat = thermostat.New(device, zc.onThermostatChange)
	return zc
}

// Zone returns the zone this controller drives.
func (zc *ZoneController) Zone() model.Zone {
	return zc.zone
}

// onThermostatChange runs with zc.mu already held, from within Tick.
func (zc *ZoneController) onThermostatChange(s thermostat.State) {
	prev := zc.reported.state
	zc.reported.state = s.Mode
	zc.reported.dutyCycle = s.Duty
	zc.dirty = true

	log.Info().
		Int("zone", zc.zone.ID).
		Str("mode", s.Mode).
		Float64("duty", s.Duty).
		Msg("Zone state changed")

	if s.Mode == model.ModeStale && prev != model.ModeStale {
		if err := notifications.Send(
			fmt.Sprintf("%s sensor offline", zc.zone.Name),
			"No recent temperature readings; heating in this zone is off until the sensor recovers."); err != nil {
			log.Debug().Err(err).Msg("Stale sensor notification failed")
		}
	}
	if prev == model.ModeStale && s.Mode != model.ModeStale {
		if err := notifications.Send(
			fmt.Sprintf("%s sensor recovered", zc.zone.Name),
			"Temperature readings are arriving again."); err != nil {
			log.Debug().Err(err).Msg("Sensor recovery notification failed")
		}
	}
}

// OnReading handles a fresh temperature reading from the zone's sensor.
func (zc *ZoneController) OnReading(r model.Reading) {
	zc.mu.Lock()
	defer zc.mu.Unlock()

	if zc.reported.currentTemp == nil || *zc.reported.currentTemp != r.Temp {
		temp := r.Temp
		zc.reported.currentTemp = &temp
		zc.dirty = true
	}
	zc.lastReading = &r
	zc.thermostat.UpdateReading(r)

	if m := zc.monitor.TemperatureUpdate(r.Temp, r.When); m != nil {
		if err := zc.api.PostGradient(zc.zone.ID, *m); err != nil {
			log.Warn().
				Err(err).
				Int("zone", zc.zone.ID).
				Msg("Failed to record heating gradient")
		} else {
			log.Debug().
				Int("zone", zc.zone.ID).
				Float64("gradient", m.Gradient).
				Float64("delta", m.Delta).
				Msg("Recorded heating gradient")
		}
	}
}

// OnRelayInfo handles a status report from the zone's boiler relay.
func (zc *ZoneController) OnRelayInfo(payload []byte, now time.Time) {
	zc.mu.Lock()
	defer zc.mu.Unlock()
	zc.monitor.HandleRelayInfo(payload, now)
}

// Iteration runs one control cycle against the current programme.
func (zc *ZoneController) Iteration(policy *schedule.FullSchedule, now time.Time) {
	zc.mu.Lock()
	defer zc.mu.Unlock()

	target, ok := policy.Target(now, zc.zone.ID)
	overridden := policy.TargetOverridden(now, zc.zone.ID)
	if zc.reported.targetOverridden != overridden {
		zc.reported.targetOverridden = overridden
		zc.dirty = true
	}

	if ok {
		current := zc.thermostat.Target()
		if current == nil || current.Target != target {
			log.Info().
				Int("zone", zc.zone.ID).
				Float64("target", target).
				Msg("Applying target temperature")
			zc.thermostat.SetTarget(target, now)
			t := target
			zc.reported.target = &t
			zc.dirty = true
		}
	} else if zc.thermostat.Target() != nil {
		log.Info().
			Int("zone", zc.zone.ID).
			Msg("Programme no longer names this zone; heating off")
		zc.thermostat.ClearTarget()
		zc.reported.target = nil
		zc.dirty = true
	}

	if !zc.hasGradients || zc.gradientFetchedAt.Add(gradientRefreshInterval).Before(now) {
		rows, err := zc.api.Gradients(zc.zone.ID)
		if err != nil {
			log.Warn().
				Err(err).
				Int("zone", zc.zone.ID).
				Msg("Failed to fetch gradient table")
		} else {
			zc.gradientTable = rows
			zc.gradientFetchedAt = now
			zc.hasGradients = true
		}
	}

	if err := zc.thermostat.Tick(now); err != nil {
		log.Warn().
			Err(err).
			Int("zone", zc.zone.ID).
			Msg("Failed to update boiler demand")
	}

	if zc.weather != nil {
		w, err := zc.weather.GetWeather(now)
		if err != nil {
			log.Debug().Err(err).Msg("No outside temperature available")
		} else {
			if zc.reported.currentOutsideTemp == nil || *zc.reported.currentOutsideTemp != w.Temperature {
				temp := w.Temperature
				zc.reported.currentOutsideTemp = &temp
				zc.dirty = true
			}
			zc.monitor.OutsideUpdate(w.Temperature)
		}
	}

	if zc.dirty {
		zc.report()
	}
	zc.emitGauges()
}

// report uploads the zone's state. The dirty flag stays set on failure so
// the next iteration retries.
func (zc *ZoneController) report() {
	s := scheduler.ReportedState{
		State:              zc.reported.state,
		Target:             zc.reported.target,
		CurrentTemp:        zc.reported.currentTemp,
		CurrentOutsideTemp: zc.reported.currentOutsideTemp,
		DutyCycle:          zc.reported.dutyCycle,
		TargetOverridden:   zc.reported.targetOverridden,
	}
	if d := zc.timeToTarget(); d != nil {
		secs := d.Seconds()
		s.TimeToTarget = &secs
	}

	if err := zc.api.PostReportedState(zc.zone.ID, s); err != nil {
		log.Warn().
			Err(err).
			Int("zone", zc.zone.ID).
			Msg("Failed to report zone state")
		return
	}
	zc.dirty = false
}

// timeToTarget estimates how long until the zone reaches its target, or
// nil when the zone is not heating towards one.
func (zc *ZoneController) timeToTarget() *time.Duration {
	if !zc.thermostat.IsHeating() {
		return nil
	}
	if zc.lastReading == nil || zc.reported.currentOutsideTemp == nil {
		return nil
	}
	target := zc.thermostat.Target()
	if target == nil || target.Target < zc.lastReading.Temp {
		return nil
	}
	return gradient.TimeToTarget(
		zc.gradientTable, *zc.lastReading, *zc.reported.currentOutsideTemp, target.Target)
}

func (zc *ZoneController) emitGauges() {
	tag := fmt.Sprintf("zone:%s", zc.zone.Name)
	if zc.reported.currentTemp != nil {
		datadog.Gauge("zone.temperature", *zc.reported.currentTemp, "component:sensor", tag)
	}
	if zc.reported.target != nil {
		datadog.Gauge("zone.target", *zc.reported.target, tag)
	}
	datadog.Gauge("zone.dutycycle", zc.reported.dutyCycle, tag)
	heating := 0.0
	if zc.thermostat.IsHeating() {
		heating = 1
	}
	datadog.Gauge("zone.heating", heating, tag)
	if zc.reported.currentOutsideTemp != nil {
		datadog.Gauge("weather.outside_temp", *zc.reported.currentOutsideTemp)
	}
}
