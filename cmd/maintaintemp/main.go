// maintaintemp runs one thermostat at a fixed target against the message
// bus alone: no scheduler service, no weather, no learning. Useful for
// bring-up and for rooms that never change temperature.
package main

import (
	"flag"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/boilerio/boilerio/internal/boiler"
	"github.com/boilerio/boilerio/internal/config"
	"github.com/boilerio/boilerio/internal/env"
	"github.com/boilerio/boilerio/internal/logging"
	"github.com/boilerio/boilerio/internal/model"
	"github.com/boilerio/boilerio/internal/mqtt"
	"github.com/boilerio/boilerio/internal/sensor"
	"github.com/boilerio/boilerio/internal/thermostat"
	"github.com/boilerio/boilerio/system/shutdown"
)

func main() {
	var sensorTopic, relay string
	var target float64
	flag.StringVar(&sensorTopic, "sensor-topic", "", "Bus topic carrying the sensor's readings")
	flag.StringVar(&relay, "relay", "", "Boiler relay ID to drive")
	flag.Float64Var(&target, "target", 19, "Target temperature in degrees C")

	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)
	env.Cfg = &cfg
	cfg.ValidateMQTT()
	if sensorTopic == "" || relay == "" {
		log.Error().Msg("Both -sensor-topic and -relay are required")
		flag.Usage()
		return
	}

	conn, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		shutdown.WithError(err, "Cannot reach the MQTT broker")
	}
	defer conn.Disconnect()

	commander := boiler.NewCommander(conn, cfg.Topics.DemandRequest)

	// The thermostat itself is single-threaded; readings arrive on the
	// bus client's goroutine and ticks on ours.
	var mu sync.Mutex
	th := thermostat.New(commander.Relay(relay), func(s thermostat.State) {
		log.Info().Str("mode", s.Mode).Float64("duty", s.Duty).Msg("State changed")
	})
	th.SetTarget(target, time.Now())

	binding, err := sensor.Bind(conn, 0, sensorTopic)
	if err != nil {
		shutdown.WithError(err, "Failed to bind sensor")
	}
	binding.AddCallback(func(r model.Reading) {
		mu.Lock()
		defer mu.Unlock()
		th.UpdateReading(r)
	})

	log.Info().
		Str("relay", relay).
		Float64("target", target).
		Msg("Maintaining temperature")

	ctx := shutdown.Context()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping")
			return
		case now := <-ticker.C:
			mu.Lock()
			if err := th.Tick(now); err != nil {
				log.Warn().Err(err).Msg("Failed to update boiler demand")
			}
			mu.Unlock()
		}
	}
}
