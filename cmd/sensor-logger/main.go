// The sensor-logger bridges temperature readings from the message bus
// into the scheduler service's readings store, so history survives
// controller restarts.
package main

import (
	"github.com/rs/zerolog/log"

	"github.com/boilerio/boilerio/internal/config"
	"github.com/boilerio/boilerio/internal/env"
	"github.com/boilerio/boilerio/internal/logging"
	"github.com/boilerio/boilerio/internal/model"
	"github.com/boilerio/boilerio/internal/mqtt"
	"github.com/boilerio/boilerio/internal/scheduler"
	"github.com/boilerio/boilerio/internal/sensor"
	"github.com/boilerio/boilerio/system/shutdown"
	"github.com/boilerio/boilerio/system/startup"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)
	env.Cfg = &cfg
	cfg.ValidateController()

	client := scheduler.NewClient(cfg.Scheduler.URL, cfg.Scheduler.DeviceID, cfg.Scheduler.DeviceSecret)
	cache := scheduler.NewCache(cfg.CacheFile)
	_, sensors, err := startup.LoadInventory(client, cache)
	if err != nil {
		shutdown.WithError(err, "Cannot determine sensor inventory")
	}

	conn, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		shutdown.WithError(err, "Cannot reach the MQTT broker")
	}
	defer conn.Disconnect()

	bound := 0
	for _, s := range sensors {
		binding, err := sensor.Bind(conn, s.ID, s.Locator)
		if err != nil {
			log.Warn().Err(err).Int("sensor", s.ID).Msg("Failed to bind sensor; skipping")
			continue
		}
		id := s.ID
		binding.AddCallback(func(r model.Reading) {
			if err := client.PostReading(id, r); err != nil {
				log.Warn().Err(err).Int("sensor", id).Msg("Failed to record reading")
			}
		})
		bound++
	}
	if bound == 0 {
		log.Warn().Msg("No sensors bound; nothing will be recorded")
	}

	log.Info().Int("sensors", bound).Msg("Logging sensor readings")
	<-shutdown.Context().Done()
	log.Info().Msg("Sensor logger stopped")
}
