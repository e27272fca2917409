package main

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/boilerio/boilerio/internal/boiler"
	"github.com/boilerio/boilerio/internal/config"
	"github.com/boilerio/boilerio/internal/datadog"
	"github.com/boilerio/boilerio/internal/env"
	"github.com/boilerio/boilerio/internal/gradient"
	"github.com/boilerio/boilerio/internal/logging"
	"github.com/boilerio/boilerio/internal/mqtt"
	"github.com/boilerio/boilerio/internal/notifications"
	"github.com/boilerio/boilerio/internal/scheduler"
	"github.com/boilerio/boilerio/internal/sensor"
	"github.com/boilerio/boilerio/internal/weather"
	"github.com/boilerio/boilerio/internal/zonecontroller"
	"github.com/boilerio/boilerio/system/shutdown"
	"github.com/boilerio/boilerio/system/startup"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)
	env.Cfg = &cfg
	cfg.ValidateController()

	log.Info().
		Str("scheduler", cfg.Scheduler.URL).
		Msg("Starting boiler controller")

	datadog.InitMetrics()
	notifications.Init()

	client := scheduler.NewClient(cfg.Scheduler.URL, cfg.Scheduler.DeviceID, cfg.Scheduler.DeviceSecret)
	cache := scheduler.NewCache(cfg.CacheFile)
	zones, sensors, err := startup.LoadInventory(client, cache)
	if err != nil {
		shutdown.WithError(err, "Cannot determine zone inventory")
	}

	conn, err := mqtt.ConnectDevice(cfg.MQTT, cfg.Scheduler.DeviceID, cfg.Topics.Status)
	if err != nil {
		shutdown.WithError(err, "Cannot reach the MQTT broker")
	}
	defer conn.Disconnect()

	var ws zonecontroller.WeatherSource
	if cfg.Weather.APIKey != "" && cfg.Weather.Location != "" {
		ws = weather.NewCaching(
			weather.NewClient(cfg.Weather.APIKey, cfg.Weather.Location),
			weather.DefaultCacheTime)
	} else {
		log.Warn().Msg("No weather configured; time-to-target estimates disabled")
	}

	commander := boiler.NewCommander(conn, cfg.Topics.DemandRequest)
	sensorsByID := startup.SensorsByID(sensors)
	warmup := time.Duration(cfg.GradientWarmupSeconds) * time.Second

	var controllers []*zonecontroller.ZoneController
	for _, z := range zones {
		zc := zonecontroller.New(z, client, ws, commander.Relay(z.BoilerRelay), warmup)

		s, ok := sensorsByID[z.SensorID]
		if !ok {
			log.Warn().
				Int("zone", z.ID).
				Int("sensor", z.SensorID).
				Msg("Zone has no known sensor; it will stay in fail-safe")
		} else {
			binding, err := sensor.Bind(conn, s.ID, s.Locator)
			if err != nil {
				shutdown.WithError(err, "Failed to bind sensor")
			}
			binding.AddCallback(zc.OnReading)
		}

		infoTopic, err := gradient.RelayTopic(cfg.Topics.InfoBase, z.BoilerRelay)
		if err != nil {
			log.Warn().
				Err(err).
				Int("zone", z.ID).
				Msg("Cannot watch relay state; gradient capture disabled")
		} else {
			err := conn.Subscribe(infoTopic, func(_ string, payload []byte) {
				zc.OnRelayInfo(payload, time.Now())
			})
			if err != nil {
				shutdown.WithError(err, "Failed to subscribe to relay info")
			}
		}

		controllers = append(controllers, zc)
	}

	loop := zonecontroller.NewScheduler(client, controllers)
	if err := loop.BindTriggers(conn, cfg.Topics.ScheduleChange, cfg.Topics.Status); err != nil {
		shutdown.WithError(err, "Failed to subscribe to schedule triggers")
	}

	loop.Run(shutdown.Context())
	log.Info().Msg("Boiler controller stopped")
}
