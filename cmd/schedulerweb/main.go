package main

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/rs/zerolog/log"

	"github.com/boilerio/boilerio/db"
	"github.com/boilerio/boilerio/internal/config"
	"github.com/boilerio/boilerio/internal/env"
	"github.com/boilerio/boilerio/internal/logging"
	"github.com/boilerio/boilerio/internal/mqtt"
	"github.com/boilerio/boilerio/internal/schedulerweb"
	"github.com/boilerio/boilerio/system/shutdown"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)
	env.Cfg = &cfg
	cfg.ValidateWeb()

	log.Info().
		Str("database", cfg.DatabaseFile).
		Msg("Starting scheduler service")

	dbConn, err := db.Open(cfg.DatabaseFile)
	if err != nil {
		shutdown.WithError(err, "Failed to open database")
	}
	defer dbConn.Close()
	if err := db.Migrate(dbConn); err != nil {
		shutdown.WithError(err, "Failed to migrate database")
	}

	// A broker connection is optional here: without one, controllers just
	// wait for their next poll instead of being nudged about edits.
	var notify schedulerweb.NotifyFunc
	if cfg.MQTT.Host != "" {
		conn, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn().Err(err).Msg("MQTT unavailable; schedule change notifications disabled")
		} else {
			defer conn.Disconnect()
			topic := cfg.Topics.ScheduleChange
			notify = func() {
				if err := conn.Publish(topic, nil); err != nil {
					log.Warn().Err(err).Msg("Failed to publish schedule change notification")
				}
			}
		}
	}

	server := schedulerweb.New(dbConn, notify)
	log.Info().Str("addr", cfg.ListenAddr).Msg("Scheduler service listening")
	err = http.ListenAndServe(cfg.ListenAddr,
		handlers.CombinedLoggingHandler(os.Stdout, server.Router()))
	shutdown.WithError(err, "HTTP server failed")
}
