// Package startup bootstraps a controller's view of the world: which
// zones exist and which sensors feed them.
package startup

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/boilerio/boilerio/internal/model"
	"github.com/boilerio/boilerio/internal/scheduler"
)

// Inventory is the source of zone and sensor configuration.
type Inventory interface {
	Zones() ([]model.Zone, error)
	Sensors() ([]model.Sensor, error)
}

// LoadInventory fetches the zone and sensor inventory from the scheduler
// service and refreshes the local cache. When the service is unreachable
// the cached copy from a previous run is used instead; a controller that
// has neither cannot safely drive any relays and gets an error.
func LoadInventory(inv Inventory, cache *scheduler.Cache) ([]model.Zone, []model.Sensor, error) {
	zones, err := inv.Zones()
	if err == nil {
		var sensors []model.Sensor
		sensors, err = inv.Sensors()
		if err == nil {
			if err := cache.Save(zones, sensors); err != nil {
				log.Warn().Err(err).Msg("Failed to update inventory cache")
			}
			log.Info().
				Int("zones", len(zones)).
				Int("sensors", len(sensors)).
				Msg("Loaded inventory from scheduler service")
			return zones, sensors, nil
		}
	}

	log.Warn().Err(err).Msg("Scheduler service unreachable; trying cached inventory")
	zones, sensors, cacheErr := cache.Load()
	if cacheErr != nil {
		return nil, nil, fmt.Errorf("no inventory: service unreachable (%v) and no usable cache: %w", err, cacheErr)
	}
	log.Info().
		Int("zones", len(zones)).
		Int("sensors", len(sensors)).
		Msg("Loaded inventory from cache")
	return zones, sensors, nil
}

// SensorsByID indexes the sensor inventory for zone wiring.
func SensorsByID(sensors []model.Sensor) map[int]model.Sensor {
	m := make(map[int]model.Sensor, len(sensors))
	for _, s := range sensors {
		m[s.ID] = s
	}
	return m
}
