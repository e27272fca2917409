package scheduler

import (
	"encoding/json"
	"os"

	"github.com/boilerio/boilerio/internal/model"
)

// Cache persists the zone and sensor inventory so a controller can start
// heating even when the scheduler service is unreachable.
type Cache struct {
	path string
}

type cachedInventory struct {
	Zones   []model.Zone   `json:"zones"`
	Sensors []model.Sensor `json:"sensors"`
}

func NewCache(path string) *Cache {
	return &Cache{path: path}
}

func (c *Cache) Load() ([]model.Zone, []model.Sensor, error) {
	file, err := os.Open(c.path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	var inv cachedInventory
	if err := json.NewDecoder(file).Decode(&inv); err != nil {
		return nil, nil, err
	}
	return inv.Zones, inv.Sensors, nil
}

func (c *Cache) Save(zones []model.Zone, sensors []model.Sensor) error {
	tmpPath := c.path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cachedInventory{Zones: zones, Sensors: sensors}); err != nil {
		file.Close()
		return err
	}
	file.Sync()
	file.Close()

	return os.Rename(tmpPath, c.path)
}
