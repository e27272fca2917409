package startup

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boilerio/boilerio/internal/model"
	"github.com/boilerio/boilerio/internal/scheduler"
)

type fakeInventory struct {
	zones   []model.Zone
	sensors []model.Sensor
	err     error
}

func (f *fakeInventory) Zones() ([]model.Zone, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.zones, nil
}

func (f *fakeInventory) Sensors() ([]model.Sensor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sensors, nil
}

var (
	testZones   = []model.Zone{{ID: 1, Name: "Lounge", BoilerRelay: "7", SensorID: 3}}
	testSensors = []model.Sensor{{ID: 3, Name: "Lounge sensor", Locator: "sensor/lounge"}}
)

func TestInventoryFetchedAndCached(t *testing.T) {
	cache := scheduler.NewCache(filepath.Join(t.TempDir(), "inventory.json"))
	inv := &fakeInventory{zones: testZones, sensors: testSensors}

	zones, sensors, err := LoadInventory(inv, cache)
	require.NoError(t, err)
	assert.Equal(t, testZones, zones)
	assert.Equal(t, testSensors, sensors)

	// A later run with the service down uses the cached copy.
	inv.err = errors.New("service down")
	zones, sensors, err = LoadInventory(inv, cache)
	require.NoError(t, err)
	assert.Equal(t, testZones, zones)
	assert.Equal(t, testSensors, sensors)
}

func TestInventoryUnavailableWithoutCache(t *testing.T) {
	cache := scheduler.NewCache(filepath.Join(t.TempDir(), "missing.json"))
	inv := &fakeInventory{err: errors.New("service down")}

	_, _, err := LoadInventory(inv, cache)
	assert.Error(t, err)
}

func TestSensorsByID(t *testing.T) {
	m := SensorsByID(testSensors)
	require.Len(t, m, 1)
	assert.Equal(t, "sensor/lounge", m[3].Locator)
}
