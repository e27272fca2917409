package schedulerweb

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boilerio/boilerio/db"
	"github.com/boilerio/boilerio/internal/model"
	"github.com/boilerio/boilerio/internal/schedule"
)

// Monday noon.
var testNow = time.Date(2023, 1, 9, 12, 0, 0, 0, time.UTC)

func setupTestServer(t *testing.T) (*Server, *sql.DB) {
	t.Helper()
	database, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))

	_, err = database.Exec(`INSERT INTO sensors (sensor_id, name, locator, zone) VALUES (3, 'Lounge sensor', 'sensor/lounge', 1)`)
	require.NoError(t, err)
	_, err = database.Exec(`INSERT INTO zones (zone_id, name, boiler_relay, sensor_id) VALUES (1, 'Lounge', '7', 3)`)
	require.NoError(t, err)
	_, err = database.Exec(`INSERT INTO zones (zone_id, name, boiler_relay, sensor_id) VALUES (2, 'Bedroom', '8', NULL)`)
	require.NoError(t, err)

	salt, err := NewSalt()
	require.NoError(t, err)
	hash, err := HashSecret("s3cret", salt)
	require.NoError(t, err)
	_, err = database.Exec(`INSERT INTO devices (device_id, secret_salt, secret_hash) VALUES (7, ?, ?)`, salt, hash)
	require.NoError(t, err)

	server := New(database, nil)
	server.clock = func() time.Time { return testNow }
	return server, database
}

func doRequest(server *Server, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.SetBasicAuth("7", "s3cret")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func doGet(server *Server, path string) *httptest.ResponseRecorder {
	return doRequest(server, http.MethodGet, path, nil, "")
}

func doForm(server *Server, method, path string, form url.Values) *httptest.ResponseRecorder {
	return doRequest(server, method, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func doJSON(server *Server, method, path, body string) *httptest.ResponseRecorder {
	return doRequest(server, method, path, strings.NewReader(body), "application/json")
}

func TestRejectsMissingCredentials(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/zones/", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
}

func TestRejectsBadSecret(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/zones/", nil)
	req.SetBasicAuth("7", "wrong")
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRejectsNonNumericDevice(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/zones/", nil)
	req.SetBasicAuth("not-a-device", "s3cret")
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetZones(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doGet(server, "/zones/")
	require.Equal(t, http.StatusOK, w.Code)

	var zones []model.Zone
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &zones))
	require.Len(t, zones, 2)
	assert.Equal(t, "Lounge", zones[0].Name)
	assert.Equal(t, "7", zones[0].BoilerRelay)
	assert.Equal(t, 3, zones[0].SensorID)
}

func TestGetSensors(t *testing.T) {
	server, _ := setupTestServer(t)

	w := doGet(server, "/sensor/")
	require.Equal(t, http.StatusOK, w.Code)

	var sensors []model.Sensor
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sensors))
	require.Len(t, sensors, 1)
	assert.Equal(t, "sensor/lounge", sensors[0].Locator)
}

func TestReadings(t *testing.T) {
	server, _ := setupTestServer(t)

	t.Run("store and fetch latest", func(t *testing.T) {
		w := doJSON(server, http.MethodPost, "/sensor/3/readings",
			`{"metric_type": "temperature", "when": "2023-01-09T11:00:00.000000Z", "value": 19.0}`)
		require.Equal(t, http.StatusOK, w.Code)
		w = doJSON(server, http.MethodPost, "/sensor/3/readings",
			`{"metric_type": "temperature", "when": "2023-01-09T11:30:00.000000Z", "value": 19.5}`)
		require.Equal(t, http.StatusOK, w.Code)

		w = doGet(server, "/sensor/3/readings")
		require.Equal(t, http.StatusOK, w.Code)

		var readings []readingPayload
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &readings))
		require.Len(t, readings, 1)
		assert.Equal(t, "temperature", readings[0].MetricType)
		assert.Equal(t, "2023-01-09T11:30:00.000000Z", readings[0].When)
		assert.Equal(t, 19.5, readings[0].Value)
	})

	t.Run("unknown sensor", func(t *testing.T) {
		w := doGet(server, "/sensor/99/readings")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad metric type", func(t *testing.T) {
		w := doJSON(server, http.MethodPost, "/sensor/3/readings",
			`{"metric_type": "pressure", "when": "2023-01-09T11:00:00.000000Z", "value": 1013}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		w := doJSON(server, http.MethodPost, "/sensor/3/readings",
			`{"metric_type": "temperature", "when": "yesterday", "value": 19}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestScheduleEntries(t *testing.T) {
	server, _ := setupTestServer(t)

	t.Run("add entry", func(t *testing.T) {
		w := doForm(server, http.MethodPost, "/schedule/new_entry", url.Values{
			"time": {"06:30"}, "day": {"0"}, "temp": {"20"}, "zone": {"1"},
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Zero(t, w.Body.Len())
	})

	t.Run("schedule carries the entry", func(t *testing.T) {
		w := doGet(server, "/schedule")
		require.Equal(t, http.StatusOK, w.Code)

		var sched schedule.FullSchedule
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sched))
		require.Len(t, sched.Entries(), 1)
		assert.Equal(t, 20.0, sched.Entries()[0].Temp)
	})

	t.Run("flat zone schedule", func(t *testing.T) {
		w := doGet(server, "/zones/1/schedule")
		require.Equal(t, http.StatusOK, w.Code)

		var entries []zoneEntryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, zoneEntryResponse{Day: 0, Time: "06:30", Temp: 20}, entries[0])
	})

	t.Run("invalid fields rejected", func(t *testing.T) {
		cases := []struct {
			name string
			form url.Values
		}{
			{"bad time", url.Values{"time": {"25:00"}, "day": {"0"}, "temp": {"20"}, "zone": {"1"}}},
			{"bad day", url.Values{"time": {"06:30"}, "day": {"7"}, "temp": {"20"}, "zone": {"1"}}},
			{"temp too high", url.Values{"time": {"06:30"}, "day": {"0"}, "temp": {"35"}, "zone": {"1"}}},
			{"negative temp", url.Values{"time": {"06:30"}, "day": {"0"}, "temp": {"-1"}, "zone": {"1"}}},
			{"unknown zone", url.Values{"time": {"06:30"}, "day": {"0"}, "temp": {"20"}, "zone": {"99"}}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				w := doForm(server, http.MethodPost, "/schedule/new_entry", tc.form)
				assert.Equal(t, http.StatusBadRequest, w.Code)
			})
		}
	})

	t.Run("delete entry", func(t *testing.T) {
		w := doForm(server, http.MethodPost, "/schedule/delete_entry", url.Values{
			"time": {"06:30"}, "day": {"0"}, "zone": {"1"},
		})
		require.Equal(t, http.StatusOK, w.Code)

		w = doGet(server, "/zones/1/schedule")
		var entries []zoneEntryResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
		assert.Empty(t, entries)
	})
}

func TestOverrideLifecycle(t *testing.T) {
	server, _ := setupTestServer(t)

	t.Run("none set", func(t *testing.T) {
		w := doGet(server, "/zones/1/override")
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("requires a duration", func(t *testing.T) {
		w := doForm(server, http.MethodPost, "/zones/1/override", url.Values{"temp": {"22"}})
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Must specify days, hours, or mins", resp.Error)
	})

	t.Run("set and fetch", func(t *testing.T) {
		w := doForm(server, http.MethodPost, "/zones/1/override", url.Values{
			"temp": {"22"}, "hours": {"1"},
		})
		require.Equal(t, http.StatusOK, w.Code)

		w = doGet(server, "/zones/1/override")
		require.Equal(t, http.StatusOK, w.Code)

		var resp overrideResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Zone)
		assert.Equal(t, 22.0, resp.Temp)
		assert.Equal(t, testNow.Add(time.Hour).Format(schedule.OverrideTimeLayout), resp.Until)
	})

	t.Run("replaces previous", func(t *testing.T) {
		w := doForm(server, http.MethodPost, "/zones/1/override", url.Values{
			"temp": {"25"}, "mins": {"30"},
		})
		require.Equal(t, http.StatusOK, w.Code)

		w = doGet(server, "/zones/1/override")
		require.Equal(t, http.StatusOK, w.Code)

		var resp overrideResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 25.0, resp.Temp)
	})

	t.Run("clear", func(t *testing.T) {
		w := doRequest(server, http.MethodDelete, "/zones/1/override", nil, "")
		require.Equal(t, http.StatusOK, w.Code)

		w = doGet(server, "/zones/1/override")
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestGradients(t *testing.T) {
	server, _ := setupTestServer(t)

	for _, body := range []string{
		`{"when": "2023-01-09T10:00:00Z", "delta": 9.8, "gradient": 2.0}`,
		`{"when": "2023-01-09T11:00:00Z", "delta": 10.1, "gradient": 4.0}`,
	} {
		w := doJSON(server, http.MethodPost, "/zones/1/gradient_measurements", body)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doGet(server, "/zones/1/gradients")
	require.Equal(t, http.StatusOK, w.Code)

	var table []model.GradientRow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &table))
	require.Len(t, table, 1)
	assert.Equal(t, model.GradientRow{Delta: 10.0, Gradient: 3.0, NPoints: 2}, table[0])
}

func TestReportedState(t *testing.T) {
	server, _ := setupTestServer(t)

	t.Run("nothing reported yet", func(t *testing.T) {
		w := doGet(server, "/zones/1/reported_state")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("round trip", func(t *testing.T) {
		w := doJSON(server, http.MethodPost, "/zones/1/reported_state",
			`{"state": "PWM", "target": 20.0, "current_temp": 19.5, "time_to_target": 3600.0, "dutycycle": 0.4}`)
		require.Equal(t, http.StatusOK, w.Code)

		w = doGet(server, "/zones/1/reported_state")
		require.Equal(t, http.StatusOK, w.Code)

		var state model.DeviceState
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
		assert.Equal(t, model.ModePWM, state.State)
		assert.True(t, state.Received.Equal(testNow))
		require.NotNil(t, state.Target)
		assert.Equal(t, 20.0, *state.Target)
		require.NotNil(t, state.TimeToTarget)
		assert.Equal(t, 3600.0, *state.TimeToTarget)
	})
}

func TestSummary(t *testing.T) {
	server, database := setupTestServer(t)

	require.NoError(t, db.AddScheduleEntry(database, schedule.Entry{Day: 0, At: schedule.DayTime{Hour: 6, Minute: 30}, Zone: 1, Temp: 20}))
	require.NoError(t, db.AddScheduleEntry(database, schedule.Entry{Day: 0, At: schedule.DayTime{Hour: 22}, Zone: 1, Temp: 15}))
	require.NoError(t, db.AddScheduleEntry(database, schedule.Entry{Day: 0, At: schedule.DayTime{Hour: 6, Minute: 30}, Zone: 2, Temp: 19}))
	require.NoError(t, db.SetOverride(database, schedule.Override{Zone: 2, Temp: 22, Until: testNow.Add(time.Hour)}))

	w := doGet(server, "/summary")
	require.Equal(t, http.StatusOK, w.Code)

	var summary summaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))

	assert.Equal(t, 0, summary.ServerDayOfWeek)
	require.Len(t, summary.Zones, 2)

	require.NotNil(t, summary.Zones[0].Target)
	assert.Equal(t, 20.0, *summary.Zones[0].Target)
	assert.Nil(t, summary.Zones[0].TargetOverride)

	// The override wins for the second zone.
	require.NotNil(t, summary.Zones[1].Target)
	assert.Equal(t, 22.0, *summary.Zones[1].Target)
	require.NotNil(t, summary.Zones[1].TargetOverride)
	assert.Equal(t, 22.0, summary.Zones[1].TargetOverride.Temp)

	require.Len(t, summary.Today, 3)
	assert.Equal(t, "00:00", summary.Today[0].When)
	assert.Equal(t, "06:30", summary.Today[1].When)
	assert.Len(t, summary.Today[1].Zones, 2)
	assert.Equal(t, "22:00", summary.Today[2].When)
	assert.Len(t, summary.Today[2].Zones, 1)
}

func TestMutationsNotify(t *testing.T) {
	server, _ := setupTestServer(t)
	notified := 0
	server.notify = func() { notified++ }

	w := doForm(server, http.MethodPost, "/schedule/new_entry", url.Values{
		"time": {"06:30"}, "day": {"0"}, "temp": {"20"}, "zone": {"1"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, notified)

	// Invalid requests do not notify.
	w = doForm(server, http.MethodPost, "/schedule/new_entry", url.Values{
		"time": {"25:00"}, "day": {"0"}, "temp": {"20"}, "zone": {"1"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, notified)

	w = doForm(server, http.MethodPost, "/zones/1/override", url.Values{
		"temp": {"22"}, "hours": {"1"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, notified)
}
