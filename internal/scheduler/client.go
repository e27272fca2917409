package scheduler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/boilerio/boilerio/internal/model"
	"github.com/boilerio/boilerio/internal/schedule"
)

// ReportedState is the zone state a controller sends up to the scheduler
// service. Pointer fields are null until the controller has learned the
// corresponding value.
type ReportedState struct {
	State              string   `json:"state"`
	Target             *float64 `json:"target"`
	CurrentTemp        *float64 `json:"current_temp"`
	TimeToTarget       *float64 `json:"time_to_target"`
	CurrentOutsideTemp *float64 `json:"current_outside_temp"`
	DutyCycle          float64  `json:"dutycycle"`
	TargetOverridden   bool     `json:"target_overridden"`
}

// Client talks to the scheduler web service, authenticating as a device.
type Client struct {
	baseURL  string
	deviceID int
	secret   string
	http     *http.Client
}

func NewClient(baseURL string, deviceID int, secret string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		deviceID: deviceID,
		secret:   secret,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(strconv.Itoa(c.deviceID), c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode response: %w", path, err)
	}
	return nil
}

func (c *Client) post(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.SetBasicAuth(strconv.Itoa(c.deviceID), c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

// Zones fetches the zone inventory.
func (c *Client) Zones() ([]model.Zone, error) {
	var zones []model.Zone
	if err := c.get("/zones/", &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

// Sensors fetches the sensor inventory.
func (c *Client) Sensors() ([]model.Sensor, error) {
	var sensors []model.Sensor
	if err := c.get("/sensor/", &sensors); err != nil {
		return nil, err
	}
	return sensors, nil
}

// Schedule fetches the full programme including any active overrides.
func (c *Client) Schedule() (*schedule.FullSchedule, error) {
	var s schedule.FullSchedule
	if err := c.get("/schedule", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Gradients fetches the aggregated heating rate table for a zone.
func (c *Client) Gradients(zone int) ([]model.GradientRow, error) {
	var rows []model.GradientRow
	if err := c.get(fmt.Sprintf("/zones/%d/gradients", zone), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// PostGradient records one heating rate measurement for a zone.
func (c *Client) PostGradient(zone int, m model.GradientMeasurement) error {
	return c.post(fmt.Sprintf("/zones/%d/gradient_measurements", zone), m)
}

// PostReportedState uploads the controller's view of a zone.
func (c *Client) PostReportedState(zone int, s ReportedState) error {
	return c.post(fmt.Sprintf("/zones/%d/reported_state", zone), s)
}

type readingUpload struct {
	MetricType string  `json:"metric_type"`
	When       string  `json:"when"`
	Value      float64 `json:"value"`
}

// PostReading records a sensor temperature reading.
func (c *Client) PostReading(sensorID int, r model.Reading) error {
	body := readingUpload{
		MetricType: "temperature",
		When:       r.When.UTC().Format(model.ReadingTimeLayout),
		Value:      r.Temp,
	}
	return c.post(fmt.Sprintf("/sensor/%d/readings", sensorID), body)
}
