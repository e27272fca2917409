// Package weather fetches current outdoor conditions from OpenWeather,
// with caching to stay well inside API rate limits.
package weather

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const apiEndpoint = "https://api.openweathermap.org/data/2.5/weather"

const DefaultCacheTime = time.Hour

// Weather is a simplified current-conditions result.
type Weather struct {
	Temperature float64
	Humidity    float64
	Sunrise     time.Time
	Sunset      time.Time
}

// Provider returns current weather for some fixed location.
type Provider interface {
	GetWeather() (*Weather, error)
}

// Client queries OpenWeather for a fixed location and API key.
type Client struct {
	apikey   string
	location string
	baseURL  string
	http     *http.Client
}

func NewClient(apikey, location string) *Client {
	return &Client{
		apikey:   apikey,
		location: location,
		baseURL:  apiEndpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) GetWeather() (*Weather, error) {
	q := url.Values{}
	q.Set("q", c.location)
	q.Set("apikey", c.apikey)
	q.Set("units", "metric")

	resp, err := c.http.Get(c.baseURL + "?" + q.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather service returned status %d", resp.StatusCode)
	}

	var body struct {
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Sys struct {
			Sunrise int64 `json:"sunrise"`
			Sunset  int64 `json:"sunset"`
		} `json:"sys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	return &Weather{
		Temperature: body.Main.Temp,
		Humidity:    body.Main.Humidity,
		Sunrise:     time.Unix(body.Sys.Sunrise, 0),
		Sunset:      time.Unix(body.Sys.Sunset, 0),
	}, nil
}

// Caching wraps a provider with a TTL cache. A failed refresh serves the
// stale value; only a failure with an empty cache is an error.
type Caching struct {
	provider Provider
	ttl      time.Duration

	last      *Weather
	fetchedAt time.Time
}

func NewCaching(p Provider, ttl time.Duration) *Caching {
	if ttl <= 0 {
		ttl = DefaultCacheTime
	}
	return &Caching{provider: p, ttl: ttl}
}

func (c *Caching) GetWeather(now time.Time) (*Weather, error) {
	if c.last == nil || c.fetchedAt.Add(c.ttl).Before(now) {
		w, err := c.provider.GetWeather()
		if err != nil {
			if c.last == nil {
				return nil, err
			}
			log.Info().Err(err).Msg("Weather refresh failed, using cached result")
			return c.last, nil
		}
		c.last = w
		c.fetchedAt = now
	}
	return c.last, nil
}
