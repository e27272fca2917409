package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type MQTTConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	ClientID string `json:"client_id"`
}

type TopicsConfig struct {
	DemandRequest  string `json:"demand_request"`
	InfoBase       string `json:"info_base"`
	Status         string `json:"status"`
	ScheduleChange string `json:"schedule_change"`
}

// SchedulerConfig locates the control-plane API and carries the device
// credentials used for HTTP basic auth against it.
type SchedulerConfig struct {
	URL          string `json:"url"`
	DeviceID     int    `json:"device_id"`
	DeviceSecret string `json:"device_secret"`
}

type WeatherConfig struct {
	APIKey   string `json:"apikey"`
	Location string `json:"location"`
}

type Config struct {
	ConfigFile string
	LogFile    string
	LogLevel   zerolog.Level

	MQTT      MQTTConfig      `json:"mqtt"`
	Topics    TopicsConfig    `json:"topics"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Weather   WeatherConfig   `json:"weather"`

	// CacheFile persists the zone/sensor inventory for starts while the
	// control plane is down.
	CacheFile string `json:"cache_file"`

	GradientWarmupSeconds int `json:"gradient_warmup_seconds"`

	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`
	EnableDatadog bool     `json:"enable_datadog"`

	NtfyTopic string `json:"ntfy_topic"`

	// Control-plane service only.
	DatabaseFile string `json:"database_file"`
	ListenAddr   string `json:"listen_addr"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to config file")
	flag.StringVar(&cfg.LogFile, "log-file", "", "Log file path (empty logs to stdout)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()
	return cfg
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = 1883
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "boilerio"
	}
	if cfg.Topics.DemandRequest == "" {
		cfg.Topics.DemandRequest = "heating.demand_request"
	}
	if cfg.Topics.InfoBase == "" {
		cfg.Topics.InfoBase = "heating.info"
	}
	if cfg.Topics.Status == "" {
		cfg.Topics.Status = "thermostat.status"
	}
	if cfg.Topics.ScheduleChange == "" {
		cfg.Topics.ScheduleChange = "thermostat.schedule_changed"
	}
	if cfg.CacheFile == "" {
		cfg.CacheFile = "data/inventory.json"
	}
	if cfg.DDNamespace == "" {
		cfg.DDNamespace = "boilerio."
	}
	if cfg.DatabaseFile == "" {
		cfg.DatabaseFile = "data/schedulerweb.db"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
}

// ValidateMQTT panics unless the broker connection is fully specified.
func (cfg *Config) ValidateMQTT() {
	var missing []string
	if cfg.MQTT.Host == "" {
		missing = append(missing, "mqtt.host")
	}
	if len(missing) > 0 {
		panic("Missing required config fields: " + strings.Join(missing, ", "))
	}
	if cfg.MQTT.Port < 1 || cfg.MQTT.Port > 65535 {
		panic(fmt.Sprintf("Invalid mqtt.port: %d", cfg.MQTT.Port))
	}
}

// ValidateController panics unless the zone controller daemon has what it
// needs: a broker and control-plane credentials.
func (cfg *Config) ValidateController() {
	cfg.ValidateMQTT()

	var missing []string
	if cfg.Scheduler.URL == "" {
		missing = append(missing, "scheduler.url")
	}
	if cfg.Scheduler.DeviceID == 0 {
		missing = append(missing, "scheduler.device_id")
	}
	if cfg.Scheduler.DeviceSecret == "" {
		missing = append(missing, "scheduler.device_secret")
	}
	if len(missing) > 0 {
		panic("Missing required config fields: " + strings.Join(missing, ", "))
	}
}

// ValidateWeb panics unless the control-plane service config is usable.
func (cfg *Config) ValidateWeb() {
	var missing []string
	if cfg.DatabaseFile == "" {
		missing = append(missing, "database_file")
	}
	if cfg.ListenAddr == "" {
		missing = append(missing, "listen_addr")
	}
	if len(missing) > 0 {
		panic("Missing required config fields: " + strings.Join(missing, ", "))
	}
}
