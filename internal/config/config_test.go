package config

import (
	"testing"
)

func TestValidateControllerComplete(t *testing.T) {
	cfg := Config{
		MQTT: MQTTConfig{Host: "broker.local", Port: 1883},
		Scheduler: SchedulerConfig{
			URL:          "http://scheduler.local/api",
			DeviceID:     7,
			DeviceSecret: "s3cret",
		},
	}

	cfg.ValidateController() // should not panic
}

func TestValidateControllerMissingScheduler(t *testing.T) {
	cfg := Config{
		MQTT: MQTTConfig{Host: "broker.local", Port: 1883},
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic due to missing scheduler config, but got none")
		}
	}()

	cfg.ValidateController()
}

func TestValidateMQTTBadPort(t *testing.T) {
	cfg := Config{
		MQTT: MQTTConfig{Host: "broker.local", Port: 70000},
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic due to out-of-range port, but got none")
		}
	}()

	cfg.ValidateMQTT()
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	if cfg.MQTT.Port != 1883 {
		t.Errorf("expected default port 1883, got %d", cfg.MQTT.Port)
	}
	if cfg.Topics.DemandRequest != "heating.demand_request" {
		t.Errorf("unexpected demand request topic %q", cfg.Topics.DemandRequest)
	}
	if cfg.Topics.ScheduleChange != "thermostat.schedule_changed" {
		t.Errorf("unexpected schedule change topic %q", cfg.Topics.ScheduleChange)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("unexpected listen addr %q", cfg.ListenAddr)
	}
}
