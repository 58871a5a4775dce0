package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Charger.Port != 9006 || cfg.Charger.IDToken != "ElecqAutoStart" {
		t.Fatalf("unexpected charger defaults: %+v", cfg.Charger)
	}
	if cfg.Charger.EVSEID != 1 || cfg.Charger.ConnectorID != 1 {
		t.Fatalf("unexpected evse/connector defaults: %+v", cfg.Charger)
	}
	if cfg.ChargerAddress() != ":9006" {
		t.Fatalf("unexpected charger address %s", cfg.ChargerAddress())
	}
	if cfg.HeartbeatInterval() != 60*time.Second {
		t.Fatalf("unexpected heartbeat interval %s", cfg.HeartbeatInterval())
	}
	if cfg.CallTimeout() != 30*time.Second {
		t.Fatalf("unexpected call timeout %s", cfg.CallTimeout())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHARGER_PORT", "9100")
	t.Setenv("CHARGER_ID_TOKEN", "Garage")
	t.Setenv("OCPP_PING_INTERVAL", "0")
	t.Setenv("API_PORT", "0")
	t.Setenv("API_TOKEN_TTL", "15m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Charger.Port != 9100 || cfg.Charger.IDToken != "Garage" {
		t.Fatalf("env overrides not applied: %+v", cfg.Charger)
	}
	if cfg.PingInterval() != 0 {
		t.Fatalf("expected pings disabled, got %s", cfg.PingInterval())
	}
	if cfg.APIAddress() != "" {
		t.Fatalf("expected API disabled, got %q", cfg.APIAddress())
	}
	if cfg.API.TokenTTL != 15*time.Minute {
		t.Fatalf("unexpected token ttl %s", cfg.API.TokenTTL)
	}
}

func TestLoadRejectsEmptyToken(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHARGER_ID_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error for empty id token")
	}
}

func TestMQTTTopic(t *testing.T) {
	cfg := Default()
	cfg.MQTT.TopicPrefix = "/garage/charger/"
	if got := cfg.MQTTTopic("state"); got != "garage/charger/state" {
		t.Fatalf("unexpected topic %q", got)
	}
	cfg.MQTT.TopicPrefix = ""
	if got := cfg.MQTTTopic("state"); got != "state" {
		t.Fatalf("unexpected topic %q", got)
	}
}
