package config

import (
	"fmt"
	"strings"
	"time"

	libconfig "chargerlink/backend/libs/config"
)

// Defaults handed to the charger when the onboarding layer supplies nothing.
const (
	DefaultPort        = 9006
	DefaultIDToken     = "ElecqAutoStart"
	DefaultEVSEID      = 1
	DefaultConnectorID = 1
	DefaultAPIPort     = 8086
)

// ChargerConfig identifies the single managed charger.
type ChargerConfig struct {
	Port        int    `yaml:"port" env:"CHARGER_PORT" validate:"min=1,max=65535"`
	IDToken     string `yaml:"idToken" env:"CHARGER_ID_TOKEN" validate:"required,max=36"`
	EVSEID      int    `yaml:"evseId" env:"CHARGER_EVSE_ID" validate:"min=1"`
	ConnectorID int    `yaml:"connectorId" env:"CHARGER_CONNECTOR_ID" validate:"min=1"`
}

// OCPPConfig tunes protocol timing.
type OCPPConfig struct {
	HeartbeatIntervalSeconds int  `yaml:"heartbeatIntervalSeconds" env:"OCPP_HEARTBEAT_INTERVAL" validate:"min=1"`
	CallTimeoutSeconds       int  `yaml:"callTimeoutSeconds" env:"OCPP_CALL_TIMEOUT" validate:"min=1"`
	PingIntervalSeconds      int  `yaml:"pingIntervalSeconds" env:"OCPP_PING_INTERVAL" validate:"min=0"`
	WriteTimeoutSeconds      int  `yaml:"writeTimeoutSeconds" env:"OCPP_WRITE_TIMEOUT" validate:"min=1"`
	MaxMalformedFrames       int  `yaml:"maxMalformedFrames" env:"OCPP_MAX_MALFORMED" validate:"min=1"`
	EvictSuperseded          bool `yaml:"evictSuperseded" env:"OCPP_EVICT_SUPERSEDED"`
}

// APIConfig configures the operator HTTP API.
type APIConfig struct {
	Port                 int           `yaml:"port" env:"API_PORT" validate:"min=0,max=65535"`
	JWTSecret            string        `yaml:"jwtSecret" env:"API_JWT_SECRET"`
	OperatorPasswordHash string        `yaml:"operatorPasswordHash" env:"API_OPERATOR_PASSWORD_HASH"`
	TokenTTL             time.Duration `yaml:"tokenTTL" env:"API_TOKEN_TTL"`
}

// RedisConfig enables the redis state sink when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Key      string `yaml:"key" env:"REDIS_STATE_KEY"`
	Channel  string `yaml:"channel" env:"REDIS_STATE_CHANNEL"`
}

// NATSConfig enables state publishing and command request/reply when URL is set.
type NATSConfig struct {
	URL            string `yaml:"url" env:"NATS_URL"`
	StateSubject   string `yaml:"stateSubject" env:"NATS_STATE_SUBJECT"`
	CommandSubject string `yaml:"commandSubject" env:"NATS_COMMAND_SUBJECT"`
}

// MQTTConfig enables the MQTT bridge when Broker is set.
type MQTTConfig struct {
	Broker      string `yaml:"broker" env:"MQTT_BROKER"`
	ClientID    string `yaml:"clientId" env:"MQTT_CLIENT_ID"`
	Username    string `yaml:"username" env:"MQTT_USERNAME"`
	Password    string `yaml:"password" env:"MQTT_PASSWORD"`
	TopicPrefix string `yaml:"topicPrefix" env:"MQTT_TOPIC_PREFIX"`
}

// JournalConfig enables the PostgreSQL message journal when DSN is set.
type JournalConfig struct {
	DSN string `yaml:"dsn" env:"OCPP_POSTGRES_DSN"`
}

// Config defines OCPP server configuration.
type Config struct {
	Charger ChargerConfig `yaml:"charger"`
	OCPP    OCPPConfig    `yaml:"ocpp"`
	API     APIConfig     `yaml:"api"`
	Redis   RedisConfig   `yaml:"redis"`
	NATS    NATSConfig    `yaml:"nats"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Journal JournalConfig `yaml:"journal"`
}

// Default returns the configuration used when neither file nor env says otherwise.
func Default() *Config {
	return &Config{
		Charger: ChargerConfig{
			Port:        DefaultPort,
			IDToken:     DefaultIDToken,
			EVSEID:      DefaultEVSEID,
			ConnectorID: DefaultConnectorID,
		},
		OCPP: OCPPConfig{
			HeartbeatIntervalSeconds: 60,
			CallTimeoutSeconds:       30,
			PingIntervalSeconds:      30,
			WriteTimeoutSeconds:      15,
			MaxMalformedFrames:       5,
		},
		API: APIConfig{
			Port:     DefaultAPIPort,
			TokenTTL: time.Hour,
		},
		Redis: RedisConfig{
			Key:     "charger:state",
			Channel: "charger:state:changed",
		},
		NATS: NATSConfig{
			StateSubject:   "charger.state",
			CommandSubject: "charger.commands",
		},
		MQTT: MQTTConfig{
			ClientID:    "chargerlink",
			TopicPrefix: "chargerlink",
		},
	}
}

// Load uses shared config loader on top of Default.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ChargerAddress returns :port for the charger-facing websocket listener.
func (c *Config) ChargerAddress() string {
	return fmt.Sprintf(":%d", c.Charger.Port)
}

// APIAddress returns :port for the operator API, or "" when the API is disabled.
func (c *Config) APIAddress() string {
	if c.API.Port <= 0 {
		return ""
	}
	return fmt.Sprintf(":%d", c.API.Port)
}

// HeartbeatInterval returns the interval handed out in BootNotification responses.
func (c *Config) HeartbeatInterval() time.Duration {
	return seconds(c.OCPP.HeartbeatIntervalSeconds, 60)
}

// CallTimeout bounds every outbound call.
func (c *Config) CallTimeout() time.Duration {
	return seconds(c.OCPP.CallTimeoutSeconds, 30)
}

// PingInterval returns websocket ping interval; zero disables pings.
func (c *Config) PingInterval() time.Duration {
	if c.OCPP.PingIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.OCPP.PingIntervalSeconds) * time.Second
}

// WriteTimeout returns websocket write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return seconds(c.OCPP.WriteTimeoutSeconds, 15)
}

// MQTTTopic joins the configured prefix with a leaf topic.
func (c *Config) MQTTTopic(leaf string) string {
	prefix := strings.Trim(strings.TrimSpace(c.MQTT.TopicPrefix), "/")
	if prefix == "" {
		return leaf
	}
	return prefix + "/" + leaf
}

func seconds(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}
