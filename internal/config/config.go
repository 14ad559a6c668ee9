package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort     = 8080
	DefaultDBPath       = "tracklane.db"
	DefaultSendBuffer   = 16
	DefaultInboundRate  = 20.0
	DefaultInboundBurst = 40
	DefaultCooldown     = 15 * time.Minute
)

// Config is the full configuration parsed from config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth"`
	WS     WSConfig     `yaml:"ws"`
	Notify NotifyConfig `yaml:"notify"`
}

// ServerConfig holds the HTTP listener and storage settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// DBPath is the SQLite database file. ":memory:" runs without persistence.
	DBPath string `yaml:"db_path"`
}

// AuthConfig controls client authentication on the HTTP API.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected
	// API key. Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// WSConfig tunes the WebSocket hub.
type WSConfig struct {
	// SendBuffer is the per-session outbound queue depth. A session whose
	// queue is full at delivery time is dropped from its room (default 16).
	SendBuffer int `yaml:"send_buffer"`

	// InboundRate is the sustained inbound messages-per-second allowance per
	// session; over-limit messages are discarded (default 20). Zero disables
	// the limiter.
	InboundRate float64 `yaml:"inbound_rate"`

	// InboundBurst is the burst size for the inbound limiter (default 40).
	InboundBurst int `yaml:"inbound_burst"`
}

// NotifyConfig holds notification rules and webhook delivery targets.
type NotifyConfig struct {
	Rules    []NotifyRule    `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// NotifyRule defines one condition over broadcast task events.
type NotifyRule struct {
	// Name is the human-readable rule identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression over event fields:
	// "status == BLOCKED", "action == deleted", "position > 10".
	Condition string `yaml:"condition"`

	// Cooldown suppresses re-fires for this duration after the rule matches.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the config file at path. Missing fields are filled
// with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			DBPath:   DefaultDBPath,
		},
		WS: WSConfig{
			SendBuffer:   DefaultSendBuffer,
			InboundRate:  DefaultInboundRate,
			InboundBurst: DefaultInboundBurst,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Server.DBPath == "" {
		return fmt.Errorf("server.db_path must not be empty")
	}
	switch cfg.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("auth.mode %q unknown: want apikey|none", cfg.Auth.Mode)
	}
	if cfg.WS.SendBuffer <= 0 {
		return fmt.Errorf("ws.send_buffer must be positive")
	}
	if cfg.WS.InboundRate < 0 {
		return fmt.Errorf("ws.inbound_rate must not be negative")
	}
	if cfg.WS.InboundBurst < 0 {
		return fmt.Errorf("ws.inbound_burst must not be negative")
	}
	for i, r := range cfg.Notify.Rules {
		if r.Name == "" {
			return fmt.Errorf("notify.rules[%d]: name must not be empty", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("notify.rules[%d] (%s): condition must not be empty", i, r.Name)
		}
		if r.Cooldown < 0 {
			return fmt.Errorf("notify.rules[%d] (%s): cooldown must not be negative", i, r.Name)
		}
	}
	for i, w := range cfg.Notify.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("notify.webhooks[%d]: type %q unknown: want slack|teams|http", i, w.Type)
		}
		if w.URLEnv == "" {
			return fmt.Errorf("notify.webhooks[%d]: url_env must not be empty", i)
		}
	}
	return nil
}
