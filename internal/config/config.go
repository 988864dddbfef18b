package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Session SessionConfig `yaml:"session"`
	Client  ClientConfig  `yaml:"client"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Mock    MockConfig    `yaml:"mock"`
}

// SessionConfig holds the credentials used to join a session. The client
// presents them; the development server accepts only these.
type SessionConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	SessionID string `yaml:"session_id"`
	Token     string `yaml:"token"`
}

type ClientConfig struct {
	DisplayName        string        `yaml:"display_name"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PreloadTimeout     time.Duration `yaml:"preload_timeout"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	ICEServers     []string `yaml:"ice_servers"`
	Codecs         []string `yaml:"codecs"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type MockConfig struct {
	Participants int           `yaml:"participants"`
	Interval     time.Duration `yaml:"interval"`
}

// envOverrides are read after the YAML file so that credentials can be
// supplied by the hosting environment without touching the config file.
type envOverrides struct {
	URL       string `env:"ROOM_URL"`
	APIKey    string `env:"ROOM_API_KEY"`
	SessionID string `env:"ROOM_SESSION_ID"`
	Token     string `env:"ROOM_TOKEN"`
	LogLevel  string `env:"ROOM_LOG_LEVEL"`
	LogFormat string `env:"ROOM_LOG_FORMAT"`
}

func defaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			URL: "ws://127.0.0.1:8080/ws",
		},
		Client: ClientConfig{
			DisplayName:        "me",
			ReconnectBaseDelay: time.Second,
			ReconnectMaxDelay:  30 * time.Second,
			PreloadTimeout:     5 * time.Second,
		},
		Server: ServerConfig{
			Port:       8080,
			Host:       "127.0.0.1",
			ICEServers: []string{"stun:stun.l.google.com:19302"},
			Codecs:     []string{"VP8", "H264", "opus"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Mock: MockConfig{
			Participants: 3,
			Interval:     4 * time.Second,
		},
	}
}

// Load reads the YAML file at path on top of the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envdecode.Decode(&env); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("decode environment: %w", err)
	}

	setIf(&c.Session.URL, env.URL)
	setIf(&c.Session.APIKey, env.APIKey)
	setIf(&c.Session.SessionID, env.SessionID)
	setIf(&c.Session.Token, env.Token)
	setIf(&c.Log.Level, env.LogLevel)
	setIf(&c.Log.Format, env.LogFormat)
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
