package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Bus drivers.
const (
	BusMemory = "memory"
	BusRedis  = "redis"
	BusNATS   = "nats"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
	Questions struct {
		TTL string `yaml:"ttl"`
	} `yaml:"questions"`
	Rooms struct {
		CodeAttempts      int     `yaml:"code_attempts"`
		MaxSeconds        float64 `yaml:"max_seconds"`
		MaxPlayers        int     `yaml:"max_players"`
		TrustClientTiming bool    `yaml:"trust_client_timing"`
	} `yaml:"rooms"`
	Bus struct {
		Driver string `yaml:"driver"`
		Buffer int    `yaml:"buffer"`
	} `yaml:"bus"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Redis.TTL = "10m"
	cfg.NATS.SubjectPrefix = "trivia"
	cfg.Questions.TTL = "10m"
	cfg.Rooms.CodeAttempts = 10
	cfg.Rooms.MaxSeconds = 30
	cfg.Rooms.MaxPlayers = 100
	cfg.Rooms.TrustClientTiming = true
	cfg.Bus.Driver = BusMemory
	cfg.Bus.Buffer = 16
	return cfg
}

// Load reads YAML config from path on top of Default. An empty path or a
// missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints once flags and env are applied.
func (c Config) Validate() error {
	switch c.Bus.Driver {
	case BusMemory:
	case BusRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("bus driver %q requires redis.addr", c.Bus.Driver)
		}
	case BusNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("bus driver %q requires nats.url", c.Bus.Driver)
		}
	default:
		return fmt.Errorf("unknown bus driver %q", c.Bus.Driver)
	}
	if c.Rooms.MaxSeconds <= 0 {
		return fmt.Errorf("rooms.max_seconds must be positive, got %v", c.Rooms.MaxSeconds)
	}
	if c.Rooms.MaxPlayers < 2 {
		return fmt.Errorf("rooms.max_players must be at least 2, got %d", c.Rooms.MaxPlayers)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
