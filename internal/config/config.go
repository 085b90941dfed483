package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		APIURL    string `yaml:"api_url"`
		SocketURL string `yaml:"socket_url"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"server"`
	Session struct {
		Backend string `yaml:"backend"` // memory | file | redis
		Path    string `yaml:"path"`
	} `yaml:"session"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Quiz struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path. A missing file is not an error; the
// client runs fine on defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns the out-of-the-box configuration.
func Default() Config {
	cfg := Config{}
	cfg.Server.APIURL = "http://localhost:8080"
	cfg.Server.SocketURL = "ws://localhost:8080/ws"
	cfg.Session.Backend = "file"
	return cfg
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
