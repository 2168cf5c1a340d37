package main

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"
)

//go:embed config.yaml
var defaultConfig []byte

type (
	ServerConfig struct {
		Listen        string `yaml:"listen"`
		AssetVersion  string `yaml:"asset_version"`
		ClientScript  string `yaml:"client_script"`
		CSRF          bool   `yaml:"csrf"`
		SecureCookies bool   `yaml:"secure_cookies"`
		SessionCookie string `yaml:"session_cookie"`
	}

	ClientConfig struct {
		Timeout    time.Duration `yaml:"timeout"`
		Sanitize   bool          `yaml:"sanitize"`
		CookieName string        `yaml:"cookie_name"`
		HeaderName string        `yaml:"header_name"`
	}

	LoggingConfig struct {
		Level string `yaml:"level"`
	}

	Config struct {
		Version int           `yaml:"version"`
		Server  ServerConfig  `yaml:"server"`
		Client  ClientConfig  `yaml:"client"`
		Logging LoggingConfig `yaml:"logging"`
	}
)

func unmarshalConfig(data []byte, cfg *Config) (*Config, error) {
	// only fields we defined are accepted
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported configuration version %d", cfg.Version)
	}
	switch cfg.Logging.Level {
	case "none", "normal", "debug":
	default:
		return fmt.Errorf("unknown logging level %q", cfg.Logging.Level)
	}
	if cfg.Client.Timeout < 0 {
		return fmt.Errorf("client timeout must not be negative")
	}
	if cfg.Client.CookieName == "" || cfg.Client.HeaderName == "" {
		return fmt.Errorf("client cookie and header names are required")
	}
	return nil
}

// LoadConfiguration superimposes the file at path, if any, on the embedded
// defaults and validates the result.
func LoadConfiguration(path string) (*Config, error) {
	cfg, err := unmarshalConfig(defaultConfig, &Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to process default configuration: %w", err)
	}

	if len(path) > 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if cfg, err = unmarshalConfig(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to process configuration file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
