// Package config loads the host tool's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	ErrDuplicateName = errors.New("config: duplicate encoder name")
	ErrDuplicateOID  = errors.New("config: duplicate encoder oid")
)

// Load reads and validates the configuration file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML, then fills in defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, err
	}

	names := make(map[string]bool)
	oids := make(map[int]bool)
	for _, e := range cfg.Encoders {
		if names[e.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, e.Name)
		}
		if oids[e.OID] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateOID, e.OID)
		}
		names[e.Name] = true
		oids[e.OID] = true
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = DefaultBaud
	}
	if cfg.Serial.ReadTimeout == 0 {
		cfg.Serial.ReadTimeout = DefaultReadTimeout
	}
	for i := range cfg.Encoders {
		e := &cfg.Encoders[i]
		if e.SampleInterval == 0 {
			e.SampleInterval = DefaultSampleInterval
		}
		if e.ClockFreq == 0 {
			e.ClockFreq = DefaultClockFreq
		}
	}
}
