// Copyright 2025 Hyli
//
// Optional YAML settings for the prover and signing subsystems. The
// environment stays authoritative; the file only tunes behavior that
// operators iterate on without redeploying.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the YAML-tunable subsystem configuration.
type Settings struct {
	Prover  ProverSettings  `yaml:"prover"`
	Signing SigningSettings `yaml:"signing"`
}

// ProverSettings tunes the proving dispatcher.
type ProverSettings struct {
	Enabled   bool `yaml:"enabled"`
	QueueSize int  `yaml:"queue_size"`
}

// SigningSettings tunes the QR signing service.
type SigningSettings struct {
	RequestTimeoutSecs int `yaml:"request_timeout_secs"`
}

// RequestTimeout returns the signing timeout as a duration.
func (s SigningSettings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Prover:  ProverSettings{Enabled: true, QueueSize: 64},
		Signing: SigningSettings{RequestTimeoutSecs: 120},
	}
}

// LoadSettings reads a settings file, falling back to defaults when the
// path is empty.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	if settings.Prover.QueueSize <= 0 {
		settings.Prover.QueueSize = 64
	}
	if settings.Signing.RequestTimeoutSecs <= 0 {
		settings.Signing.RequestTimeoutSecs = 120
	}
	return settings, nil
}
