// Copyright 2025 Hyli
//
// Configuration for the wallet node. Environment variables are the
// source of truth; an optional YAML file tunes the prover and signing
// subsystems (see settings.go).

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the wallet node.
type Config struct {
	// Server Configuration
	ListenAddr  string
	MetricsAddr string

	// Wallet Configuration
	WalletContractName string
	DataDir            string

	// Database Configuration (invites + history)
	DatabaseURL      string
	DatabaseRequired bool // If true, startup fails if database connection fails

	// Invite Signer Configuration
	InviteCodeSecretKey string // hex secp256k1 secret key; dev key when empty

	// Bootstrap Configuration
	HyliPasswordHash    string // when set, ConstructState installs the "hyli" account
	InviteCodePublicKey string // hex 33-byte key for the bootstrap payload

	// Prover Configuration
	ProverEnabled   bool
	ProverQueueSize int

	// Settings file for subsystem tuning (optional)
	SettingsFile string

	// Service Configuration
	LogLevel string
}

// Load reads configuration from environment variables.
//
// SECURITY: INVITE_CODE_PKEY has a development default; production
// deployments must set it explicitly. Call Validate() after Load().
func Load() (*Config, error) {
	cfg := &Config{
		// Server Configuration - safe defaults
		ListenAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("API_PORT", "8080"),
		MetricsAddr: getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("METRICS_PORT", "9090"),

		// Wallet Configuration
		WalletContractName: getEnv("WALLET_CONTRACT_NAME", "wallet"),
		DataDir:            getEnv("DATA_DIR", "./data"),

		// Database Configuration - REQUIRED for invites, no default
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseRequired: getEnvBool("DATABASE_REQUIRED", false),

		// Invite Signer Configuration
		InviteCodeSecretKey: getEnv("INVITE_CODE_PKEY", ""),

		// Bootstrap Configuration
		HyliPasswordHash:    getEnv("HYLI_PASSWORD_HASH", ""),
		InviteCodePublicKey: getEnv("INVITE_CODE_PUBLIC_KEY", ""),

		// Prover Configuration
		ProverEnabled:   getEnvBool("PROVER_ENABLED", true),
		ProverQueueSize: getEnvInt("PROVER_QUEUE_SIZE", 64),

		SettingsFile: getEnv("SETTINGS_FILE", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	var errs []string

	if c.WalletContractName == "" {
		errs = append(errs, "WALLET_CONTRACT_NAME cannot be empty")
	}
	if c.DatabaseRequired && c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required when DATABASE_REQUIRED=true")
	}
	if c.InviteCodePublicKey != "" && len(c.InviteCodePublicKey) != 66 {
		errs = append(errs, "INVITE_CODE_PUBLIC_KEY must be 33 hex-encoded bytes")
	}
	if (c.HyliPasswordHash == "") != (c.InviteCodePublicKey == "") {
		errs = append(errs, "HYLI_PASSWORD_HASH and INVITE_CODE_PUBLIC_KEY must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
