// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the trust core daemon's YAML configuration
// through src/utils.LoadConfig's reflect-based struct-tag defaulting.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/gyroidos/trustcore/src/logger"
	"github.com/gyroidos/trustcore/src/utils"
)

// Config is the daemon's top-level configuration.
type Config struct {
	// UseTPM routes the crypto engine through a TPM 2.0 device.
	UseTPM bool `yaml:"use_tpm" default:"false"`
	// TPMDevicePath is the TPM character device to open when UseTPM is set.
	TPMDevicePath string `yaml:"tpm_device_path" default:"/dev/tpmrm0"`
	// SrkPinFile points at a file holding the TPM storage root key's
	// authorization PIN; empty means the SRK carries no authorization.
	// Kept out-of-line from the YAML config itself so the PIN is never
	// checked into the same file as the rest of the daemon's settings.
	SrkPinFile string `yaml:"srk_pin_file" default:""`
	// HostedMode suppresses the startup interface-rename pass (the
	// daemon is itself running inside a hosted/nested environment).
	HostedMode bool `yaml:"hosted_mode" default:"false"`
	// ClaimSeedFile points at the YAML file describing the initial USB
	// and netdev claim registry entries.
	ClaimSeedFile string `yaml:"claim_seed_file" default:"/etc/trustcore/claims.yaml"`
	// LogFile is the daemon's log file path; empty logs to stderr only.
	LogFile string `yaml:"log_file" default:""`
	// LogLevel is one of fatal,panic,error,warn,info,debug,trace.
	LogLevel string `yaml:"log_level" default:"info"`
}

// Load reads and defaults the configuration file configFile under
// configDir.
func Load(configDir, configFile string) (*Config, error) {
	cfg := &Config{}
	if err := utils.LoadConfig(configDir, configFile, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SrkPin reads and trims the PIN from SrkPinFile, returning an empty
// string (and no error) when SrkPinFile is unset.
func (c *Config) SrkPin() (string, error) {
	if c.SrkPinFile == "" {
		return "", nil
	}

	b, err := os.ReadFile(c.SrkPinFile)
	if err != nil {
		return "", fmt.Errorf("cannot read srk pin file %q: %w", c.SrkPinFile, err)
	}

	return strings.TrimSpace(string(b)), nil
}

// LogLevelValue maps the config's string log level to a logger.LogLevel,
// defaulting to LogLevelInfo for an unrecognized or empty value.
func (c *Config) LogLevelValue() logger.LogLevel {
	switch c.LogLevel {
	case "fatal":
		return logger.LogLevelFatal
	case "panic":
		return logger.LogLevelPanic
	case "error":
		return logger.LogLevelError
	case "warn":
		return logger.LogLevelWarn
	case "debug":
		return logger.LogLevelDebug
	case "trace":
		return logger.LogLevelTrace
	default:
		return logger.LogLevelInfo
	}
}
