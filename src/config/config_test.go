// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gyroidos/trustcore/src/logger"
)

func writeConfig(t *testing.T, content string) (dir, name string) {
	t.Helper()
	dir = t.TempDir()
	name = "trustcored.yaml"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir, name
}

// A minimal config file must load with every untouched field at its
// documented default, bool fields included.
func TestLoadAppliesDefaults(t *testing.T) {
	dir, name := writeConfig(t, "log_level: debug\n")

	cfg, err := Load(dir, name)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.UseTPM {
		t.Error("UseTPM = true, want default false")
	}
	if cfg.HostedMode {
		t.Error("HostedMode = true, want default false")
	}
	if cfg.TPMDevicePath != "/dev/tpmrm0" {
		t.Errorf("TPMDevicePath = %q, want default /dev/tpmrm0", cfg.TPMDevicePath)
	}
	if cfg.ClaimSeedFile != "/etc/trustcore/claims.yaml" {
		t.Errorf("ClaimSeedFile = %q, want default /etc/trustcore/claims.yaml", cfg.ClaimSeedFile)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want the configured debug", cfg.LogLevel)
	}
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	dir, name := writeConfig(t, `use_tpm: true
tpm_device_path: /dev/tpm1
hosted_mode: true
`)

	cfg, err := Load(dir, name)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !cfg.UseTPM {
		t.Error("UseTPM = false, want configured true")
	}
	if !cfg.HostedMode {
		t.Error("HostedMode = false, want configured true")
	}
	if cfg.TPMDevicePath != "/dev/tpm1" {
		t.Errorf("TPMDevicePath = %q, want configured /dev/tpm1", cfg.TPMDevicePath)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(t.TempDir(), "missing.yaml"); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}

func TestLogLevelValue(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  logger.LogLevel
	}{
		{name: "Trace", level: "trace", want: logger.LogLevelTrace},
		{name: "Warn", level: "warn", want: logger.LogLevelWarn},
		{name: "UnknownFallsBackToInfo", level: "verbose", want: logger.LogLevelInfo},
		{name: "EmptyFallsBackToInfo", level: "", want: logger.LogLevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{LogLevel: tt.level}
			if got := c.LogLevelValue(); got != tt.want {
				t.Errorf("LogLevelValue() = %v, want %v", got, tt.want)
			}
		})
	}
}
