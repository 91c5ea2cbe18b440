// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package crypto implements the trust core's crypto engine: keypair and
// CSR generation, self-signed certificate issuance, chain verification,
// signature verification, and PKCS#12 soft token handling, backed either
// by software RSA or a TPM 2.0 engine.
package crypto

import (
	"errors"
	"io/fs"

	"github.com/gyroidos/trustcore/src/crypto/tpm"
	"github.com/gyroidos/trustcore/src/logger"
)

// EngineConfig selects and configures the backend an Engine drives.
type EngineConfig struct {
	// UseTPM routes key generation and signing through a TPM 2.0
	// device instead of software RSA.
	UseTPM bool
	// TPMDevicePath is the TPM character device (e.g. /dev/tpmrm0)
	// used when UseTPM is set.
	TPMDevicePath string
	// SrkPin authorizes the TPM's storage root key when UseTPM is set.
	// An empty SrkPin creates (or expects) an SRK with no authorization.
	SrkPin string
	// Logger receives engine diagnostics; nil is valid and silences
	// logging.
	Logger *logger.ModLogger
}

// Engine is the trust core's crypto engine. It owns the configured
// backend and exposes keypair, CSR, certificate, signature, hashing and
// soft-token operations as methods.
type Engine struct {
	cfg EngineConfig
	tpm *tpm.Engine
	log *logger.ModLogger
}

// NewEngine initializes the crypto engine per cfg. For a software
// engine this is nearly a no-op; for a TPM-backed engine this opens and
// primes the TPM device, reporting KindEngineUnavailable when there is
// no device at all and KindEngineInit when priming it fails.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	e := &Engine{cfg: cfg, log: cfg.Logger}

	if cfg.UseTPM {
		t, err := tpm.Open(cfg.TPMDevicePath, cfg.SrkPin)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, newError(KindEngineUnavailable, err, "no tpm device at %q", cfg.TPMDevicePath)
			}
			return nil, newError(KindEngineInit, err, "could not initialize tpm device %q", cfg.TPMDevicePath)
		}
		e.tpm = t
	}

	e.log.Info(errInfo("engine initialized"), "use_tpm", cfg.UseTPM)

	return e, nil
}

// Close releases any resources (TPM device handle) held by the engine.
func (e *Engine) Close() error {
	if e.tpm != nil {
		return e.tpm.Close()
	}
	return nil
}

// infoErr wraps a plain string as an error so it can be passed through
// the logger's err-first call signature for purely informational lines.
type infoErr string

func (s infoErr) Error() string { return string(s) }

func errInfo(msg string) error { return infoErr(msg) }
