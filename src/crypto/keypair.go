// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
)

// Padding selects the RSA signature padding scheme recorded with a
// keypair. It does not change the key material itself, only the
// algorithm identifier used when the key signs certificates and CSRs.
type Padding int

const (
	// PaddingRSA is classical PKCS#1 v1.5 padding.
	PaddingRSA Padding = iota
	// PaddingPSS is RSASSA-PSS padding.
	PaddingPSS
)

// KeyPair is an RSA keypair managed by an Engine. Signer always
// implements crypto.Signer regardless of whether the private key lives
// in software or inside the TPM, so downstream code (CSR/cert building)
// never needs to know which.
type KeyPair struct {
	Signer  crypto.Signer
	Padding Padding
}

// GenerateKeyPair creates a new RSA keypair with the given modulus size
// using this engine's configured backend. Software engines generate the
// key directly with crypto/rand; TPM-backed engines delegate to
// src/crypto/tpm, which only implements classical PKCS#1 v1.5 signing.
func (e *Engine) GenerateKeyPair(modBits int, padding Padding) (KeyPair, error) {
	if e.tpm != nil {
		if padding == PaddingPSS {
			return KeyPair{}, newError(KindUnsupported, nil, "tpm backend does not support pss signing")
		}
		signer, err := e.tpm.GenerateRSAKeyPair(modBits)
		if err != nil {
			return KeyPair{}, newError(KindKeyGen, err, "tpm key generation failed")
		}
		return KeyPair{Signer: signer, Padding: padding}, nil
	}

	key, err := rsa.GenerateKey(rand.Reader, modBits)
	if err != nil {
		return KeyPair{}, newError(KindKeyGen, err, "rsa key generation failed")
	}

	return KeyPair{Signer: key, Padding: padding}, nil
}
