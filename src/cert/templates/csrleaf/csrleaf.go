// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package csrleaf implements a certificate template whose subject and
// extensions are copied from a certification request.
package csrleaf

import (
	"crypto/x509"
	"math/big"

	"github.com/gyroidos/trustcore/src/cert/signer"
)

type builder struct{}

// New creates a new instance of the csr-derived certificate template
// builder.
func New() signer.Template {
	return new(builder)
}

// Build creates the certificate template. The request's extensions are
// carried over verbatim through p.Extensions.
func (b *builder) Build(p *signer.Params) (*x509.Certificate, error) {
	serialNumber := big.NewInt(0)
	serialNumber.SetBytes(p.SerialNumber)

	return &x509.Certificate{
		SerialNumber: serialNumber,
		NotBefore:    p.NotBefore,
		NotAfter:     p.NotAfter,
		Subject:      p.Subject,
		Issuer:       p.Issuer,

		BasicConstraintsValid: p.BasicConstraintsValid,
		IsCA:                  p.IsCA,
		MaxPathLenZero:        false,
		ExtraExtensions:       p.Extensions,
		SignatureAlgorithm:    p.SignatureAlgorithm,
	}, nil
}
