// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package usercert implements the self-signed user certificate template
// packaged into soft tokens.
package usercert

import (
	"crypto/x509"
	"math/big"

	"github.com/gyroidos/trustcore/src/cert/signer"
)

type builder struct{}

// New creates a new instance of the user certificate template builder.
func New() signer.Template {
	return new(builder)
}

// Build creates the user certificate template.
func (b *builder) Build(p *signer.Params) (*x509.Certificate, error) {
	serialNumber := big.NewInt(0)
	serialNumber.SetBytes(p.SerialNumber)

	return &x509.Certificate{
		SerialNumber: serialNumber,
		NotBefore:    p.NotBefore,
		NotAfter:     p.NotAfter,
		Subject:      p.Subject,
		Issuer:       p.Issuer,

		// Basic constraints with extension id: 2.5.29.19
		BasicConstraintsValid: p.BasicConstraintsValid,
		IsCA:                  p.IsCA,
		MaxPathLenZero:        false,
		KeyUsage:              p.KeyUsage,
		SubjectKeyId:          p.SubjectKeyId,
		SignatureAlgorithm:    p.SignatureAlgorithm,
	}, nil
}
