// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// CreatePKCS12 packages key, cert and an optional CA chain into a
// PKCS#12 soft token protected by passphrase. The legacy 3DES encoding
// keeps the blob readable by the OpenSSL-era tooling that consumes
// these tokens.
func CreatePKCS12(key *rsa.PrivateKey, cert *x509.Certificate, caChain []*x509.Certificate, passphrase string) ([]byte, error) {
	blob, err := pkcs12.LegacyDES.Encode(key, cert, caChain, passphrase)
	if err != nil {
		return nil, newError(KindMalformedBlob, err, "could not encode pkcs12 token")
	}
	return blob, nil
}

// ReadPKCS12 parses a soft token protected by passphrase, returning the
// keypair, the certificate and any bundled CA chain. A failing MAC check
// surfaces as KindBadPassphrase, any other parse failure as
// KindMalformedBlob, keeping the two distinguishable so callers can
// prompt for passphrase re-entry instead of discarding the token.
func ReadPKCS12(blob []byte, passphrase string) (*rsa.PrivateKey, *x509.Certificate, []*x509.Certificate, error) {
	key, cert, caChain, err := pkcs12.DecodeChain(blob, passphrase)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, nil, nil, newError(KindBadPassphrase, err, "incorrect passphrase")
		}
		return nil, nil, nil, newError(KindMalformedBlob, err, "could not decode pkcs12 token")
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, nil, nil, newError(KindWrongKeyType, nil, "pkcs12 token does not contain an rsa private key")
	}

	return rsaKey, cert, caChain, nil
}

// RekeyPKCS12 decodes blob with oldPassphrase and re-encodes it with
// newPassphrase, without ever persisting the key material in between.
func RekeyPKCS12(blob []byte, oldPassphrase, newPassphrase string) ([]byte, error) {
	key, cert, caChain, err := ReadPKCS12(blob, oldPassphrase)
	if err != nil {
		return nil, err
	}

	return CreatePKCS12(key, cert, caChain, newPassphrase)
}
