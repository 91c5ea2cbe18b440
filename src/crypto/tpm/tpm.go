// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package tpm implements the trust core's TPM 2.0 hardware engine: an
// alternative backend for RSA keypair generation and signing that keeps
// private key material inside the TPM rather than in process memory.
package tpm

import (
	"crypto"
	"crypto/rsa"
	"fmt"
	"io"
	"math/big"

	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"
)

// srkTemplate is the storage root key every Engine primes at Open time;
// generated keys are created as children of this primary key so they
// never leave the TPM's key hierarchy unwrapped.
var srkTemplate = tpm2.RSASRKTemplate

// Engine drives a single TPM 2.0 device for the lifetime of the process.
type Engine struct {
	rwc     transport.TPMCloser
	srk     tpm2.TPMHandle
	srkAuth []byte
}

// Open opens the TPM character device at path (e.g. /dev/tpmrm0) and
// creates the storage root key used to parent all keys this engine
// generates. srkPin, if non-empty, becomes the SRK's UserAuth value and
// must be supplied again on every subsequent Open against a device that
// already owns a provisioned SRK; an empty srkPin creates (or expects)
// an SRK with no authorization.
func Open(path string, srkPin string) (*Engine, error) {
	rwc, err := transport.OpenTPM(path)
	if err != nil {
		return nil, fmt.Errorf("could not open tpm device %q: %w", path, err)
	}

	srkAuth := []byte(srkPin)

	primary, err := (tpm2.CreatePrimary{
		PrimaryHandle: tpm2.TPMRHOwner,
		InSensitive: tpm2.TPM2BSensitiveCreate{
			Sensitive: &tpm2.TPMSSensitiveCreate{
				UserAuth: tpm2.TPM2BAuth{Buffer: srkAuth},
			},
		},
		InPublic: tpm2.New2B(srkTemplate),
	}).Execute(rwc)
	if err != nil {
		rwc.Close()
		return nil, fmt.Errorf("could not create storage root key: %w", err)
	}

	return &Engine{rwc: rwc, srk: primary.ObjectHandle, srkAuth: srkAuth}, nil
}

// Close flushes the storage root key and closes the TPM device.
func (e *Engine) Close() error {
	_, err := (tpm2.FlushContext{FlushHandle: e.srk}).Execute(e.rwc)
	if cerr := e.rwc.Close(); err == nil {
		err = cerr
	}
	return err
}

// GenerateRSAKeyPair creates a new RSA keypair as a child of the
// engine's storage root key and returns a crypto.Signer whose Sign
// method performs the signing operation inside the TPM.
func (e *Engine) GenerateRSAKeyPair(modBits int) (crypto.Signer, error) {
	template := tpm2.TPMTPublic{
		Type:    tpm2.TPMAlgRSA,
		NameAlg: tpm2.TPMAlgSHA256,
		ObjectAttributes: tpm2.TPMAObject{
			SignEncrypt:         true,
			FixedTPM:            true,
			FixedParent:         true,
			SensitiveDataOrigin: true,
			UserWithAuth:        true,
		},
		Parameters: tpm2.NewTPMUPublicParms(tpm2.TPMAlgRSA, &tpm2.TPMSRSAParms{
			Scheme: tpm2.TPMTRSAScheme{
				Scheme: tpm2.TPMAlgRSASSA,
				Details: tpm2.NewTPMUAsymScheme(tpm2.TPMAlgRSASSA, &tpm2.TPMSSigSchemeRSASSA{
					HashAlg: tpm2.TPMAlgSHA256,
				}),
			},
			KeyBits: tpm2.TPMKeyBits(modBits),
		}),
	}

	created, err := (tpm2.Create{
		ParentHandle: tpm2.AuthHandle{Handle: e.srk, Auth: tpm2.PasswordAuth(e.srkAuth)},
		InPublic:     tpm2.New2B(template),
	}).Execute(e.rwc)
	if err != nil {
		return nil, fmt.Errorf("could not create tpm key: %w", err)
	}

	loaded, err := (tpm2.Load{
		ParentHandle: tpm2.AuthHandle{Handle: e.srk, Auth: tpm2.PasswordAuth(e.srkAuth)},
		InPrivate:    created.OutPrivate,
		InPublic:     created.OutPublic,
	}).Execute(e.rwc)
	if err != nil {
		return nil, fmt.Errorf("could not load tpm key: %w", err)
	}

	pub, err := created.OutPublic.Contents()
	if err != nil {
		return nil, fmt.Errorf("could not read tpm key public area: %w", err)
	}
	rsaDetail, err := pub.Parameters.RSADetail()
	if err != nil {
		return nil, fmt.Errorf("tpm key is not rsa: %w", err)
	}
	rsaUnique, err := pub.Unique.RSA()
	if err != nil {
		return nil, fmt.Errorf("could not read tpm key modulus: %w", err)
	}

	pubKey := &rsa.PublicKey{
		N: new(big.Int).SetBytes(rsaUnique.Buffer),
		E: int(rsaDetail.Exponent),
	}
	if pubKey.E == 0 {
		pubKey.E = 65537
	}

	return &signer{engine: e, handle: loaded.ObjectHandle, public: pubKey}, nil
}

// signer implements crypto.Signer over a loaded TPM key handle.
type signer struct {
	engine *Engine
	handle tpm2.TPMHandle
	public *rsa.PublicKey
}

func (s *signer) Public() crypto.PublicKey { return s.public }

// Sign signs a pre-hashed digest using RSASSA-PKCS1v15 inside the TPM.
// PSS options are not yet supported by this engine; callers that need
// PSS signatures must use the software backend.
func (s *signer) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	alg, err := tpmHashAlg(opts.HashFunc())
	if err != nil {
		return nil, err
	}

	rsp, err := (tpm2.Sign{
		KeyHandle: tpm2.AuthHandle{Handle: s.handle, Auth: tpm2.PasswordAuth(nil)},
		Digest:    tpm2.TPM2BDigest{Buffer: digest},
		InScheme: tpm2.TPMTSigScheme{
			Scheme: tpm2.TPMAlgRSASSA,
			Details: tpm2.NewTPMUSigScheme(tpm2.TPMAlgRSASSA, &tpm2.TPMSSchemeHash{
				HashAlg: alg,
			}),
		},
		Validation: tpm2.TPMTTKHashCheck{
			Tag:       tpm2.TPMSTHashCheck,
			Hierarchy: tpm2.TPMRHNull,
		},
	}).Execute(s.engine.rwc)
	if err != nil {
		return nil, fmt.Errorf("tpm sign failed: %w", err)
	}

	sig, err := rsp.Signature.Signature.RSASSA()
	if err != nil {
		return nil, fmt.Errorf("could not read tpm signature: %w", err)
	}
	return sig.Sig.Buffer, nil
}

func tpmHashAlg(h crypto.Hash) (tpm2.TPMAlgID, error) {
	switch h {
	case crypto.SHA256:
		return tpm2.TPMAlgSHA256, nil
	case crypto.SHA384:
		return tpm2.TPMAlgSHA384, nil
	case crypto.SHA512:
		return tpm2.TPMAlgSHA512, nil
	default:
		return 0, fmt.Errorf("unsupported hash algorithm for tpm signing: %v", h)
	}
}
