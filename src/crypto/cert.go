// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"time"

	"github.com/gyroidos/trustcore/src/cert/signer"
	"github.com/gyroidos/trustcore/src/cert/templates/csrleaf"
	"github.com/gyroidos/trustcore/src/cert/templates/usercert"
)

// selfSignedSubject builds the self-signed user-certificate subject:
// country/province/locality/org/OU are fixed issuer fields, CommonName
// is chosen by the caller.
func selfSignedSubject(cn string) pkix.Name {
	return pkix.Name{
		Country:            []string{"DE"},
		Province:           []string{"Bayern"},
		Locality:           []string{"Muenchen"},
		Organization:       []string{"Fraunhofer"},
		OrganizationalUnit: []string{"AISEC", "trustme"},
		CommonName:         cn,
	}
}

const selfSignedValidity = 365 * 24 * time.Hour

// signatureAlgorithmFor maps a keypair's recorded padding scheme to the
// X.509 signature algorithm used when that key signs. The digest is
// always SHA-256.
func signatureAlgorithmFor(p Padding) x509.SignatureAlgorithm {
	if p == PaddingPSS {
		return x509.SHA256WithRSAPSS
	}
	return x509.SHA256WithRSA
}

// CreateSelfSignedCert builds and signs a new self-signed user
// certificate for cn/key, with the fixed subject fields and the one-year
// validity window soft-token identities carry.
func (e *Engine) CreateSelfSignedCert(cn string, key KeyPair) ([]byte, error) {
	now := time.Now()

	pub := key.Signer.Public()
	skid, err := subjectKeyID(pub)
	if err != nil {
		return nil, newError(KindEngineInit, err, "could not compute subject key id")
	}

	subject := selfSignedSubject(cn)
	tmpl, err := usercert.New().Build(&signer.Params{
		SerialNumber:          []byte{0},
		Subject:               subject,
		Issuer:                subject,
		NotBefore:             now,
		NotAfter:              now.Add(selfSignedValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  false,
		SignatureAlgorithm:    signatureAlgorithmFor(key.Padding),
		SubjectKeyId:          skid,
	})
	if err != nil {
		return nil, newError(KindEngineInit, err, "could not build certificate template")
	}

	der, err := signer.CreateCertificate(tmpl, tmpl, pub, key.Signer)
	if err != nil {
		return nil, newError(KindEngineInit, err, "could not create self-signed certificate")
	}

	return der, nil
}

// SelfSignCSR builds a self-signed certificate from a previously issued
// CSR: the new certificate's subject, public key and extensions are
// copied straight from the CSR, and its issuer is set to the CSR's own
// subject.
func (e *Engine) SelfSignCSR(csrDER []byte, key KeyPair) ([]byte, error) {
	csr, err := x509.ParseCertificateRequest(csrDER)
	if err != nil {
		return nil, newError(KindMalformedBlob, err, "could not parse certificate signing request")
	}
	if err := csr.CheckSignature(); err != nil {
		return nil, newError(KindVerifyInvalid, err, "certificate signing request signature is invalid")
	}

	now := time.Now()

	tmpl, err := csrleaf.New().Build(&signer.Params{
		SerialNumber:          []byte{0},
		Subject:               csr.Subject,
		Issuer:                csr.Subject,
		NotBefore:             now,
		NotAfter:              now.Add(selfSignedValidity),
		BasicConstraintsValid: true,
		IsCA:                  false,
		SignatureAlgorithm:    signatureAlgorithmFor(key.Padding),
		Extensions:            csr.Extensions,
	})
	if err != nil {
		return nil, newError(KindEngineInit, err, "could not build certificate template")
	}

	der, err := signer.CreateCertificate(tmpl, tmpl, csr.PublicKey, key.Signer)
	if err != nil {
		return nil, newError(KindEngineInit, err, "could not self-sign certificate request")
	}

	return der, nil
}

func subjectKeyID(pub interface{}) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	sum := sha1.Sum(der)
	return sum[:], nil
}

// Verdict is the three-way outcome of a certificate chain or signature
// verification: a pass, a cryptographically sound rejection, or an
// infrastructure fault that kept verification from completing.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictInvalid
	VerdictError
)

// VerifyCertOptions controls chain verification tolerance.
type VerifyCertOptions struct {
	// IgnoreTime tolerates a leaf that is not yet valid or has
	// expired; every other verification failure remains fatal.
	IgnoreTime bool
}

// VerifyCert verifies leaf against the supplied intermediate/root chain.
// It returns VerdictOK, VerdictInvalid (the chain is syntactically fine
// but does not validate) or VerdictError (verification could not be
// attempted at all, e.g. a malformed chain certificate) together with an
// error describing the failure. The two failure verdicts are never
// coerced into each other: callers bar access on Invalid and may retry
// on Error.
//
// A leaf supplied with an empty chain logs a warning and is treated as
// its own trust anchor rather than rejected outright.
func (e *Engine) VerifyCert(leaf *x509.Certificate, chain []*x509.Certificate, opts VerifyCertOptions) (Verdict, error) {
	roots := x509.NewCertPool()
	intermediates := x509.NewCertPool()

	if len(chain) == 0 {
		e.log.Warn(errInfo("certificate under test has no chain"))
		roots.AddCert(leaf)
	} else {
		for i, c := range chain {
			if i == len(chain)-1 {
				roots.AddCert(c)
			} else {
				intermediates.AddCert(c)
			}
		}
	}

	verifyTime := time.Now()
	if opts.IgnoreTime {
		verifyTime = clampToValidity(leaf, verifyTime)
	}

	_, err := leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   verifyTime,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err == nil {
		return VerdictOK, nil
	}

	e.log.Error(err, "certificate chain verification failed", "subject", leaf.Subject.CommonName, "digest", digestNameForCert(leaf))

	if _, ok := err.(x509.CertificateInvalidError); ok {
		return VerdictInvalid, newError(KindVerifyInvalid, err, "certificate chain did not verify")
	}
	if _, ok := err.(x509.UnknownAuthorityError); ok {
		return VerdictInvalid, newError(KindVerifyInvalid, err, "certificate chain did not verify")
	}

	return VerdictError, newError(KindVerifyError, err, "could not verify certificate chain")
}

func clampToValidity(leaf *x509.Certificate, t time.Time) time.Time {
	if t.Before(leaf.NotBefore) {
		return leaf.NotBefore
	}
	if t.After(leaf.NotAfter) {
		return leaf.NotAfter
	}
	return t
}
