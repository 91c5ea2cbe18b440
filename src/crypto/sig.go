// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"io"
	"os"
)

// Signature algorithm OIDs this engine recognizes. Anything outside
// this five-entry set is KindUnsupported, deliberately: callers must
// then name the digest explicitly instead of falling back silently.
var (
	oidRSASSAPSS            = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}
	oidSHA224WithRSAEncrypt = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 14}
	oidSHA256WithRSAEncrypt = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	oidSHA384WithRSAEncrypt = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	oidSHA512WithRSAEncrypt = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
)

// digestByAlgoOID returns the crypto.Hash for a recognized signature
// algorithm OID, and whether it uses RSA-PSS padding. An unrecognized
// OID reports ok == false.
func digestByAlgoOID(oid asn1.ObjectIdentifier) (hash crypto.Hash, pss bool, ok bool) {
	switch {
	case oid.Equal(oidRSASSAPSS):
		// PSS carries its own hash/salt parameters; the caller resolves
		// the actual hash from the AlgorithmIdentifier's parameters.
		return crypto.SHA256, true, true
	case oid.Equal(oidSHA224WithRSAEncrypt):
		return crypto.SHA224, false, true
	case oid.Equal(oidSHA256WithRSAEncrypt):
		return crypto.SHA256, false, true
	case oid.Equal(oidSHA384WithRSAEncrypt):
		return crypto.SHA384, false, true
	case oid.Equal(oidSHA512WithRSAEncrypt):
		return crypto.SHA512, false, true
	default:
		return 0, false, false
	}
}

// VerifySignatureFromDigest verifies sig over an already-computed
// digest using pub, with RSA-PSS or plain PKCS#1v1.5 padding selected
// by pss. VerdictInvalid and VerdictError are always kept distinct: a
// bad signature is VerdictInvalid, while a key type outside the
// supported set is a KindUnsupported error returned alongside
// VerdictError.
func VerifySignatureFromDigest(pub crypto.PublicKey, hash crypto.Hash, digest, sig []byte, pss bool) (Verdict, error) {
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return VerdictError, newError(KindUnsupported, nil, "only rsa public keys are supported")
	}

	var err error
	if pss {
		err = rsa.VerifyPSS(rsaPub, hash, digest, sig, nil)
	} else {
		err = rsa.VerifyPKCS1v15(rsaPub, hash, digest, sig)
	}
	if err != nil {
		return VerdictInvalid, newError(KindVerifyInvalid, err, "signature did not verify")
	}

	return VerdictOK, nil
}

// VerifySignatureFromBuf hashes buf and verifies sig against it using
// the signature algorithm named by algoOID.
func VerifySignatureFromBuf(pub crypto.PublicKey, algoOID asn1.ObjectIdentifier, buf, sig []byte) (Verdict, error) {
	hash, pss, ok := digestByAlgoOID(algoOID)
	if !ok {
		return VerdictError, newError(KindUnsupported, nil, "unsupported signature algorithm oid %v", algoOID)
	}

	digest, err := HashBuf(hash, buf)
	if err != nil {
		return VerdictError, newError(KindVerifyError, err, "could not hash buffer")
	}

	return VerifySignatureFromDigest(pub, hash, digest, sig, pss)
}

// VerifySignature hashes the file at path and verifies sig against
// it.
func VerifySignature(pub crypto.PublicKey, algoOID asn1.ObjectIdentifier, path string, sig []byte) (Verdict, error) {
	hash, pss, ok := digestByAlgoOID(algoOID)
	if !ok {
		return VerdictError, newError(KindUnsupported, nil, "unsupported signature algorithm oid %v", algoOID)
	}

	f, err := os.Open(path)
	if err != nil {
		return VerdictError, newError(KindIO, err, "could not open file %q", path)
	}
	defer f.Close()

	digest, err := HashFile(hash, f)
	if err != nil {
		return VerdictError, newError(KindVerifyError, err, "could not hash file %q", path)
	}

	return VerifySignatureFromDigest(pub, hash, digest, sig, pss)
}

// VerifyDetachedSignature verifies a detached signature blob produced
// over data. It is a thin convenience wrapper for callers that hold the
// signed data as a stream.
func VerifyDetachedSignature(pub crypto.PublicKey, algoOID asn1.ObjectIdentifier, data io.Reader, sig []byte) (Verdict, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, data); err != nil {
		return VerdictError, newError(KindIO, err, "could not read signed data")
	}
	return VerifySignatureFromBuf(pub, algoOID, buf.Bytes(), sig)
}

// digestByName resolves an explicitly named digest.
func digestByName(name string) (crypto.Hash, error) {
	switch name {
	case "sha224":
		return crypto.SHA224, nil
	case "sha256":
		return crypto.SHA256, nil
	case "sha384":
		return crypto.SHA384, nil
	case "sha512":
		return crypto.SHA512, nil
	default:
		return 0, newError(KindUnsupported, nil, "unsupported digest name %q", name)
	}
}

// digestForCertSignature resolves the digest and padding to verify a
// detached signature made by cert's keyholder. An explicit digestName
// always wins; otherwise the certificate's own signature algorithm is
// consulted, and only the recognized RSA algorithms map.
func digestForCertSignature(cert *x509.Certificate, digestName string) (hash crypto.Hash, pss bool, err error) {
	pss = cert.SignatureAlgorithm == x509.SHA256WithRSAPSS ||
		cert.SignatureAlgorithm == x509.SHA384WithRSAPSS ||
		cert.SignatureAlgorithm == x509.SHA512WithRSAPSS

	if digestName != "" {
		hash, err = digestByName(digestName)
		return hash, pss, err
	}

	switch cert.SignatureAlgorithm {
	case x509.SHA256WithRSA, x509.SHA256WithRSAPSS:
		return crypto.SHA256, pss, nil
	case x509.SHA384WithRSA, x509.SHA384WithRSAPSS:
		return crypto.SHA384, pss, nil
	case x509.SHA512WithRSA, x509.SHA512WithRSAPSS:
		return crypto.SHA512, pss, nil
	default:
		return 0, false, newError(KindUnsupported, nil,
			"cannot derive digest from signature algorithm %v, name it explicitly", cert.SignatureAlgorithm)
	}
}

// digestNameForCert reports the digest used by cert's signature
// algorithm, for verify-failure diagnostics.
func digestNameForCert(cert *x509.Certificate) string {
	switch cert.SignatureAlgorithm {
	case x509.SHA256WithRSA, x509.SHA256WithRSAPSS:
		return "sha256"
	case x509.SHA384WithRSA, x509.SHA384WithRSAPSS:
		return "sha384"
	case x509.SHA512WithRSA, x509.SHA512WithRSAPSS:
		return "sha512"
	default:
		return fmt.Sprintf("unknown(%v)", cert.SignatureAlgorithm)
	}
}
