// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/gyroidos/trustcore/src/utils"
)

// fileKeyModBits is the RSA modulus size of every keypair this daemon
// generates (F4 public exponent, 4096-bit modulus).
const fileKeyModBits = 4096

// CreateCSRFile builds a CSR for cn/uid, signed by a freshly generated
// keypair on this engine's configured backend (TPM or software), and
// writes it in PEM to reqPath.
//
// When the backend is software, the private key is additionally
// written to keyPath in PEM, encrypted under AES-256-CBC keyed from
// passphrase when one is supplied, otherwise unencrypted. A TPM-backed
// key never leaves the device, so keyPath is left untouched in that
// case.
func (e *Engine) CreateCSRFile(reqPath, keyPath, passphrase, cn, uid string, padding Padding) error {
	key, err := e.GenerateKeyPair(fileKeyModBits, padding)
	if err != nil {
		return err
	}

	if rsaKey, ok := key.Signer.(*rsa.PrivateKey); ok {
		if err := writeSoftwareKeyPEM(keyPath, rsaKey, passphrase); err != nil {
			return err
		}
	}

	der, err := e.CreateCSR(cn, uid, key)
	if err != nil {
		return err
	}

	if err := writePEM(reqPath, "CERTIFICATE REQUEST", der); err != nil {
		return newError(KindIO, err, "could not write csr to %q", reqPath)
	}
	return nil
}

// writePEM writes a single PEM block of blockType to path.
func writePEM(path, blockType string, der []byte) error {
	block := &pem.Block{Type: blockType, Bytes: der}
	return utils.WriteFile(path, pem.EncodeToMemory(block), 0o600)
}

// writeSoftwareKeyPEM writes key's PKCS#1 DER encoding to path in PEM,
// encrypting it under AES-256-CBC keyed from passphrase when passphrase
// is non-empty.
func writeSoftwareKeyPEM(path string, key *rsa.PrivateKey, passphrase string) error {
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}

	if passphrase != "" {
		//nolint:staticcheck // x509.EncryptPEMBlock is deprecated
		// upstream, but it is exactly the legacy "PEM private key
		// encrypted under a passphrase-derived AES-256-CBC key" wire
		// format this daemon's key files have always used.
		encBlock, err := x509.EncryptPEMBlock(rand.Reader, block.Type, block.Bytes, []byte(passphrase), x509.PEMCipherAES256) //nolint:staticcheck
		if err != nil {
			return newError(KindIO, err, "could not encrypt private key")
		}
		block = encBlock
	}

	if err := utils.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return newError(KindIO, err, "could not write private key to %q", path)
	}
	return nil
}

// readSoftwareKeyPEM reads and decrypts (when passphrase is non-empty)
// the PEM private key previously written by writeSoftwareKeyPEM.
func readSoftwareKeyPEM(path, passphrase string) (*rsa.PrivateKey, error) {
	pemData, err := utils.ReadFile(path)
	if err != nil {
		return nil, newError(KindIO, err, "could not read private key %q", path)
	}
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, newError(KindMalformedBlob, nil, "could not decode private key pem %q", path)
	}

	der := block.Bytes
	if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck
		if passphrase == "" {
			return nil, newError(KindBadPassphrase, nil, "private key %q is encrypted but no passphrase was given", path)
		}
		decrypted, err := x509.DecryptPEMBlock(block, []byte(passphrase)) //nolint:staticcheck
		if err != nil {
			return nil, newError(KindBadPassphrase, err, "could not decrypt private key %q", path)
		}
		der = decrypted
	}

	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, newError(KindMalformedBlob, err, "could not parse private key %q", path)
	}
	return key, nil
}

// CreatePKCS12File generates a software RSA keypair, builds a
// self-signed certificate for cn, packages both into a PKCS#12 token
// MAC'd with passphrase, and writes it to tokenPath. When certPath is
// non-empty the certificate is additionally written there in PEM.
// PKCS#12 requires the private key material
// itself, so this operation always uses the software backend regardless
// of the engine's TPM configuration.
func (e *Engine) CreatePKCS12File(tokenPath, certPath, passphrase, cn string, padding Padding) error {
	if passphrase == "" {
		return newError(KindBadPassphrase, nil, "pkcs12 passphrase must be non-empty")
	}

	rsaKey, err := rsa.GenerateKey(rand.Reader, fileKeyModBits)
	if err != nil {
		return newError(KindKeyGen, err, "rsa key generation failed")
	}
	key := KeyPair{Signer: rsaKey, Padding: padding}

	certDER, err := e.CreateSelfSignedCert(cn, key)
	if err != nil {
		return err
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return newError(KindEngineInit, err, "could not parse freshly created certificate")
	}

	blob, err := CreatePKCS12(rsaKey, cert, nil, passphrase)
	if err != nil {
		return err
	}

	if err := utils.WriteFile(tokenPath, blob, 0o600); err != nil {
		return newError(KindIO, err, "could not write pkcs12 token to %q", tokenPath)
	}

	if certPath != "" {
		if err := writePEM(certPath, "CERTIFICATE", certDER); err != nil {
			return newError(KindIO, err, "could not write certificate to %q", certPath)
		}
	}

	return nil
}

// ReadPKCS12File reads and parses the token at path under passphrase.
func ReadPKCS12File(path, passphrase string) (*rsa.PrivateKey, *x509.Certificate, []*x509.Certificate, error) {
	blob, err := utils.ReadFile(path)
	if err != nil {
		return nil, nil, nil, newError(KindIO, err, "could not read pkcs12 token %q", path)
	}
	return ReadPKCS12(blob, passphrase)
}

// RekeyPKCS12File opens the token at path with oldPassphrase,
// repackages it under newPassphrase, and overwrites the file in place.
func RekeyPKCS12File(path, oldPassphrase, newPassphrase string) error {
	blob, err := utils.ReadFile(path)
	if err != nil {
		return newError(KindIO, err, "could not read pkcs12 token %q", path)
	}

	rekeyed, err := RekeyPKCS12(blob, oldPassphrase, newPassphrase)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, rekeyed, 0o600); err != nil {
		return newError(KindIO, err, "could not overwrite pkcs12 token %q", path)
	}
	return nil
}

// SelfSignCSRFile reads the CSR at csrPath, self-signs it with the
// software signing key at signingKeyPath (PEM, optionally encrypted
// under passphrase), and writes the resulting certificate in PEM to
// outCertPath.
func (e *Engine) SelfSignCSRFile(csrPath, outCertPath, signingKeyPath, passphrase string) error {
	csrPEM, err := utils.ReadFile(csrPath)
	if err != nil {
		return newError(KindIO, err, "could not read csr %q", csrPath)
	}
	block, _ := pem.Decode(csrPEM)
	if block == nil {
		return newError(KindMalformedBlob, nil, "could not decode csr pem %q", csrPath)
	}

	rsaKey, err := readSoftwareKeyPEM(signingKeyPath, passphrase)
	if err != nil {
		return err
	}

	certDER, err := e.SelfSignCSR(block.Bytes, KeyPair{Signer: rsaKey})
	if err != nil {
		return err
	}

	if err := writePEM(outCertPath, "CERTIFICATE", certDER); err != nil {
		return newError(KindIO, err, "could not write certificate to %q", outCertPath)
	}
	return nil
}

// VerifyCertFile loads the leaf certificate from leafPath (any further
// PEM certificates concatenated after it in the same file become the
// untrusted intermediate chain) and the root from rootPath, then
// verifies the leaf against that chain.
func (e *Engine) VerifyCertFile(leafPath, rootPath string, ignoreTime bool) (Verdict, error) {
	leaf, chain, err := readCertChainPEM(leafPath)
	if err != nil {
		return VerdictError, err
	}

	rootPEM, err := utils.ReadFile(rootPath)
	if err != nil {
		return VerdictError, newError(KindIO, err, "could not read root certificate %q", rootPath)
	}
	rootBlock, _ := pem.Decode(rootPEM)
	if rootBlock == nil {
		return VerdictError, newError(KindMalformedBlob, nil, "could not decode root certificate pem %q", rootPath)
	}
	root, err := x509.ParseCertificate(rootBlock.Bytes)
	if err != nil {
		return VerdictError, newError(KindMalformedBlob, err, "could not parse root certificate %q", rootPath)
	}

	return e.VerifyCert(leaf, append(chain, root), VerifyCertOptions{IgnoreTime: ignoreTime})
}

// VerifySignatureFiles verifies the detached signature at sigPath over
// the contents of signedPath, under the public key of the certificate
// at certPath. The signed file is hashed streamingly, never held in
// memory whole.
//
// digestName selects the digest ("sha224", "sha256", "sha384",
// "sha512"); when empty, the digest is derived from the certificate's
// own signature algorithm, and an algorithm outside the recognized set
// is a KindUnsupported error forcing the caller to name the digest
// explicitly.
func VerifySignatureFiles(certPath, sigPath, signedPath, digestName string) (Verdict, error) {
	certDER, err := readPEMBlock(certPath)
	if err != nil {
		return VerdictError, err
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return VerdictError, newError(KindMalformedBlob, err, "could not parse certificate %q", certPath)
	}

	sig, err := utils.ReadFile(sigPath)
	if err != nil {
		return VerdictError, newError(KindIO, err, "could not read signature %q", sigPath)
	}

	hash, pss, err := digestForCertSignature(cert, digestName)
	if err != nil {
		return VerdictError, err
	}

	f, err := os.Open(signedPath)
	if err != nil {
		return VerdictError, newError(KindIO, err, "could not open signed file %q", signedPath)
	}
	defer f.Close()

	digest, err := HashFile(hash, f)
	if err != nil {
		return VerdictError, newError(KindVerifyError, err, "could not hash signed file %q", signedPath)
	}

	return VerifySignatureFromDigest(cert.PublicKey, hash, digest, sig, pss)
}

// readPEMBlock reads the first PEM block of a file and returns its DER
// payload.
func readPEMBlock(path string) ([]byte, error) {
	data, err := utils.ReadFile(path)
	if err != nil {
		return nil, newError(KindIO, err, "could not read %q", path)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, newError(KindMalformedBlob, nil, "could not decode pem from %q", path)
	}
	return block.Bytes, nil
}

// readCertChainPEM parses the first PEM CERTIFICATE block in path as
// the leaf and every subsequent block as the untrusted chain that
// follows it.
func readCertChainPEM(path string) (*x509.Certificate, []*x509.Certificate, error) {
	data, err := utils.ReadFile(path)
	if err != nil {
		return nil, nil, newError(KindIO, err, "could not read certificate %q", path)
	}

	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, nil, newError(KindMalformedBlob, err, "could not parse certificate %q", path)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, nil, newError(KindMalformedBlob, nil, "no certificates found in %q", path)
	}

	return certs[0], certs[1:], nil
}
