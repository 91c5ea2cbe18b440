// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
)

// csrSubject builds the CSR's subject: country/org/OU are fixed issuer
// fields, CommonName is chosen by the caller.
func csrSubject(cn string) pkix.Name {
	return pkix.Name{
		Country:            []string{"DE"},
		Organization:       []string{"Fraunhofer"},
		OrganizationalUnit: []string{"AISEC"},
		CommonName:         cn,
	}
}

var (
	oidKeyUsage       = asn1.ObjectIdentifier{2, 5, 29, 15}
	oidExtKeyUsage    = asn1.ObjectIdentifier{2, 5, 29, 37}
	oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}
)

// keyUsageCSRBits is the fixed critical key usage every device CSR
// carries: digitalSignature, keyEncipherment, nonRepudiation.
const keyUsageCSRBits = x509.KeyUsageDigitalSignature |
	x509.KeyUsageKeyEncipherment |
	x509.KeyUsageContentCommitment // nonRepudiation

// CreateCSR builds a PKCS#10 certificate signing request for cn/uid,
// signed by key with SHA-256 under the key's recorded padding scheme.
//
// uid becomes the "URI:UUID:<uid>" subject alternative name the
// container subsystem uses to recognize a compartment's own CSR.
func (e *Engine) CreateCSR(cn, uid string, key KeyPair) ([]byte, error) {
	keyUsageExt, err := marshalKeyUsageExtension(keyUsageCSRBits)
	if err != nil {
		return nil, newError(KindEngineInit, err, "could not marshal key usage extension")
	}

	ekuExt, err := marshalExtKeyUsageExtension([]asn1.ObjectIdentifier{
		// id-kp-clientAuth
		{1, 3, 6, 1, 5, 5, 7, 3, 2},
	})
	if err != nil {
		return nil, newError(KindEngineInit, err, "could not marshal extended key usage extension")
	}

	sanExt, err := marshalURISANExtension(fmt.Sprintf("UUID:%s", uid))
	if err != nil {
		return nil, newError(KindEngineInit, err, "could not marshal subject alt name extension")
	}

	template := &x509.CertificateRequest{
		Subject:            csrSubject(cn),
		ExtraExtensions:    []pkix.Extension{keyUsageExt, ekuExt, sanExt},
		SignatureAlgorithm: signatureAlgorithmFor(key.Padding),
	}

	der, err := x509.CreateCertificateRequest(rand.Reader, template, key.Signer)
	if err != nil {
		return nil, newError(KindEngineInit, err, "could not create certificate request")
	}

	return der, nil
}

func marshalKeyUsageExtension(ku x509.KeyUsage) (pkix.Extension, error) {
	var bits int
	var bs asn1.BitString
	if ku&x509.KeyUsageDigitalSignature != 0 {
		bits |= 1 << 7
	}
	if ku&x509.KeyUsageContentCommitment != 0 {
		bits |= 1 << 6
	}
	if ku&x509.KeyUsageKeyEncipherment != 0 {
		bits |= 1 << 5
	}
	bs.Bytes = []byte{byte(bits)}
	bs.BitLength = 8

	val, err := asn1.Marshal(bs)
	if err != nil {
		return pkix.Extension{}, err
	}
	return pkix.Extension{Id: oidKeyUsage, Critical: true, Value: val}, nil
}

func marshalExtKeyUsageExtension(oids []asn1.ObjectIdentifier) (pkix.Extension, error) {
	val, err := asn1.Marshal(oids)
	if err != nil {
		return pkix.Extension{}, err
	}
	return pkix.Extension{Id: oidExtKeyUsage, Critical: false, Value: val}, nil
}

// generalName is the minimal asn1 shape needed to encode a single
// uniformResourceIdentifier GeneralName (tag [6], IA5String).
type generalName struct {
	URI string `asn1:"tag:6,ia5"`
}

func marshalURISANExtension(uri string) (pkix.Extension, error) {
	val, err := asn1.Marshal(generalName{URI: uri})
	if err != nil {
		return pkix.Extension{}, err
	}
	return pkix.Extension{Id: oidSubjectAltName, Critical: false, Value: val}, nil
}
